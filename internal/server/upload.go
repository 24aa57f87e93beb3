// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// uploadMemory is how much of a multipart form is held in memory before
// the rest spills to temporary files.
const uploadMemory = 8 << 20

// UploadResponse is the JSON body returned for a stored document.
type UploadResponse struct {
	Message string `json:"message"`
}

func (s *Server) registerUploadRoute() {
	s.router.Post("/upload/", s.handleUpload)

	// The multipart handler needs the raw request, so it is routed by chi
	// and only described to huma for the OpenAPI document.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "upload",
		Method:      http.MethodPost,
		Path:        "/upload/",
		Summary:     "Upload a document and rebuild the index",
		Description: "Accepts a .txt or .docx file in the multipart field \"file\". The index is rebuilt over every uploaded document.",
		Tags:        []string{"documents"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"multipart/form-data": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"file"},
						Properties: map[string]*huma.Schema{
							"file": {
								Type:        "string",
								Format:      "binary",
								Description: "A .txt or .docx document",
							},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Document stored and indexed",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"message": {Type: "string"},
							},
						},
					},
				},
			},
			"400": {Description: "Unsupported file type or malformed form"},
			"413": {Description: "Upload exceeds the configured size limit"},
			"500": {Description: "Storing or indexing the document failed"},
		},
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the upload limit of %d bytes.", tooLarge.Limit))
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Missing form field \"file\".")
		return
	}
	defer file.Close()

	msg, err := s.services.Documents().Upload(r.Context(), header.Filename, file)
	if err != nil {
		status := uploadStatus(err)
		if status == http.StatusBadRequest {
			writeProblem(w, status, err.Error())
			return
		}
		slog.Error("upload failed", "file", header.Filename, "error", err)
		writeProblem(w, status, "Error uploading document: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Message: msg})
}

func uploadStatus(err error) int {
	if dqerr.HasCode(err, dqerr.CodeUploadFileInvalid) || dqerr.HasCode(err, dqerr.CodeServerRequestInvalid) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeProblem writes an RFC 7807 body shaped like huma's own errors.
func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(&huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}); err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
