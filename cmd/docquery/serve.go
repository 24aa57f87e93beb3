// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/docquery/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docquery HTTP server",
		Long:  "Load configuration, wire providers, embeddings and the vector index, and serve the upload and search API.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().String("upload-dir", "", "override the directory uploads are stored in")
	cmd.Flags().Bool("reindex", false, "index documents already in the upload directory at startup")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		v.Set("server.listen", listen)
	}
	if dir, _ := cmd.Flags().GetString("upload-dir"); dir != "" {
		v.Set("storage.upload_dir", dir)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(serveContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}()

	if reindex, _ := cmd.Flags().GetBool("reindex"); reindex {
		if err := app.Service.Rebuild(ctx); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving docquery on %s\n", cfg.Server.Listen)
	return app.Start(ctx)
}

// serveContext is cmd.Context with a fallback for direct RunE calls.
func serveContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
