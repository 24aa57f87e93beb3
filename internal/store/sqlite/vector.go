// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite provides a vector store backed by a private in-memory SQLite
// database with the sqlite-vec extension.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/docquery/internal/store"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore with a vec0 virtual table. vec0
// scans every row, so results are exact L2 nearest neighbours.
type VectorStore struct {
	db         *sql.DB
	dimensions int
}

// NewVectorStore opens a fresh in-memory database and creates the vec0
// virtual table and companion metadata table.
func NewVectorStore(dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeStoreInvalidInput,
			"vector dimensions must be positive (got %d)", dimensions)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrateVector(db, dimensions); err != nil {
		_ = db.Close()
		return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "migrating vector tables")
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func migrateVector(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS vector_metadata (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating vector_metadata table: %w", err)
	}

	return nil
}

// Dimensions reports the vector width fixed at creation.
func (v *VectorStore) Dimensions() int { return v.dimensions }

// Store inserts or replaces a vector and its metadata.
func (v *VectorStore) Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return dqerr.New(dqerr.CodeStoreInvalidInput, "vector id must not be empty")
	}
	if err := v.checkVector(embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreInvalidInput, "serializing embedding")
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return dqerr.Wrap(err, dqerr.CodeStoreInvalidInput, "marshalling metadata")
		}
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return dqerr.Wrapf(err, dqerr.CodeStoreDatabaseFailure, "deleting existing vector %s", id)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return dqerr.Wrapf(err, dqerr.CodeStoreDatabaseFailure, "inserting vector %s", id)
	}

	const metaQ = `INSERT INTO vector_metadata(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, metaQ, id, string(metaJSON)); err != nil {
		return dqerr.Wrapf(err, dqerr.CodeStoreDatabaseFailure, "upserting vector metadata %s", id)
	}

	if err := tx.Commit(); err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "committing vector store")
	}
	return nil
}

// Search performs a k-nearest-neighbour search and returns results with
// metadata, closest first.
func (v *VectorStore) Search(ctx context.Context, query []float32, k int) ([]store.VectorResult, error) {
	if err := v.checkVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeStoreInvalidInput, "k must be positive (got %d)", k)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeStoreInvalidInput, "serializing query vector")
	}

	const q = `SELECT v.id, v.distance, COALESCE(m.metadata, '{}')
FROM vectors v
LEFT JOIN vector_metadata m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.VectorResult
	for rows.Next() {
		var r store.VectorResult
		var metaStr string

		if err := rows.Scan(&r.ID, &r.Score, &metaStr); err != nil {
			return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "scanning vector result")
		}

		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
				return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "unmarshalling vector metadata")
			}
		}

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "iterating vector results")
	}

	return results, nil
}

// Delete removes vectors and their metadata by ID.
func (v *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "deleting vectors")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_metadata WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "deleting vector metadata")
	}

	if err := tx.Commit(); err != nil {
		return dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "committing vector delete")
	}
	return nil
}

// Count returns the number of stored vectors.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_metadata`).Scan(&n); err != nil {
		return 0, dqerr.Wrap(err, dqerr.CodeStoreDatabaseFailure, "counting vectors")
	}
	return n, nil
}

// Close closes the underlying database connection and discards the index.
func (v *VectorStore) Close() error {
	return v.db.Close()
}

func (v *VectorStore) checkVector(vec []float32) error {
	if len(vec) != v.dimensions {
		return dqerr.Errorf(dqerr.CodeStoreInvalidInput,
			"vector has %d dimensions, index expects %d", len(vec), v.dimensions)
	}
	return nil
}
