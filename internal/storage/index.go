/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "sketchboard/internal/log"
	"sketchboard/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds the per-workspace database under the store root.
	IndexDirName  = ".skb"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the database file used by OpenSQLite(root).
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// SQLiteStore keeps canvases, autosave snapshots and a shape search index in
// one SQLite file opened in WAL mode.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenSQLite opens or creates <root>/.skb/index.sqlite.
func OpenSQLite(root string) (*SQLiteStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}
	return OpenSQLiteFile(IndexPath(root))
}

// OpenSQLiteFile opens or creates the database at path, enables WAL mode and
// brings the schema up to date.
func OpenSQLiteFile(path string) (*SQLiteStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("path", path))
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("sqlite store ready")
	return &SQLiteStore{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

// DB exposes the underlying handle for maintenance tasks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path is the database file.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// language=SQL
const upsertCanvasSQL = `INSERT INTO canvases(project_id, payload, shape_count, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(project_id) DO UPDATE SET payload = excluded.payload, shape_count = excluded.shape_count, updated_at = excluded.updated_at`

// Save stores the payload and refreshes the project's shape index in one
// transaction. A payload whose shapes cannot be decoded is rejected.
func (s *SQLiteStore) Save(ctx context.Context, projectID string, payload []byte) error {
	if err := validProjectID(projectID); err != nil {
		return err
	}
	docs, err := shapeDocs(payload)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, upsertCanvasSQL, projectID, payload, len(docs), now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save canvas: %w", err)
	}
	if err := reindexShapes(ctx, tx, projectID, docs); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit canvas: %w", err)
	}
	s.log.Debug("canvas saved", slog.String("project", projectID), slog.Int("shapes", len(docs)))
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, projectID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM canvases WHERE project_id = ?`, projectID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load canvas: %w", err)
	}
	return payload, nil
}

// Projects lists stored project ids, most recently saved first.
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id FROM canvases ORDER BY updated_at DESC, project_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Delete removes a project's canvas, shape index and snapshots.
func (s *SQLiteStore) Delete(ctx context.Context, projectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM shape_docs WHERE project_id = ?`,
		`DELETE FROM connector_refs WHERE project_id = ?`,
		`DELETE FROM snapshots WHERE project_id = ?`,
		`DELETE FROM canvases WHERE project_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, projectID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete project: %w", err)
		}
	}
	return tx.Commit()
}

// Check runs PRAGMA quick_check and probes the core table.
func (s *SQLiteStore) Check(ctx context.Context) error {
	var chk string
	if err := s.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("quick_check: %s", chk)
	}
	if _, err := s.db.ExecContext(ctx, `SELECT 1 FROM canvases LIMIT 1;`); err != nil {
		return fmt.Errorf("probe canvases: %w", err)
	}
	return nil
}

// RecoverSQLite opens the database at path and, when it is unreadable,
// moves it into a timestamped backup and starts a fresh one. It reports
// whether a reset happened. Canvases lost this way are recoverable from a
// FileStore or from the backup.
func RecoverSQLite(ctx context.Context, path string) (*SQLiteStore, bool, error) {
	s, err := OpenSQLiteFile(path)
	if err == nil {
		if err = s.Check(ctx); err == nil {
			return s, false, nil
		}
		_ = s.Close()
	}
	applog.WithComponent("storage").Warn("sqlite store unusable, resetting", slog.String("path", path), slog.Any("err", err))
	backupDBFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	s, err = OpenSQLiteFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("reopen after reset: %w", err)
	}
	return s, true, nil
}

// backupDBFile copies the database into a timestamped backup next to it.
func backupDBFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Keep the stored schema so runMigrations can upgrade it.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the current tables for a fresh database. Statements
// are idempotent so an older database only gains what it lacks.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			project_id  TEXT PRIMARY KEY,
			payload     BLOB NOT NULL,
			shape_count INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY,
			project_id TEXT NOT NULL,
			ts         TEXT NOT NULL,
			payload    BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_project_ts ON snapshots(project_id, ts);`,

		// One row per shape of the latest saved canvas.
		`CREATE TABLE IF NOT EXISTS shape_docs (
			doc_id     INTEGER PRIMARY KEY,
			project_id TEXT NOT NULL,
			shape_id   TEXT NOT NULL,
			kind       TEXT NOT NULL,
			z          INTEGER NOT NULL,
			x          REAL NOT NULL,
			y          REAL NOT NULL,
			w          REAL NOT NULL,
			h          REAL NOT NULL,
			text       TEXT,
			UNIQUE(project_id, shape_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_shape_docs_project ON shape_docs(project_id, z);`,

		// External-content FTS5 index over shape_docs.text, kept in sync by triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_shapes USING fts5(
			text,
			content='shape_docs',
			content_rowid='doc_id',
			tokenize = 'unicode61'
		);`,

		// Arrow endpoints: from is the arrow, to is the attached shape.
		`CREATE TABLE IF NOT EXISTS connector_refs (
			project_id TEXT NOT NULL,
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			role       TEXT NOT NULL,
			PRIMARY KEY(project_id, from_id, role)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_connector_refs_to ON connector_refs(project_id, to_id);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS shape_docs_ai AFTER INSERT ON shape_docs BEGIN
			INSERT INTO fts_shapes(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS shape_docs_ad AFTER DELETE ON shape_docs BEGIN
			INSERT INTO fts_shapes(fts_shapes, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Written by a newer build; leave it alone.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 canvases had no shape_count column.
			if !hasColumn(ctx, db, "canvases", "shape_count") {
				stmts = append(stmts, `ALTER TABLE canvases ADD COLUMN shape_count INTEGER NOT NULL DEFAULT 0;`)
			}
			stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_snapshots_project_ts ON snapshots(project_id, ts);`)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	// Best-effort FTS optimize; failures are harmless.
	_, _ = db.ExecContext(ctx, `INSERT INTO fts_shapes(fts_shapes) VALUES('optimize')`)
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) bool {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false
		}
		if strings.EqualFold(name, column) {
			return true
		}
	}
	return false
}
