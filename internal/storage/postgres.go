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
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "sketchboard/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DSNEnv names the environment variable tests and tools read a Postgres DSN from.
const DSNEnv = "SKB_PG_DSN"

// PGStore keeps canvases in Postgres through the pgx database/sql driver.
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgres connects, pings and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &PGStore{db: db, log: applog.WithComponent("storage")}
	if err := s.migrate(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle.
func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Save(ctx context.Context, projectID string, payload []byte) error {
	if err := validProjectID(projectID); err != nil {
		return err
	}
	docs, err := shapeDocs(payload)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO canvases(project_id, payload, shape_count, updated_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (project_id) DO UPDATE SET payload = EXCLUDED.payload, shape_count = EXCLUDED.shape_count, updated_at = now()`,
		projectID, string(payload), len(docs))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save canvas: %w", err)
	}
	if err := reindexShapesPG(ctx, tx, projectID, docs); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Load returns the payload. JSONB normalizes whitespace and key order, so
// the bytes differ from what was saved while the content is the same.
func (s *PGStore) Load(ctx context.Context, projectID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload::text FROM canvases WHERE project_id = $1`, projectID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load canvas: %w", err)
	}
	return []byte(payload), nil
}

// SaveSnapshot records an autosave.
func (s *PGStore) SaveSnapshot(ctx context.Context, projectID string, payload []byte, ts time.Time) error {
	if err := validProjectID(projectID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO canvas_snapshots(project_id, ts, payload) VALUES ($1, $2, $3::jsonb)`,
		projectID, ts.UTC(), string(payload))
	return err
}

// LatestSnapshot returns the newest snapshot, or ErrNotFound.
func (s *PGStore) LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var (
		snap    Snapshot
		payload string
	)
	err := s.db.QueryRowContext(ctx, `SELECT ts, payload::text FROM canvas_snapshots
		WHERE project_id = $1 ORDER BY ts DESC, id DESC LIMIT 1`, projectID).Scan(&snap.TS, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot for %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.Payload = []byte(payload)
	return snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *PGStore) ListSnapshots(ctx context.Context, projectID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ts, payload::text FROM canvas_snapshots
		WHERE project_id = $1 ORDER BY ts DESC, id DESC LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			payload string
		)
		if err := rows.Scan(&snap.TS, &payload); err != nil {
			return nil, err
		}
		snap.Payload = []byte(payload)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps the newest keepLast snapshots.
func (s *PGStore) PruneOldSnapshots(ctx context.Context, projectID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM canvas_snapshots WHERE project_id = $1 AND id NOT IN (
		SELECT id FROM canvas_snapshots WHERE project_id = $1 ORDER BY ts DESC, id DESC LIMIT $2)`, projectID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *PGStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseMigrationVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		s.log.Info("applying migration", slog.String("file", fname))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

// parseMigrationVersion reads the numeric prefix of NNN_name.sql.
func parseMigrationVersion(name string) (int64, error) {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
