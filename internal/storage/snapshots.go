/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(project_id, ts, payload) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, payload FROM snapshots WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, payload FROM snapshots WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE project_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE project_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// snapshotTimeLayout is fixed width so timestamps sort as text.
const snapshotTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is an autosaved canvas payload.
type Snapshot struct {
	TS      time.Time
	Payload []byte
}

// SaveSnapshot records an autosave of a project's canvas.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, projectID string, payload []byte, ts time.Time) error {
	if err := validProjectID(projectID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, insertSnapshotSQL, projectID, ts.UTC().Format(snapshotTimeLayout), payload)
	return err
}

// LatestSnapshot returns the newest snapshot, or ErrNotFound.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var (
		tsStr string
		snap  Snapshot
	)
	err := s.db.QueryRowContext(ctx, selectLatestSnapshotSQL, projectID).Scan(&tsStr, &snap.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot for %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, err
	}
	// A bad timestamp still returns the payload.
	snap.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
	return snap, nil
}

// ListSnapshots returns up to limit most recent snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, projectID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listSnapshotsSQL, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var (
			tsStr string
			snap  Snapshot
		)
		if err := rows.Scan(&tsStr, &snap.Payload); err != nil {
			return nil, err
		}
		snap.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots for the project and deletes older ones.
func (s *SQLiteStore) PruneOldSnapshots(ctx context.Context, projectID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneOldSnapshotsSQL, projectID, projectID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
