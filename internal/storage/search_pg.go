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
	"fmt"
	"strings"

	"sketchboard/internal/shape"
)

var (
	_ Searcher    = (*PGStore)(nil)
	_ Searcher    = (*SQLiteStore)(nil)
	_ Snapshotter = (*PGStore)(nil)
	_ Snapshotter = (*SQLiteStore)(nil)
)

func reindexShapesPG(ctx context.Context, tx *sql.Tx, projectID string, docs []shapeDoc) error {
	for _, q := range []string{
		`DELETE FROM shape_docs WHERE project_id = $1`,
		`DELETE FROM connector_refs WHERE project_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, projectID); err != nil {
			return fmt.Errorf("clear shape index: %w", err)
		}
	}
	for _, d := range docs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO shape_docs(project_id, shape_id, kind, z, x, y, w, h, body)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			projectID, d.ID, string(d.Kind), d.Z, d.X, d.Y, d.W, d.H, d.Text); err != nil {
			return fmt.Errorf("index shape %s: %w", d.ID, err)
		}
		for _, r := range [][2]string{{"source", d.SourceID}, {"target", d.TargetID}} {
			if r[1] == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO connector_refs(project_id, from_id, to_id, role) VALUES ($1, $2, $3, $4)`,
				projectID, d.ID, r[1], r[0]); err != nil {
				return fmt.Errorf("index connector %s: %w", d.ID, err)
			}
		}
	}
	return nil
}

// Search runs q against the tsvector index. Text is parsed with
// plainto_tsquery, so FTS5 operators are treated as plain words; simple
// terms match the same shapes as the SQLite index.
func (s *PGStore) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		tq := "plainto_tsquery('simple', " + place(text) + ")"
		b.WriteString("SELECT d.shape_id, d.kind, d.z, d.x, d.y, d.w, d.h, ")
		b.WriteString("ts_headline('simple', d.body, " + tq + ", 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=10') ")
		b.WriteString("FROM shape_docs d WHERE d.tsv @@ " + tq + " AND d.project_id = " + place(q.ProjectID))
	} else {
		b.WriteString("SELECT d.shape_id, d.kind, d.z, d.x, d.y, d.w, d.h, '' ")
		b.WriteString("FROM shape_docs d WHERE d.project_id = " + place(q.ProjectID))
	}
	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		b.WriteString(" AND d.kind = ANY (" + place(kinds) + ")")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.z LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			kind string
		)
		if err := rows.Scan(&r.ShapeID, &kind, &r.Z, &r.X, &r.Y, &r.W, &r.H, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Kind = shape.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ConnectorsOf mirrors SQLiteStore.ConnectorsOf.
func (s *PGStore) ConnectorsOf(ctx context.Context, projectID, shapeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT from_id FROM connector_refs
		WHERE project_id = $1 AND to_id = $2 ORDER BY from_id`, projectID, shapeID)
	if err != nil {
		return nil, fmt.Errorf("connector query: %w", err)
	}
	defer func() { _ = rows.Close() }()
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
