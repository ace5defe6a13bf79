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

	"sketchboard/internal/canvas"
	"sketchboard/internal/shape"
)

// shapeDoc is one searchable row derived from a saved canvas.
type shapeDoc struct {
	ID         string
	Kind       shape.Kind
	Z          int
	X, Y, W, H float64
	Text       string
	SourceID   string
	TargetID   string
}

// shapeDocs decodes payload into index rows. Text shapes contribute their
// text, images their generation prompt and source.
func shapeDocs(payload []byte) ([]shapeDoc, error) {
	shapes, err := canvas.DecodeShapes(payload)
	if err != nil {
		return nil, err
	}
	docs := make([]shapeDoc, 0, len(shapes))
	for z, s := range shapes {
		b := shape.Bounds(s)
		d := shapeDoc{ID: s.Common().ID, Kind: s.Kind(), Z: z, X: b.X, Y: b.Y, W: b.W, H: b.H}
		switch v := s.(type) {
		case *shape.Text:
			d.Text = v.Text
		case *shape.Image:
			parts := []string{v.Src}
			if v.Meta != nil && v.Meta.Prompt != "" {
				parts = append(parts, v.Meta.Prompt)
			}
			d.Text = strings.Join(parts, " ")
		case *shape.Arrow:
			d.SourceID, d.TargetID = v.SourceID, v.TargetID
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func reindexShapes(ctx context.Context, tx *sql.Tx, projectID string, docs []shapeDoc) error {
	for _, q := range []string{
		`DELETE FROM shape_docs WHERE project_id = ?`,
		`DELETE FROM connector_refs WHERE project_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, projectID); err != nil {
			return fmt.Errorf("clear shape index: %w", err)
		}
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO shape_docs(project_id, shape_id, kind, z, x, y, w, h, text) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare shape insert: %w", err)
	}
	defer ins.Close()
	ref, err := tx.PrepareContext(ctx, `INSERT INTO connector_refs(project_id, from_id, to_id, role) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ref insert: %w", err)
	}
	defer ref.Close()
	for _, d := range docs {
		if _, err := ins.ExecContext(ctx, projectID, d.ID, string(d.Kind), d.Z, d.X, d.Y, d.W, d.H, d.Text); err != nil {
			return fmt.Errorf("index shape %s: %w", d.ID, err)
		}
		for role, to := range map[string]string{"source": d.SourceID, "target": d.TargetID} {
			if to == "" {
				continue
			}
			if _, err := ref.ExecContext(ctx, projectID, d.ID, to, role); err != nil {
				return fmt.Errorf("index connector %s: %w", d.ID, err)
			}
		}
	}
	return nil
}

// SearchQuery filters the shape index of one project.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Kinds restricts to shape kinds. Limit/Offset paginate; Limit defaults to 100.
type SearchQuery struct {
	ProjectID string
	Text      string
	Kinds     []shape.Kind
	Limit     int
	Offset    int
}

// SearchResult is one matching shape. Snippet marks FTS hits with [ ].
type SearchResult struct {
	ShapeID string
	Kind    shape.Kind
	Z       int
	X, Y    float64
	W, H    float64
	Snippet string
}

// Search finds shapes by text and kind, in z-order.
func (s *SQLiteStore) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT d.shape_id, d.kind, d.z, d.x, d.y, d.w, d.h, snippet(fts_shapes, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_shapes JOIN shape_docs d ON fts_shapes.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_shapes MATCH ? AND d.project_id = ?\n")
		args = append(args, q.Text, q.ProjectID)
	} else {
		sb.WriteString("SELECT d.shape_id, d.kind, d.z, d.x, d.y, d.w, d.h, ''\n")
		sb.WriteString("FROM shape_docs d\nWHERE d.project_id = ?\n")
		args = append(args, q.ProjectID)
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, string(k))
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.z\nLIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			kind string
			sn   sql.NullString
		)
		if err := rows.Scan(&r.ShapeID, &kind, &r.Z, &r.X, &r.Y, &r.W, &r.H, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Kind = shape.Kind(kind)
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ConnectorsOf returns the ids of arrows attached to shapeID, as source or
// target, in the last saved canvas.
func (s *SQLiteStore) ConnectorsOf(ctx context.Context, projectID, shapeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT from_id FROM connector_refs
		WHERE project_id = ? AND to_id = ?
		ORDER BY from_id`, projectID, shapeID)
	if err != nil {
		return nil, fmt.Errorf("connector query: %w", err)
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

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
