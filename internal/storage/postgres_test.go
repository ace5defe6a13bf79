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
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"sketchboard/internal/canvas"
	"sketchboard/internal/shape"
)

func openPGForTest(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPGStoreRoundTrip(t *testing.T) {
	s := openPGForTest(t)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = s.DB().ExecContext(context.Background(), `DELETE FROM canvases WHERE project_id = $1`, id)
		_, _ = s.DB().ExecContext(context.Background(), `DELETE FROM canvas_snapshots WHERE project_id = $1`, id)
	})
	if _, err := s.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before save = %v", err)
	}
	payload, _ := samplePayload(t)
	if err := s.Save(ctx, id, payload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// JSONB reorders keys; compare decoded content.
	want, _ := canvas.DecodeShapes(payload)
	have, err := canvas.DecodeShapes(got)
	if err != nil || len(have) != len(want) {
		t.Fatalf("decoded %d shapes, want %d (err %v)", len(have), len(want), err)
	}
	for i := range want {
		a, _ := json.Marshal(want[i])
		b, _ := json.Marshal(have[i])
		if string(a) != string(b) {
			t.Fatalf("shape %d differs:\n%s\n%s", i, a, b)
		}
	}

	for i := 0; i < 4; i++ {
		if err := s.SaveSnapshot(ctx, id, []byte(`{"shapes":[]}`), time.Now().Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if n, err := s.PruneOldSnapshots(ctx, id, 2); err != nil || n != 2 {
		t.Fatalf("prune removed %d (err %v)", n, err)
	}
	list, err := s.ListSnapshots(ctx, id, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListSnapshots = %d (err %v)", len(list), err)
	}
	latest, err := s.LatestSnapshot(ctx, id)
	if err != nil || !latest.TS.Equal(list[0].TS) {
		t.Fatalf("LatestSnapshot = %v (err %v), want %v", latest.TS, err, list[0].TS)
	}
	if _, err := s.LatestSnapshot(ctx, id+"-none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSnapshot on empty = %v", err)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	if v, err := parseMigrationVersion("migrations/002_snapshots.sql"); err != nil || v != 2 {
		t.Fatalf("got %d err %v", v, err)
	}
	if _, err := parseMigrationVersion("snapshots.sql"); err == nil {
		t.Fatalf("expected error without numeric prefix")
	}
}

// TestSearchParitySQLiteVsPG saves the same canvas into both stores and
// expects the same shapes back for plain-term queries.
func TestSearchParitySQLiteVsPG(t *testing.T) {
	pg := openPGForTest(t)
	lite, _ := seededStore(t)
	ctx := context.Background()
	id := "parity-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM canvases WHERE project_id = $1`,
			`DELETE FROM shape_docs WHERE project_id = $1`,
			`DELETE FROM connector_refs WHERE project_id = $1`,
		} {
			_, _ = pg.DB().ExecContext(context.Background(), q, id)
		}
	})
	payload, ids := samplePayload(t)
	if err := pg.Save(ctx, id, payload); err != nil {
		t.Fatalf("pg Save: %v", err)
	}

	queries := []SearchQuery{
		{Text: "hello"},
		{Text: "fox"},
		{Kinds: []shape.Kind{shape.KindArrow, shape.KindRectangle}},
		{Limit: 2, Offset: 1},
	}
	for _, q := range queries {
		lq, pq := q, q
		lq.ProjectID, pq.ProjectID = "main", id
		want, err := lite.Search(ctx, lq)
		if err != nil {
			t.Fatalf("sqlite %+v: %v", q, err)
		}
		got, err := pg.Search(ctx, pq)
		if err != nil {
			t.Fatalf("pg %+v: %v", q, err)
		}
		if len(got) != len(want) {
			t.Fatalf("%+v: pg %d results, sqlite %d", q, len(got), len(want))
		}
		for i := range want {
			if got[i].ShapeID != want[i].ShapeID || got[i].Kind != want[i].Kind || got[i].Z != want[i].Z {
				t.Fatalf("%+v result %d: pg %+v sqlite %+v", q, i, got[i], want[i])
			}
		}
	}

	refs, err := pg.ConnectorsOf(ctx, id, ids["text"])
	if err != nil || len(refs) != 1 || refs[0] != ids["arrow"] {
		t.Fatalf("ConnectorsOf = %v (err %v)", refs, err)
	}
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for i, e := range entries {
		v, err := parseMigrationVersion(e.Name())
		if err != nil || v != int64(i+1) {
			t.Fatalf("%s: version %d (err %v), want %d", e.Name(), v, err, i+1)
		}
	}
	if len(entries) != 3 {
		t.Fatalf("got %d migrations", len(entries))
	}
}
