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
	"errors"
	"os"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := OpenSQLite(root)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	ctx := context.Background()
	payload, _ := samplePayload(t)
	if err := s.Save(ctx, "main", payload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "main")
	if err != nil || string(got) != string(payload) {
		t.Fatalf("Load mismatch (err %v)", err)
	}
	if _, err := s.Load(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing project err = %v", err)
	}
	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT shape_count FROM canvases WHERE project_id='main'`).Scan(&count); err != nil || count != 4 {
		t.Fatalf("shape_count = %d (err %v)", count, err)
	}
	if err := s.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestSQLiteStoreRejectsMalformedPayload(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.Save(ctx, "main", []byte(`{"shapes":[["a",{"type":"blob"}]]}`)); err == nil {
		t.Fatalf("malformed payload stored")
	}
	if _, err := s.Load(ctx, "main"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected save left a row behind: %v", err)
	}
}

func TestSQLiteStoreProjectsAndDelete(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	payload, _ := samplePayload(t)
	for _, id := range []string{"a", "b"} {
		if err := s.Save(ctx, id, payload); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.Projects(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("Projects = %v (err %v)", ids, err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted project still loads")
	}
	res, err := s.Search(ctx, SearchQuery{ProjectID: "a"})
	if err != nil || len(res) != 0 {
		t.Fatalf("deleted project still indexed: %v (err %v)", res, err)
	}
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	s, err := OpenSQLite(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "main", []byte(`{"shapes":[]}`)); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	s, err = OpenSQLite(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Load(ctx, "main"); err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
}
