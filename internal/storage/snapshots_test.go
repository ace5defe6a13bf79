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
	"errors"
	"testing"
	"time"
)

func TestSnapshotsCRUD(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.LatestSnapshot(ctx, "main"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSnapshot on empty = %v", err)
	}
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveSnapshot(ctx, "main", []byte(`{"n":0}`), base); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := s.LatestSnapshot(ctx, "main")
	if err != nil || string(snap.Payload) != `{"n":0}` || !snap.TS.Equal(base) {
		t.Fatalf("LatestSnapshot got %q at %v err %v", snap.Payload, snap.TS, err)
	}
	for i := 1; i <= 5; i++ {
		b := []byte{'{', '"', 'n', '"', ':', byte('0' + i), '}'}
		if err := s.SaveSnapshot(ctx, "main", b, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	if err := s.SaveSnapshot(ctx, "other", []byte(`{}`), base); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListSnapshots(ctx, "main", 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("ListSnapshots got %d err %v", len(list), err)
	}
	if string(list[0].Payload) != `{"n":5}` {
		t.Fatalf("newest first violated: %s", list[0].Payload)
	}
	n, err := s.PruneOldSnapshots(ctx, "main", 3)
	if err != nil || n != 3 {
		t.Fatalf("PruneOldSnapshots removed %d err %v", n, err)
	}
	list, _ = s.ListSnapshots(ctx, "main", 10)
	if len(list) != 3 || string(list[2].Payload) != `{"n":3}` {
		t.Fatalf("after prune: %d snapshots", len(list))
	}
	if other, _ := s.ListSnapshots(ctx, "other", 10); len(other) != 1 {
		t.Fatalf("prune touched another project")
	}
}
