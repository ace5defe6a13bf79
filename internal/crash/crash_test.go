/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchboard/internal/canvas"
	"sketchboard/internal/shape"
	"sketchboard/internal/storage"
)

// silenceStderr swallows what Recover prints for the duration of a test.
func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, r)
		close(done)
	}()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func filesWith(t *testing.T, dir, suffix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func TestWriteReport_TempDir(t *testing.T) {
	path, report, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if string(b) != string(report) {
		t.Fatalf("returned report differs from file")
	}
	s := string(b)
	if !strings.Contains(s, "Sketchboard Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content: %s", s)
	}
}

func TestWriteReport_ProjectBackups(t *testing.T) {
	dir := t.TempDir()
	path, _, err := writeReport(&Target{Dir: dir}, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, storage.BackupsDirName) {
		t.Fatalf("report at %s, want under backups", path)
	}
}

func TestRecover_WritesReportAndAutosave(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)

	e := canvas.New(canvas.Options{})
	e.Add(shape.NewRectangle(0, 0, 10, 10))
	dir := t.TempDir()

	func() {
		defer Recover(&Target{Dir: dir, Snapshot: e.Serialize})
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	bdir := filepath.Join(dir, storage.BackupsDirName)
	logs := filesWith(t, bdir, ".log")
	if len(logs) != 1 {
		t.Fatalf("reports = %v", logs)
	}
	b, _ := os.ReadFile(logs[0])
	if !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report does not contain panic: %s", b)
	}
	saves := filesWith(t, bdir, ".json")
	if len(saves) != 1 {
		t.Fatalf("autosaves = %v", saves)
	}
	data, _ := os.ReadFile(saves[0])
	restored := canvas.New(canvas.Options{})
	if err := restored.Deserialize(data); err != nil {
		t.Fatalf("autosave is not a valid payload: %v", err)
	}
	if restored.Len() != 1 {
		t.Fatalf("restored %d shapes, want 1", restored.Len())
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := stubExit(t)
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit called without panic")
	}
}

func TestAutosave_SnapshotFailures(t *testing.T) {
	dir := t.TempDir()
	if _, err := autosave(&Target{Dir: dir, Snapshot: func() ([]byte, error) { return nil, errors.New("busy") }}); err == nil {
		t.Fatalf("expected snapshot error")
	}
	if _, err := autosave(&Target{Dir: dir, Snapshot: func() ([]byte, error) { panic("corrupt") }}); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("panicking snapshot: err = %v", err)
	}
}
