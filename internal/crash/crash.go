/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report plus an
// autosave of the open canvas.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "sketchboard/internal/log"
	"sketchboard/internal/storage"
	"sketchboard/internal/telemetry"
	"sketchboard/internal/version"
)

// exitFn is swapped in tests so Recover does not end the process.
var exitFn = os.Exit

// uploadTimeout bounds the opt-in crash upload before exit.
const uploadTimeout = 2 * time.Second

// Target names what to preserve when a command panics. A nil Target still
// produces a report in the temp dir.
type Target struct {
	// Dir is the project directory; reports and autosaves go to its backups folder.
	Dir string
	// Snapshot returns the current canvas payload, typically Engine.Serialize.
	Snapshot func() ([]byte, error)
}

// Recover captures a panic, logs it with the stack, writes a report and
// autosaves the canvas, then exits with status 2.
//
// Usage: defer crash.Recover(target)
func Recover(t *Target) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(t, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if t != nil && t.Snapshot != nil {
		if path, err := autosave(t); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	_ = telemetry.Default().UploadCrash(ctx, report)
	cancel()

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func reportDir(t *Target) string {
	if t == nil || t.Dir == "" {
		return os.TempDir()
	}
	dir := filepath.Join(t.Dir, storage.BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

func stamp() string { return time.Now().Format("20060102-150405.000000") }

// writeReport writes the report file and returns its path and contents.
func writeReport(t *Target, panicVal any, stack []byte) (string, []byte, error) {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Sketchboard Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Dir != "" {
		_, _ = fmt.Fprintf(&buf, "Project: %s\n", t.Dir)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	path := filepath.Join(reportDir(t), "crash-"+stamp()+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), f.Close()
}

// autosave writes the canvas payload next to the report. A panicking
// Snapshot is reported as an error.
func autosave(t *Target) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()
	data, err := t.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	path = filepath.Join(reportDir(t), "crash-"+stamp()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write autosave: %w", err)
	}
	return path, nil
}
