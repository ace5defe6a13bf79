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
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sketchboard/internal/log"
)

const (
	CanvasFileName = "canvas.json"
	BackupsDirName = "backups"
	AssetsDirName  = "assets"
	ExportsDirName = "exports"

	// DefaultKeepBackups bounds the backups kept per project.
	DefaultKeepBackups = 20
)

var standardSubDirs = []string{AssetsDirName, ExportsDirName}

// FileStore keeps each project in <Root>/<projectID>/canvas.json. Every save
// first copies the previous file into backups/ and then replaces it through
// a temp file and rename.
type FileStore struct {
	Root        string
	KeepBackups int
	log         *slog.Logger
}

// NewFileStore creates root and the shared asset/export folders.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return &FileStore{Root: root, KeepBackups: DefaultKeepBackups, log: log.WithComponent("storage")}, nil
}

// CanvasPath is the canvas file of a project.
func (s *FileStore) CanvasPath(projectID string) string {
	return filepath.Join(s.Root, projectID, CanvasFileName)
}

func (s *FileStore) backupDir(projectID string) string {
	return filepath.Join(s.Root, projectID, BackupsDirName)
}

// Save writes payload transactionally, backing up the previous file.
func (s *FileStore) Save(_ context.Context, projectID string, payload []byte) error {
	if err := validProjectID(projectID); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return errors.New("payload is not valid JSON")
	}
	path := s.CanvasPath(projectID)
	bdir := s.backupDir(projectID)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", CanvasFileName, stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current canvas: %w", cerr)
		}
	}

	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", CanvasFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, payload); werr != nil {
		return fmt.Errorf("write temp canvas: %w", werr)
	}
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace canvas: %w", rerr)
	}
	if _, err := s.PruneBackups(projectID, s.KeepBackups); err != nil {
		s.logger().Warn("prune backups failed", slog.String("project", projectID), slog.Any("err", err))
	}
	s.logger().Debug("canvas saved", slog.String("project", projectID), slog.Int("bytes", len(payload)))
	return nil
}

// Load returns the current canvas. An unreadable or corrupt file falls back
// to the newest backup.
func (s *FileStore) Load(_ context.Context, projectID string) ([]byte, error) {
	if err := validProjectID(projectID); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.CanvasPath(projectID))
	if err == nil && json.Valid(b) {
		return b, nil
	}
	if err == nil {
		err = errors.New("canvas file is not valid JSON")
	}
	bak, berr := s.latestBackup(projectID)
	if berr != nil {
		if errors.Is(err, fs.ErrNotExist) && errors.Is(berr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("open canvas: %w; backup attempt: %v", err, berr)
	}
	s.logger().Warn("canvas restored from backup", slog.String("project", projectID), slog.Any("err", err))
	return bak, nil
}

// Projects lists project ids that have a canvas or a backup.
func (s *FileStore) Projects() ([]string, error) {
	ents, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.CanvasPath(e.Name())); err == nil {
			out = append(out, e.Name())
		} else if _, err := os.Stat(s.backupDir(e.Name())); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Backups returns backup file paths for a project, oldest first.
func (s *FileStore) Backups(projectID string) ([]string, error) {
	bdir := s.backupDir(projectID)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, CanvasFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// PruneBackups keeps the newest keep backups. keep <= 0 keeps all.
func (s *FileStore) PruneBackups(projectID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := s.Backups(projectID)
	if err != nil || len(all) <= keep {
		return 0, err
	}
	removed := 0
	for _, p := range all[:len(all)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) logger() *slog.Logger {
	if s.log == nil {
		s.log = log.WithComponent("storage")
	}
	return s.log
}

func (s *FileStore) latestBackup(projectID string) ([]byte, error) {
	all, err := s.Backups(projectID)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	for i := len(all) - 1; i >= 0; i-- {
		b, err := os.ReadFile(all[i])
		if err == nil && json.Valid(b) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no usable backup: %w", fs.ErrNotExist)
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
