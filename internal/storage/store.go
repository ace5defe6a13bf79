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
	"fmt"
	"strings"
	"time"

	"sketchboard/internal/config"
)

// ErrNotFound is returned by Load when a project has no saved canvas.
var ErrNotFound = errors.New("canvas not found")

// Store saves and loads serialized canvas payloads.
type Store interface {
	Load(ctx context.Context, projectID string) ([]byte, error)
	Save(ctx context.Context, projectID string, payload []byte) error
	Close() error
}

// Snapshotter is implemented by stores that keep an autosave history.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, projectID string, payload []byte, ts time.Time) error
	LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error)
	ListSnapshots(ctx context.Context, projectID string, limit int) ([]Snapshot, error)
	PruneOldSnapshots(ctx context.Context, projectID string, keepLast int) (int64, error)
}

// Searcher is implemented by stores that index shapes on Save.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
	ConnectorsOf(ctx context.Context, projectID, shapeID string) ([]string, error)
}

const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store selected by cfg.Driver. File and SQLite stores live
// under root; Postgres uses cfg.DSN.
func Open(ctx context.Context, cfg config.StorageConfig, root string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		return NewFileStore(root)
	case DriverSQLite:
		if cfg.DSN != "" {
			return OpenSQLiteFile(cfg.DSN)
		}
		return OpenSQLite(root)
	case DriverPostgres, "pgx":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// validProjectID rejects ids that would escape a store's directory.
func validProjectID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("project id is required")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid project id %q", id)
	}
	return nil
}
