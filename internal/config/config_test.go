/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, name := range envKeys {
		t.Setenv(name, "")
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
	pc := cfg.Placement.Planner()
	if pc.PreferredGap != 80 || pc.Buffer != 20 || pc.SpiralStep != 50 || pc.MaxIterations != 100 || pc.DefaultOrigin.X != 100 {
		t.Fatalf("unexpected planner config %#v", pc)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Storage.Driver = "sqlite"
	cfg.Canvas.HistoryDepth = 20
	cfg.Render.FontPath = "/fonts/Inter.ttf"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, cfg)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("canvas: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Canvas.HistoryDepth != 50 {
		t.Fatalf("defaults not returned alongside the error: %#v", cfg.Canvas)
	}
}

func TestMergeKeepsDefaultsForUnsetFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Placement: PlacementConfig{Buffer: 35}, Storage: StorageConfig{Driver: " Postgres "}}
	mergeInto(&dst, &src)
	if dst.Placement.Buffer != 35 || dst.Placement.PreferredGap != 80 {
		t.Fatalf("placement merge wrong: %#v", dst.Placement)
	}
	if dst.Storage.Driver != "postgres" {
		t.Fatalf("driver not normalized: %q", dst.Storage.Driver)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/skb.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/skb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "Postgres")
	t.Setenv(EnvStorageDSN, "postgres://u@localhost/skb")
	t.Setenv(EnvHistoryDepth, "7")
	t.Setenv(EnvRenderDPR, "2")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvPlacementGap, "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://u@localhost/skb" {
		t.Fatalf("storage overrides not applied: %#v", cfg.Storage)
	}
	if cfg.Canvas.HistoryDepth != 7 || cfg.Render.DevicePixelRatio != 2 || !cfg.Logging.Source {
		t.Fatalf("overrides not applied: %#v", cfg)
	}
	if cfg.Placement.PreferredGap != 80 {
		t.Fatalf("invalid number should be ignored, got %v", cfg.Placement.PreferredGap)
	}
	if name, ok := EnvOverrideFor("storage.driver"); !ok || name != EnvStorageDriver {
		t.Fatalf("EnvOverrideFor(storage.driver) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("render.font_path"); ok {
		t.Fatalf("unset variable reported as override")
	}
}
