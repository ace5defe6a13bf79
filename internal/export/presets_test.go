/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sketchboard/internal/shape"
)

func TestBatch_WebPreset(t *testing.T) {
	out := t.TempDir()
	paths, err := Batch(&scene{shapes: []shape.Shape{redRect()}}, BatchOptions{Preset: PresetWeb, OutDir: out, Name: "board"})
	if err != nil {
		t.Fatalf("batch web: %v", err)
	}
	want := []string{
		filepath.Join(out, "web", "board.png"),
		filepath.Join(out, "web", "board.svg"),
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Fatalf("paths[%d] = %s, want %s", i, paths[i], p)
		}
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatch_PrintPreset(t *testing.T) {
	out := t.TempDir()
	paths, err := Batch(&scene{shapes: []shape.Shape{redRect()}}, BatchOptions{Preset: PresetPrint, OutDir: out})
	if err != nil {
		t.Fatalf("batch print: %v", err)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[0], filepath.Join("print", "canvas.pdf")) {
		t.Fatalf("paths = %v", paths)
	}
	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatalf("open png: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 80 world units at 300 dpi
	if cfg.Width < 333 || cfg.Width > 334 {
		t.Fatalf("print width = %d", cfg.Width)
	}
}

func TestBatch_RetinaScale(t *testing.T) {
	out := t.TempDir()
	paths, err := Batch(&scene{shapes: []shape.Shape{redRect()}}, BatchOptions{Preset: PresetRetina, OutDir: out})
	if err != nil {
		t.Fatalf("batch retina: %v", err)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Fatalf("retina size = %dx%d, want 160x120", cfg.Width, cfg.Height)
	}
}

func TestBatch_Errors(t *testing.T) {
	sc := &scene{shapes: []shape.Shape{redRect()}}
	if _, err := Batch(sc, BatchOptions{}); err == nil {
		t.Fatalf("expected error for empty out dir")
	}
	if _, err := Batch(sc, BatchOptions{OutDir: t.TempDir(), Formats: []string{"cbz"}}); err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("unknown format: err = %v", err)
	}
}
