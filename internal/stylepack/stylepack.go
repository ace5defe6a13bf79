/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stylepack manages named shape style presets. Presets live as YAML
// files under <root>/styles and travel between workspaces as zip packs.
package stylepack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "sketchboard/internal/log"
	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
)

// DirName is the styles directory below a workspace root.
const DirName = "styles"

const manifestName = "stylepack.manifest.txt"

// ErrUnknownPreset is returned by Library.Get for names with no preset.
var ErrUnknownPreset = errors.New("unknown style preset")

// Preset overrides parts of a shape.Style. Unset fields leave the shape's
// value alone.
type Preset struct {
	Name        string    `yaml:"name"`
	Fill        string    `yaml:"fill,omitempty"`
	Stroke      string    `yaml:"stroke,omitempty"`
	StrokeWidth *float64  `yaml:"stroke_width,omitempty"`
	Opacity     *float64  `yaml:"opacity,omitempty"`
	Dash        []float64 `yaml:"dash,omitempty"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Apply writes the preset's fields into st.
func (p Preset) Apply(st *shape.Style) error {
	if p.Fill != "" {
		c, err := vector.ParseHex(p.Fill)
		if err != nil {
			return fmt.Errorf("preset %s fill: %w", p.Name, err)
		}
		st.Fill = c
	}
	if p.Stroke != "" {
		c, err := vector.ParseHex(p.Stroke)
		if err != nil {
			return fmt.Errorf("preset %s stroke: %w", p.Name, err)
		}
		st.Stroke = c
	}
	if p.StrokeWidth != nil {
		if *p.StrokeWidth < 0 {
			return fmt.Errorf("preset %s: negative stroke width", p.Name)
		}
		st.StrokeWidth = *p.StrokeWidth
	}
	if p.Opacity != nil {
		st.Opacity = min(max(*p.Opacity, 0), 1)
	}
	if p.Dash != nil {
		st.Dash = nil
		if len(p.Dash) > 0 {
			st.Dash = append([]float64(nil), p.Dash...)
		}
	}
	return nil
}

func ptr(v float64) *float64 { return &v }

// Builtin returns the presets available in every workspace.
func Builtin() []Preset {
	return []Preset{
		{Name: "default", Fill: "transparent", Stroke: "#000000", StrokeWidth: ptr(2), Opacity: ptr(1), Dash: []float64{}},
		{Name: "sticky", Fill: "#fff59d", Stroke: "#f9a825", StrokeWidth: ptr(1)},
		{Name: "highlight", Fill: "#ffeb3b80", Stroke: "transparent", StrokeWidth: ptr(0)},
		{Name: "dashed", Stroke: "#455a64", StrokeWidth: ptr(2), Dash: []float64{6, 4}},
		{Name: "muted", Opacity: ptr(0.4)},
	}
}

// Library is a set of presets keyed by name.
type Library struct {
	presets map[string]Preset
}

// Get returns the named preset.
func (l *Library) Get(name string) (Preset, error) {
	p, ok := l.presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("%s: %w", name, ErrUnknownPreset)
	}
	return p, nil
}

// Names lists the presets in alphabetical order.
func (l *Library) Names() []string {
	out := make([]string, 0, len(l.presets))
	for n := range l.presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load returns the built-in presets overlaid with every *.yaml/*.yml file
// under <root>/styles. Files are read in name order, so later files win.
func Load(root string) (*Library, error) {
	lib := &Library{presets: map[string]Preset{}}
	for _, p := range Builtin() {
		lib.presets[p.Name] = p
	}
	dir := filepath.Join(root, DirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return lib, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read styles: %w", err)
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var pf presetFile
		if err := yaml.Unmarshal(b, &pf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		for _, p := range pf.Presets {
			name := strings.ToLower(strings.TrimSpace(p.Name))
			if name == "" {
				return nil, fmt.Errorf("%s: preset without a name", e.Name())
			}
			p.Name = name
			if err := p.Apply(&shape.Style{}); err != nil {
				return nil, fmt.Errorf("%s: %w", e.Name(), err)
			}
			lib.presets[name] = p
		}
	}
	return lib, nil
}

// Save writes presets to <root>/styles/<file>.yaml.
func Save(root, file string, presets []Preset) (string, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure styles dir: %w", err)
	}
	b, err := yaml.Marshal(presetFile{Presets: presets})
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, strings.TrimSuffix(file, filepath.Ext(file))+".yaml")
	return path, os.WriteFile(path, b, 0o644)
}

// ExportPack zips <root>/styles into destZip with a manifest at the archive
// root. A missing styles directory yields a manifest-only pack.
func ExportPack(root, destZip string) error {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "export").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" || strings.TrimSpace(destZip) == "" {
		return errors.New("root and destination are required")
	}
	stylesDir := filepath.Join(root, DirName)
	if err := os.MkdirAll(stylesDir, 0o755); err != nil {
		return fmt.Errorf("ensure styles dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZip)

	zf, err := os.Create(destZip)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("Sketchboard Style Pack\nCreated: %s\n\nContents mirror the workspace's /%s directory.\n",
		time.Now().Format(time.RFC3339), DirName)
	w, err := zw.Create(manifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	err = filepath.WalkDir(stylesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return fmt.Errorf("build zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	l.Info("style pack exported", slog.Int("files", added), slog.String("zip", destZip))
	return nil
}

// InstallPack extracts packZip into <root>/styles. Existing files are kept
// and entries that would land outside the styles directory are skipped.
// It returns the number of files written.
func InstallPack(root, packZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "install").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" || strings.TrimSpace(packZip) == "" {
		return 0, errors.New("root and pack are required")
	}
	stylesDir := filepath.Join(root, DirName)
	if err := os.MkdirAll(stylesDir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure styles dir: %w", err)
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		if f.Name == manifestName {
			continue
		}
		rel := strings.TrimPrefix(filepath.ToSlash(f.Name), DirName+"/")
		target := filepath.Join(stylesDir, filepath.FromSlash(rel))
		if inside, err := filepath.Rel(stylesDir, target); err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
			l.Warn("skip entry outside styles", slog.String("entry", f.Name))
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return installed, err
			}
			continue
		}
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("style pack installed", slog.Int("files", installed))
	return installed, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
