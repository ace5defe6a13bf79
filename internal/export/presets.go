/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"sketchboard/internal/render"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb    PresetName = "web"
	PresetRetina PresetName = "retina"
	PresetPrint  PresetName = "print"
)

// printScale renders 300 dpi rasters from 72 dpi world units.
const printScale = 300.0 / 72.0

// BatchOptions controls a multi-format export of one canvas.
//
// Files are written to <OutDir>/<preset>/<Name>.<ext>. Name defaults to
// "canvas". Formats overrides the preset's default list; Scale overrides the
// preset's raster scale.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: png, svg, pdf
	Scale   float64
	OutDir  string
	Name    string
	Images  *render.ImageCache
}

// Batch runs the exports of a preset and returns the written paths in
// format order.
func Batch(scene render.Scene, opt BatchOptions) ([]string, error) {
	if opt.OutDir == "" {
		return nil, fmt.Errorf("batch export: out dir is empty")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	preset := opt.Preset
	if preset == "" {
		preset = PresetWeb
	}
	name := opt.Name
	if name == "" {
		name = "canvas"
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(preset)
	}
	base := filepath.Join(opt.OutDir, string(preset))

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(base, name+"."+f)
		var err error
		switch f {
		case "png":
			err = PNG(scene, out, PNGOptions{Scale: scale, Images: opt.Images})
		case "svg":
			err = SVGFile(scene, out, SVGOptions{Images: opt.Images})
		case "pdf":
			err = PDFFile(scene, out, PDFOptions{Title: name, Images: opt.Images})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s export: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetPrint:
		return []string{"pdf", "png"}
	case PresetRetina:
		return []string{"png"}
	default:
		return []string{"png", "svg"}
	}
}

func presetScale(p PresetName) float64 {
	switch p {
	case PresetRetina:
		return 2
	case PresetPrint:
		return printScale
	default:
		return 1
	}
}
