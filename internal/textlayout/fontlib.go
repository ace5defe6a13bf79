/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"math"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultFamily is the family the bundled Go Regular face is registered under.
const DefaultFamily = "sans"

// FontLibrary stores loaded OpenType fonts mapped by family/weight/italic.
// Note: this is a minimal in-memory library; it does not support named
// instances/variations beyond weight and italic flags.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	weight int
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// LoadTTF loads a font file into the library under the given family/weight/italic.
func (fl *FontLibrary) LoadTTF(family string, weight int, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	if err := fl.LoadBytes(family, weight, italic, data); err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	return nil
}

// LoadBytes registers an in-memory TTF/OTF.
func (fl *FontLibrary) LoadBytes(family string, weight int, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: family, weight: weight, italic: italic}] = f
	return nil
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	// Exact match first
	if f, ok := fl.fonts[fontKey{family: spec.Family, weight: spec.Weight, italic: spec.Italic}]; ok {
		return f
	}
	// Same family, any weight/italic
	for k, f := range fl.fonts {
		if k.family == spec.Family {
			return f
		}
	}
	// Finally the default family
	for k, f := range fl.fonts {
		if k.family == DefaultFamily {
			return f
		}
	}
	return nil
}

// DefaultLibrary returns a library with Go Regular registered as DefaultFamily.
func DefaultLibrary() *FontLibrary {
	fl := NewFontLibrary()
	if err := fl.LoadBytes(DefaultFamily, 400, false, goregular.TTF); err != nil {
		// goregular is compiled in; a parse failure means a broken x/image build
		panic(err)
	}
	return fl
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
// Faces are cached per font and size because opentype.NewFace is not cheap.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	font *opentype.Font
	size float64
}

func NewOTProvider(lib *FontLibrary) *OTProvider {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &OTProvider{Lib: lib, DPI: 72}
}

func (p *OTProvider) face(spec FontSpec) (font.Face, bool) {
	if spec.SizePt <= 0 {
		spec.SizePt = 12
	}
	f := p.Lib.find(spec)
	if f == nil {
		return nil, false
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	// quarter-point buckets keep the cache bounded during font-size drags
	size := math.Round(spec.SizePt*4) / 4
	k := faceKey{font: f, size: size}
	p.mu.Lock()
	defer p.mu.Unlock()
	if face, ok := p.faces[k]; ok {
		return face, true
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: dpi, Hinting: font.HintingNone})
	if err != nil {
		return nil, false
	}
	if p.faces == nil {
		p.faces = make(map[faceKey]font.Face)
	}
	p.faces[k] = face
	return face, true
}

func (p *OTProvider) fallback() Provider {
	if p.Fallback == nil {
		return BasicProvider{}
	}
	return p.Fallback
}

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if face, ok := p.face(spec); ok {
		m := face.Metrics()
		return face, Metrics{
			Ascent:  fixedToFloat(m.Ascent),
			Descent: fixedToFloat(m.Descent),
			LineGap: fixedToFloat(m.Height - m.Ascent - m.Descent),
		}
	}
	return p.fallback().Resolve(spec)
}

func (p *OTProvider) Advance(s string, spec FontSpec) float64 {
	if face, ok := p.face(spec); ok {
		return fixedToFloat(font.MeasureString(face, s))
	}
	return p.fallback().Advance(s, spec)
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }
