/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package placement

// PlacementPlanner: picks a spot for new content that keeps clear of what is
// already on the canvas. Tiers, first hit wins:
//  1. empty canvas: the default origin
//  2. anchors around the reference shapes, closest to their centroid
//  3. a square spiral walking out from the right edge of the content
//  4. a fixed spot right of all content

import (
	"fmt"

	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
)

// Config controls the search. The zero value is not useful; start from DefaultConfig.
type Config struct {
	PreferredGap  float64   `yaml:"preferred_gap"`
	Buffer        float64   `yaml:"buffer"`
	SpiralStep    float64   `yaml:"spiral_step"`
	MaxIterations int       `yaml:"max_iterations"`
	DefaultOrigin vector.Pt `yaml:"-"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		PreferredGap:  80,
		Buffer:        20,
		SpiralStep:    50,
		MaxIterations: 100,
		DefaultOrigin: vector.Pt{X: 100, Y: 100},
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.PreferredGap <= 0 {
		c.PreferredGap = d.PreferredGap
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	}
	if c.SpiralStep <= 0 {
		c.SpiralStep = d.SpiralStep
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	return c
}

// Strategy names the tier that produced a placement.
type Strategy int

const (
	StrategyDefault Strategy = iota
	StrategyReference
	StrategySpiral
	StrategyFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyDefault:
		return "default"
	case StrategyReference:
		return "reference"
	case StrategySpiral:
		return "spiral"
	case StrategyFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Placement is the chosen top-left corner for the new content.
type Placement struct {
	Pos      vector.Pt
	Strategy Strategy
}

// Size is the width and height of an item to place.
type Size struct {
	W, H float64
}

// FindOptimalPlacement chooses where a w×h box goes. all is the current
// canvas, refs are shapes the new content relates to (may be empty) and
// exclude lists ids ignored for collisions. It always returns a position.
func FindOptimalPlacement(w, h float64, all, refs []shape.Shape, exclude []string, cfg Config) Placement {
	return findPlacement(w, h, all, refs, excludeSet(exclude), cfg.normalized())
}

func findPlacement(w, h float64, all, refs []shape.Shape, ex map[string]bool, cfg Config) Placement {
	occupied := Occupied(all, ex)
	if len(occupied) == 0 {
		return Placement{Pos: cfg.DefaultOrigin, Strategy: StrategyDefault}
	}
	free := func(p vector.Pt) bool {
		return !HasCollision(vector.R(p.X, p.Y, w, h), all, ex, cfg.Buffer)
	}

	if p, ok := nearReferences(w, h, refs, cfg.PreferredGap, free); ok {
		return Placement{Pos: p, Strategy: StrategyReference}
	}

	content := occupied[0]
	for _, r := range occupied[1:] {
		content = content.Union(r)
	}
	if p, ok := spiral(vector.Pt{X: content.Right() + cfg.PreferredGap, Y: content.Y}, cfg, free); ok {
		return Placement{Pos: p, Strategy: StrategySpiral}
	}
	return Placement{
		Pos:      vector.Pt{X: content.Right() + 3*cfg.PreferredGap, Y: content.Y},
		Strategy: StrategyFallback,
	}
}

// nearReferences scores the eight anchors around every reference by
// priority*1000 + distance from the candidate center to the centroid of the
// reference centers, and returns the best free one.
func nearReferences(w, h float64, refs []shape.Shape, gap float64, free func(vector.Pt) bool) (vector.Pt, bool) {
	boxes := make([]vector.Rect, 0, len(refs))
	for _, r := range refs {
		if b, ok := ShapeBounds(r); ok {
			boxes = append(boxes, b)
		}
	}
	if len(boxes) == 0 {
		return vector.Pt{}, false
	}
	var centroid vector.Pt
	for _, b := range boxes {
		centroid = centroid.Add(b.Center())
	}
	centroid = centroid.Mul(1 / float64(len(boxes)))

	var (
		best      vector.Pt
		bestScore float64
		found     bool
	)
	for _, rb := range boxes {
		anchors := [...]vector.Pt{
			{X: rb.Right() + gap, Y: rb.Y},  // right
			{X: rb.X, Y: rb.Bottom() + gap}, // below
			{X: rb.X - gap - w, Y: rb.Y},    // left
			{X: rb.X, Y: rb.Y - gap - h},    // above
			{X: rb.Right() + gap, Y: rb.Bottom() + gap},
			{X: rb.Right() + gap, Y: rb.Y - gap - h},
			{X: rb.X - gap - w, Y: rb.Bottom() + gap},
			{X: rb.X - gap - w, Y: rb.Y - gap - h},
		}
		for prio, p := range anchors {
			score := float64(prio)*1000 + p.Add(vector.Pt{X: w / 2, Y: h / 2}).Dist(centroid)
			if found && score >= bestScore {
				continue
			}
			if free(p) {
				best, bestScore, found = p, score, true
			}
		}
	}
	return best, found
}

// spiral walks a square spiral from start: right, down, left, up, with the
// leg length growing by one step every two legs. It gives up after
// cfg.MaxIterations legs.
func spiral(start vector.Pt, cfg Config, free func(vector.Pt) bool) (vector.Pt, bool) {
	if free(start) {
		return start, true
	}
	dirs := [...]vector.Pt{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}
	p := start
	legLen := 1
	for leg := 0; leg < cfg.MaxIterations; leg++ {
		d := dirs[leg%len(dirs)].Mul(cfg.SpiralStep)
		for i := 0; i < legLen; i++ {
			p = p.Add(d)
			if free(p) {
				return p, true
			}
		}
		if leg%2 == 1 {
			legLen++
		}
	}
	return vector.Pt{}, false
}

// FindMultiPlacement places items one after another. Each placed item is
// treated as occupied space for the next, and only the first item is placed
// relative to refs.
func FindMultiPlacement(items []Size, all, refs []shape.Shape, exclude []string, cfg Config) []Placement {
	cfg = cfg.normalized()
	ex := excludeSet(exclude)
	working := make([]shape.Shape, len(all), len(all)+len(items))
	copy(working, all)
	out := make([]Placement, 0, len(items))
	for i, it := range items {
		r := refs
		if i > 0 {
			r = nil
		}
		pl := findPlacement(it.W, it.H, working, r, ex, cfg)
		out = append(out, pl)
		phantom := shape.NewRectangle(pl.Pos.X, pl.Pos.Y, it.W, it.H)
		working = append(working, phantom)
	}
	return out
}
