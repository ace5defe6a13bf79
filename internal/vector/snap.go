/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// SnapOptions controls which guide candidates are considered.
type SnapOptions struct {
	// Threshold is the largest distance, in the units of the rects, that
	// still snaps. Zero or less means 6.
	Threshold float64
	Edges     bool
	Centers   bool
}

// GuideKind names which features of two rects lined up.
type GuideKind string

const (
	GuideEdge   GuideKind = "edge"
	GuideCenter GuideKind = "center"
)

// Guide is an alignment line found while snapping. Vertical guides sit at
// x = Position, horizontal ones at y = Position. From and To span both the
// moving rect and the anchor it aligned with.
type Guide struct {
	Vertical bool
	Kind     GuideKind
	Position float64
	From, To Pt
}

// Snap moves r onto the nearest anchor edge or center within the
// threshold, independently per axis, and returns the guides it used.
// On ties the earlier anchor wins.
func Snap(r Rect, anchors []Rect, opts SnapOptions) (Rect, []Guide) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	bx := best{dist: math.Inf(1)}
	by := best{dist: math.Inf(1)}
	for _, a := range anchors {
		if opts.Edges {
			for _, c := range [][2]float64{
				{r.X, a.X}, {r.Right(), a.Right()}, {r.X, a.Right()}, {r.Right(), a.X},
			} {
				bx.consider(c[0]-c[1], opts.Threshold, verticalGuide(c[1], r, a, GuideEdge))
			}
			for _, c := range [][2]float64{
				{r.Y, a.Y}, {r.Bottom(), a.Bottom()}, {r.Y, a.Bottom()}, {r.Bottom(), a.Y},
			} {
				by.consider(c[0]-c[1], opts.Threshold, horizontalGuide(c[1], r, a, GuideEdge))
			}
		}
		if opts.Centers {
			rc, ac := r.Center(), a.Center()
			bx.consider(rc.X-ac.X, opts.Threshold, verticalGuide(ac.X, r, a, GuideCenter))
			by.consider(rc.Y-ac.Y, opts.Threshold, horizontalGuide(ac.Y, r, a, GuideCenter))
		}
	}

	var guides []Guide
	if bx.found {
		r.X = FloatRound(r.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.found {
		r.Y = FloatRound(r.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return r, guides
}

type best struct {
	found bool
	delta float64
	dist  float64
	guide Guide
}

func (b *best) consider(delta, threshold float64, g Guide) {
	d := math.Abs(delta)
	if d > threshold || d >= b.dist {
		return
	}
	*b = best{found: true, delta: delta, dist: d, guide: g}
}

func verticalGuide(x float64, r, a Rect, kind GuideKind) Guide {
	x = FloatRound(x, 3)
	return Guide{
		Vertical: true,
		Kind:     kind,
		Position: x,
		From:     Pt{x, min(r.Y, a.Y)},
		To:       Pt{x, max(r.Bottom(), a.Bottom())},
	}
}

func horizontalGuide(y float64, r, a Rect, kind GuideKind) Guide {
	y = FloatRound(y, 3)
	return Guide{
		Kind:     kind,
		Position: y,
		From:     Pt{min(r.X, a.X), y},
		To:       Pt{max(r.Right(), a.Right()), y},
	}
}
