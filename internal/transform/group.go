/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"math"

	"sketchboard/internal/shape"
	"sketchboard/internal/textlayout"
	"sketchboard/internal/vector"
)

// Group is a multi-selection captured at gesture start. Its methods return
// fresh copies derived from the captured state, never from the previous frame.
type Group struct {
	bounds  vector.Rect
	members []shape.Shape
}

// NewGroup snapshots shapes. The slice order is kept in results.
func NewGroup(shapes []shape.Shape) *Group {
	g := &Group{members: make([]shape.Shape, 0, len(shapes))}
	for _, s := range shapes {
		g.members = append(g.members, s.Clone())
	}
	g.bounds, _ = shape.UnionBounds(g.members)
	return g
}

// Bounds returns the combined box at gesture start.
func (g *Group) Bounds() vector.Rect { return g.bounds }

// Len returns the number of members.
func (g *Group) Len() int { return len(g.members) }

// Move offsets every member by d from its starting position.
func (g *Group) Move(d vector.Pt) []shape.Shape {
	out := make([]shape.Shape, len(g.members))
	for i, m := range g.members {
		c := m.Clone()
		shape.MoveTo(c, shape.Position(m).Add(d))
		out[i] = c
	}
	return out
}

// Scale returns the uniform factor a corner drag to p applies to the group.
// The factor never shrinks a sized member below minSize.
func (g *Group) Scale(h Handle, p vector.Pt, minSize float64) float64 {
	if !h.IsCorner() || g.bounds.W <= 0 || g.bounds.H <= 0 {
		return 1
	}
	r := ResizeRect(g.bounds, h, p, minSize)
	return math.Max(math.Min(r.W/g.bounds.W, r.H/g.bounds.H), g.minScale(minSize))
}

// minScale is the smallest factor keeping every member's width, height and
// diameter at minSize. Members already below minSize do not constrain it.
func (g *Group) minScale(minSize float64) float64 {
	floor := 0.0
	for _, m := range g.members {
		d := memberExtent(m)
		if d < minSize {
			continue
		}
		floor = math.Max(floor, minSize/d)
	}
	return floor
}

// memberExtent is the smallest sized dimension of m, or 0 for point shapes.
func memberExtent(m shape.Shape) float64 {
	switch v := m.(type) {
	case *shape.Rectangle:
		return math.Min(v.W, v.H)
	case *shape.Image:
		return math.Min(v.W, v.H)
	case *shape.Text:
		return math.Min(v.W, v.H)
	case *shape.Circle:
		return 2 * v.Radius
	}
	return 0
}

// Resize scales the group uniformly from the corner opposite h. Only corner
// handles are accepted; others return unchanged copies.
func (g *Group) Resize(h Handle, p vector.Pt, minSize float64) []shape.Shape {
	s := g.Scale(h, p, minSize)
	anchor := opposite(h).Point(g.bounds)
	origin := vector.Pt{X: g.bounds.X, Y: g.bounds.Y}
	if h.movesLeft() {
		origin.X = anchor.X - g.bounds.W*s
	}
	if h.movesTop() {
		origin.Y = anchor.Y - g.bounds.H*s
	}
	out := make([]shape.Shape, len(g.members))
	for i, m := range g.members {
		out[i] = scaleMember(m, g.bounds.Min(), origin, s)
	}
	return out
}

// scaleMember maps m from the old group frame to the new one:
// newPos = newOrigin + (pos - oldOrigin)*s.
func scaleMember(m shape.Shape, oldOrigin, newOrigin vector.Pt, s float64) shape.Shape {
	mapPt := func(p vector.Pt) vector.Pt { return newOrigin.Add(p.Sub(oldOrigin).Mul(s)) }
	c := m.Clone()
	switch v := c.(type) {
	case *shape.Rectangle:
		p := mapPt(vector.Pt{X: v.X, Y: v.Y})
		v.X, v.Y, v.W, v.H = p.X, p.Y, v.W*s, v.H*s
		v.CornerRadius *= s
	case *shape.Image:
		p := mapPt(vector.Pt{X: v.X, Y: v.Y})
		v.X, v.Y, v.W, v.H = p.X, p.Y, v.W*s, v.H*s
	case *shape.Text:
		p := mapPt(vector.Pt{X: v.X, Y: v.Y})
		v.X, v.Y, v.W, v.H = p.X, p.Y, v.W*s, v.H*s
		v.FontSize = textlayout.ClampFontSize(v.FontSize * s)
	case *shape.Circle:
		p := mapPt(vector.Pt{X: v.X, Y: v.Y})
		v.X, v.Y, v.Radius = p.X, p.Y, v.Radius*s
	case *shape.Line:
		mapAll(v.Points, mapPt)
	case *shape.Arrow:
		mapAll(v.Points, mapPt)
	case *shape.Freehand:
		mapAll(v.Points, mapPt)
	default:
		panic("transform: unknown shape variant")
	}
	return c
}

func mapAll(pts []vector.Pt, f func(vector.Pt) vector.Pt) {
	for i := range pts {
		pts[i] = f(pts[i])
	}
}
