/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"math"

	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
)

// ConnectorSpacing separates parallel arrows between the same two shapes.
const ConnectorSpacing = 20.0

// ResolveConnector recomputes the endpoints of arrow id from the shapes it is
// attached to, as a committed change. It returns false for unknown ids,
// non-arrows, and arrows whose references are missing.
func (e *Engine) ResolveConnector(id string) bool {
	a, ok := e.shapes[id].(*shape.Arrow)
	if !ok {
		return false
	}
	pts, ok := e.connectorPoints(a)
	if !ok {
		return false
	}
	e.commit(func() { a.Points = pts })
	return true
}

// DanglingConnectors lists arrows that reference a shape no longer on the canvas.
func (e *Engine) DanglingConnectors() []string {
	var out []string
	for _, id := range e.order {
		a, ok := e.shapes[id].(*shape.Arrow)
		if !ok {
			continue
		}
		if e.missing(a.SourceID) || e.missing(a.TargetID) {
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) missing(ref string) bool {
	if ref == "" {
		return false
	}
	_, ok := e.shapes[ref]
	return !ok
}

// refreshConnectors re-routes every arrow attached to one of ids, except
// arrows that are themselves in ids. It must run inside a mutation.
func (e *Engine) refreshConnectors(ids ...string) {
	moved := make(map[string]bool, len(ids))
	for _, id := range ids {
		moved[id] = true
	}
	for _, id := range e.order {
		a, ok := e.shapes[id].(*shape.Arrow)
		if !ok || moved[id] || !(moved[a.SourceID] || moved[a.TargetID]) {
			continue
		}
		if pts, ok := e.connectorPoints(a); ok {
			a.Points = pts
		}
	}
}

// connectorPoints routes a between the borders of its attached shapes. An
// unattached end keeps its current point. Index shifts the route sideways.
func (e *Engine) connectorPoints(a *shape.Arrow) ([]vector.Pt, bool) {
	if a.SourceID == "" && a.TargetID == "" {
		return nil, false
	}
	if e.missing(a.SourceID) || e.missing(a.TargetID) {
		return nil, false
	}
	var (
		from, to   vector.Pt
		fromB, toB *vector.Rect
	)
	if n := len(a.Points); n > 0 {
		from, to = a.Points[0], a.Points[n-1]
	}
	if a.SourceID != "" {
		b := shape.Bounds(e.shapes[a.SourceID])
		from, fromB = b.Center(), &b
	}
	if a.TargetID != "" {
		b := shape.Bounds(e.shapes[a.TargetID])
		to, toB = b.Center(), &b
	}
	d := to.Sub(from)
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		return nil, false
	}
	dir := d.Mul(1 / l)
	offset := vector.Pt{X: -dir.Y, Y: dir.X}.Mul(float64(a.Index) * ConnectorSpacing)
	if fromB != nil {
		from = from.Add(dir.Mul(exitDistance(*fromB, dir)))
	}
	if toB != nil {
		to = to.Sub(dir.Mul(exitDistance(*toB, dir)))
	}
	return []vector.Pt{from.Add(offset), to.Add(offset)}, true
}

// exitDistance is how far a ray from the center of r along unit vector dir
// travels before leaving r.
func exitDistance(r vector.Rect, dir vector.Pt) float64 {
	t := math.Inf(1)
	if dir.X != 0 {
		t = math.Min(t, r.W/2/math.Abs(dir.X))
	}
	if dir.Y != 0 {
		t = math.Min(t, r.H/2/math.Abs(dir.Y))
	}
	if math.IsInf(t, 1) {
		return 0
	}
	return t
}
