/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"log/slog"
	"time"

	"sketchboard/internal/placement"
	"sketchboard/internal/shape"
	"sketchboard/internal/vector"
)

// Asset is externally produced image content waiting to be placed.
type Asset struct {
	Src       string
	W, H      float64
	Prompt    string
	CreatedAt time.Time
}

func (a Asset) image(pos vector.Pt, refIDs []string) *shape.Image {
	img := shape.NewImage(pos.X, pos.Y, a.W, a.H, a.Src)
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	img.Meta = &shape.GenerationMeta{
		ReferenceIDs: append([]string(nil), refIDs...),
		CreatedAt:    created,
		Prompt:       a.Prompt,
	}
	return img
}

// refs resolves ids to shapes, skipping unknown ids.
func (e *Engine) refs(ids []string) []shape.Shape {
	var out []shape.Shape
	for _, id := range ids {
		if s, ok := e.shapes[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) allShapes() []shape.Shape {
	out := make([]shape.Shape, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.shapes[id])
	}
	return out
}

// InsertGenerated places asset next to the reference shapes without
// overlapping existing content, adds it as one undo step and selects it.
func (e *Engine) InsertGenerated(asset Asset, refIDs []string) (string, placement.Placement) {
	refs := e.refs(refIDs)
	pl := placement.FindOptimalPlacement(asset.W, asset.H, e.allShapes(), refs, nil, e.opts.Placement)
	img := asset.image(pl.Pos, idsOf(refs))
	var id string
	e.commit(func() {
		id = e.insert(img)
		e.selected = []string{id}
	})
	e.log.Debug("inserted generated image",
		slog.String("id", id),
		slog.String("strategy", pl.Strategy.String()),
		slog.Float64("x", pl.Pos.X), slog.Float64("y", pl.Pos.Y))
	return id, pl
}

// InsertBatch places several assets in one pass so they avoid each other as
// well as existing content. Only the first is positioned against refIDs. The
// whole batch is one undo step and becomes the selection.
func (e *Engine) InsertBatch(assets []Asset, refIDs []string) []string {
	if len(assets) == 0 {
		return nil
	}
	refs := e.refs(refIDs)
	sizes := make([]placement.Size, len(assets))
	for i, a := range assets {
		sizes[i] = placement.Size{W: a.W, H: a.H}
	}
	pls := placement.FindMultiPlacement(sizes, e.allShapes(), refs, nil, e.opts.Placement)
	ids := make([]string, len(assets))
	e.commit(func() {
		for i, a := range assets {
			ids[i] = e.insert(a.image(pls[i].Pos, idsOf(refs)))
		}
		e.selected = append([]string(nil), ids...)
	})
	return ids
}

// BringToFront moves id to the top of the z-order.
func (e *Engine) BringToFront(id string) bool {
	return e.reorder(id, func(rest []string) []string { return append(rest, id) })
}

// SendToBack moves id to the bottom of the z-order.
func (e *Engine) SendToBack(id string) bool {
	return e.reorder(id, func(rest []string) []string { return append([]string{id}, rest...) })
}

func (e *Engine) reorder(id string, place func(rest []string) []string) bool {
	if _, ok := e.shapes[id]; !ok {
		return false
	}
	next := place(without(append([]string(nil), e.order...), id))
	if equalIDs(next, e.order) {
		return true
	}
	e.commit(func() { e.order = next })
	return true
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DuplicateSelection copies the selected shapes, shifted by offset, on top
// of the z-order and selects the copies. Arrows between duplicated shapes
// are re-pointed at the copies.
func (e *Engine) DuplicateSelection(offset vector.Pt) []string {
	src := e.Selected()
	if len(src) == 0 {
		return nil
	}
	ids := make([]string, 0, len(src))
	e.commit(func() {
		remap := make(map[string]string, len(src))
		copies := make([]shape.Shape, len(src))
		for i, s := range src {
			c := s.Clone()
			old := c.Common().ID
			c.Common().ID = ""
			shape.Translate(c, offset)
			copies[i] = c
			ids = append(ids, e.insert(c))
			remap[old] = c.Common().ID
		}
		for _, c := range copies {
			if a, ok := c.(*shape.Arrow); ok {
				if n, ok := remap[a.SourceID]; ok {
					a.SourceID = n
				}
				if n, ok := remap[a.TargetID]; ok {
					a.TargetID = n
				}
			}
		}
		e.selected = append([]string(nil), ids...)
	})
	return ids
}
