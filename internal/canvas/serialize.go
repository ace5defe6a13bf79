/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"sketchboard/internal/log"
	"sketchboard/internal/shape"
	"sketchboard/internal/viewport"
)

// ErrMalformedPayload wraps every Deserialize failure.
var ErrMalformedPayload = errors.New("malformed canvas payload")

//go:embed payload.schema.json
var payloadSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchema))
	})
	return schema, schemaErr
}

// PayloadSchema returns the JSON schema Deserialize validates against.
func PayloadSchema() []byte { return append([]byte(nil), payloadSchema...) }

type payload struct {
	Shapes   []json.RawMessage  `json:"shapes"`
	Viewport *viewport.Viewport `json:"viewport,omitempty"`
}

// Serialize encodes the shapes in z-order as [id, shape] pairs together with
// the viewport. Selection and history are not part of the payload.
func (e *Engine) Serialize() ([]byte, error) {
	p := payload{Shapes: make([]json.RawMessage, 0, len(e.order)), Viewport: &e.vp}
	for _, id := range e.order {
		body, err := shape.Marshal(e.shapes[id])
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", id, err)
		}
		idJSON, _ := json.Marshal(id)
		pair := make([]byte, 0, len(idJSON)+len(body)+3)
		pair = append(pair, '[')
		pair = append(pair, idJSON...)
		pair = append(pair, ',')
		pair = append(pair, body...)
		pair = append(pair, ']')
		p.Shapes = append(p.Shapes, pair)
	}
	return json.Marshal(p)
}

// Deserialize replaces the canvas with the payload. Invalid input is logged
// and reported as ErrMalformedPayload; the engine is left untouched. A
// successful load clears selection and history.
func (e *Engine) Deserialize(data []byte) error {
	l := log.WithOperation(e.log, "deserialize")
	order, shapes, vp, err := decodePayload(data)
	if err != nil {
		l.Warn("payload rejected", slog.Any("err", err), slog.Int("bytes", len(data)))
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	e.cancelLive()
	e.order, e.shapes = order, shapes
	e.selected, e.hidden, e.hover = nil, nil, ""
	if vp != nil {
		vp.Normalize()
		e.vp = *vp
	}
	e.history.Clear()
	l.Debug("payload loaded", slog.Int("shapes", len(order)))
	e.changed()
	return nil
}

// ValidatePayload checks data against the payload schema.
func ValidatePayload(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeShapes validates data and returns its shapes in z-order without
// touching an engine.
func DecodeShapes(data []byte) ([]shape.Shape, error) {
	order, shapes, _, err := decodePayload(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	out := make([]shape.Shape, len(order))
	for i, id := range order {
		out[i] = shapes[id]
	}
	return out, nil
}

func decodePayload(data []byte) ([]string, map[string]shape.Shape, *viewport.Viewport, error) {
	if err := ValidatePayload(data); err != nil {
		return nil, nil, nil, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, nil, err
	}
	order := make([]string, 0, len(p.Shapes))
	shapes := make(map[string]shape.Shape, len(p.Shapes))
	for i, raw := range p.Shapes {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return nil, nil, nil, fmt.Errorf("shapes[%d]: want [id, shape]", i)
		}
		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return nil, nil, nil, fmt.Errorf("shapes[%d] id: %w", i, err)
		}
		s, err := shape.Unmarshal(pair[1])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("shapes[%d]: %w", i, err)
		}
		if _, dup := shapes[id]; dup {
			return nil, nil, nil, fmt.Errorf("shapes[%d]: duplicate id %q", i, id)
		}
		s.Common().ID = id
		shapes[id] = s
		order = append(order, id)
	}
	return order, shapes, p.Viewport, nil
}
