/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package shape

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrUnknownKind is returned when a payload carries an unsupported "type".
var ErrUnknownKind = errors.New("unknown shape type")

// Marshal encodes s as a JSON object with a "type" discriminator followed by
// the variant's own fields.
func Marshal(s Shape) ([]byte, error) {
	if s == nil {
		return nil, errors.New("marshal nil shape")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", s.Kind(), err)
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + 24)
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(string(s.Kind())))
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(data []byte) (Shape, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("probe shape type: %w", err)
	}
	var s Shape
	switch probe.Type {
	case KindRectangle:
		s = &Rectangle{}
	case KindCircle:
		s = &Circle{}
	case KindLine:
		s = &Line{}
	case KindArrow:
		s = &Arrow{}
	case KindFreehand:
		s = &Freehand{}
	case KindText:
		s = &Text{}
	case KindImage:
		s = &Image{}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, probe.Type)
	}
	// Visible defaults to true for payloads that omit it.
	s.Common().Visible = true
	s.Common().Style.Opacity = 1
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
	}
	if s.Common().ID == "" {
		return nil, fmt.Errorf("decode %s: missing id", probe.Type)
	}
	return s, nil
}

// UnmarshalJSON accepts the timestamp either as an RFC 3339 string or as
// milliseconds since the Unix epoch.
func (m *GenerationMeta) UnmarshalJSON(b []byte) error {
	type plain GenerationMeta
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = GenerationMeta(raw.plain)
	ts, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return err
	}
	m.CreatedAt = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
