/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package quest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed quest.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Import parses an external quest file. Both the map form and the legacy array
// form are accepted; array entry i becomes quest "quest_i" with a default type
// of dungeon. A shape mismatch returns an error wrapping ErrMalformed.
func Import(data []byte) (Document, error) {
	if err := checkShape(data); err != nil {
		return Document{}, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return importLegacy(trimmed)
	}
	var d Document
	if err := d.UnmarshalJSON(trimmed); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d, nil
}

func checkShape(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}
	return nil
}

func importLegacy(data []byte) (Document, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ids := make([]string, 0, len(entries))
	scripts := make(map[string]Script, len(entries))
	for i, raw := range entries {
		var s Script
		if err := s.UnmarshalJSON(raw); err != nil {
			return Document{}, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		if s.Type == "" {
			s.Type = TypeDungeon
		}
		id := fmt.Sprintf("quest_%d", i)
		ids = append(ids, id)
		scripts[id] = s
	}
	return New(ids, scripts)
}

// Export encodes d in map form.
func Export(d Document) ([]byte, error) { return d.MarshalJSON() }

func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range d.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := encodeString(id)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := d.quests[id].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("quest %q: %w", id, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the map form, keeping key order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("quest document must be an object")
	}
	var ids []string
	scripts := make(map[string]Script)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("quest %q: %w", id, err)
		}
		var s Script
		if err := s.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("quest %q: %w", id, err)
		}
		if _, dup := scripts[id]; !dup {
			ids = append(ids, id)
		}
		scripts[id] = s
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	out, err := New(ids, scripts)
	if err != nil {
		return err
	}
	*d = out
	return nil
}
