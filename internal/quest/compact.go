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
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CompactWidth is the length below which an object-free array stays on one line.
const CompactWidth = 120

// EncodeCompact writes d in the layout the device service keeps on disk:
// objects expanded with four-space indentation, arrays without objects on a
// single line when shorter than CompactWidth characters.
func EncodeCompact(d Document) ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return FormatCompact(raw)
}

// FormatCompact reformats arbitrary JSON with the compact layout, keeping
// object key order.
func FormatCompact(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := readNode(dec)
	if err != nil {
		return nil, fmt.Errorf("format json: %w", err)
	}
	var sb strings.Builder
	if err := writeNode(&sb, n, 0); err != nil {
		return nil, err
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// node is a decoded JSON value with object keys in source order.
type node struct {
	keys   []string
	fields []*node // object members, parallel to keys
	items  []*node // array elements
	scalar any
	kind   byte // 'o' object, 'a' array, 's' scalar
}

func readNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &node{kind: 'o'}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				v, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, kt.(string))
				n.fields = append(n.fields, v)
			}
			_, err := dec.Token()
			return n, err
		case '[':
			n := &node{kind: 'a'}
			for dec.More() {
				v, err := readNode(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, v)
			}
			_, err := dec.Token()
			return n, err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return &node{kind: 's', scalar: t}, nil
	}
}

func compactable(n *node) bool {
	for _, it := range n.items {
		if it.kind == 'o' || (it.kind == 'a' && !compactable(it)) {
			return false
		}
	}
	return true
}

// inline renders n on one line with ", " separators.
func inline(sb *strings.Builder, n *node) error {
	switch n.kind {
	case 'a':
		sb.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := inline(sb, it); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil
	case 's':
		return writeScalar(sb, n.scalar)
	}
	return fmt.Errorf("object cannot be inlined")
}

func writeNode(sb *strings.Builder, n *node, indent int) error {
	pad := strings.Repeat(" ", indent)
	switch n.kind {
	case 'o':
		if len(n.keys) == 0 {
			sb.WriteString("{}")
			return nil
		}
		sb.WriteString("{\n")
		for i, k := range n.keys {
			sb.WriteString(pad)
			sb.WriteString("    ")
			if err := writeScalar(sb, k); err != nil {
				return err
			}
			sb.WriteString(": ")
			if err := writeNode(sb, n.fields[i], indent+4); err != nil {
				return err
			}
			if i < len(n.keys)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(pad)
		sb.WriteByte('}')
		return nil
	case 'a':
		if len(n.items) == 0 {
			sb.WriteString("[]")
			return nil
		}
		if compactable(n) {
			var one strings.Builder
			if err := inline(&one, n); err != nil {
				return err
			}
			if utf8.RuneCountInString(one.String()) < CompactWidth {
				sb.WriteString(one.String())
				return nil
			}
		}
		sb.WriteString("[\n")
		for i, it := range n.items {
			sb.WriteString(pad)
			sb.WriteString("    ")
			if err := writeNode(sb, it, indent+4); err != nil {
				return err
			}
			if i < len(n.items)-1 {
				sb.WriteByte(',')
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(pad)
		sb.WriteByte(']')
		return nil
	default:
		return writeScalar(sb, n.scalar)
	}
}

func writeScalar(sb *strings.Builder, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	sb.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return nil
}
