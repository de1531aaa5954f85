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
	"sort"

	"questeditor/internal/action"
)

// Record keys of a quest script.
const (
	keyType        = "_TYPE"
	keyName        = "questName"
	keyDungeonList = "_TARGETINFOLIST"
	keyVillageList = "_EOT"
)

// Quest types offered by the editor. Other values are kept as typed.
const (
	TypeDungeon = "dungeon"
	TypeQuest   = "quest"
)

// ListKind selects one of the two action lists of a quest.
type ListKind string

const (
	ListDungeon ListKind = "dungeon"
	ListVillage ListKind = "village"
)

// Key returns the record key the list is stored under.
func (k ListKind) Key() string {
	if k == ListVillage {
		return keyVillageList
	}
	return keyDungeonList
}

// Valid reports whether k names a list.
func (k ListKind) Valid() bool { return k == ListDungeon || k == ListVillage }

// Script is the record of one quest.
type Script struct {
	Type        string
	DisplayName string
	Dungeon     action.List
	Village     action.List
	// Extra holds record keys the editor does not interpret, written back verbatim.
	Extra map[string]json.RawMessage
}

// List returns the action list of kind k.
func (s Script) List(k ListKind) action.List {
	if k == ListVillage {
		return s.Village
	}
	return s.Dungeon
}

// WithList returns a copy of s with list k replaced.
func (s Script) WithList(k ListKind, l action.List) Script {
	if k == ListVillage {
		s.Village = l
	} else {
		s.Dungeon = l
	}
	return s
}

// Clone returns a deep copy of s.
func (s Script) Clone() Script {
	out := s
	out.Dungeon = s.Dungeon.Clone()
	out.Village = s.Village.Clone()
	if s.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func (s Script) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	typ, err := encodeString(s.Type)
	if err != nil {
		return nil, err
	}
	write(keyType, typ)
	name, err := encodeString(s.DisplayName)
	if err != nil {
		return nil, err
	}
	write(keyName, name)
	for _, l := range []struct {
		key  string
		list action.List
	}{{keyDungeonList, s.Dungeon}, {keyVillageList, s.Village}} {
		b, err := l.list.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.key, err)
		}
		write(l.key, b)
	}
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, s.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Script) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Script
	for k, v := range raw {
		var err error
		switch k {
		case keyType:
			err = decodeOptionalString(v, &out.Type)
		case keyName:
			err = decodeOptionalString(v, &out.DisplayName)
		case keyDungeonList:
			err = decodeOptionalList(v, &out.Dungeon)
		case keyVillageList:
			err = decodeOptionalList(v, &out.Village)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	if out.Dungeon == nil {
		out.Dungeon = action.List{}
	}
	if out.Village == nil {
		out.Village = action.List{}
	}
	*s = out
	return nil
}

func decodeOptionalString(v json.RawMessage, dst *string) error {
	if string(bytes.TrimSpace(v)) == "null" {
		return nil
	}
	return json.Unmarshal(v, dst)
}

func decodeOptionalList(v json.RawMessage, dst *action.List) error {
	if string(bytes.TrimSpace(v)) == "null" {
		return nil
	}
	return dst.UnmarshalJSON(v)
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
