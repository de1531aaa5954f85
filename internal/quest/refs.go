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
	"strings"

	"questeditor/internal/action"
)

// ImageRef is one use of a template image by an action item.
type ImageRef struct {
	Image    string
	QuestID  string
	List     ListKind
	Index    int
	Field    string // target_pattern or fallback_value
	SubIndex int    // fallback position, -1 for pattern slots
}

// ImageRefs lists every template image the document refers to, in document
// order. Fallbacks that are coordinates or device commands are not images.
func ImageRefs(d Document) []ImageRef {
	var refs []ImageRef
	for _, id := range d.ids {
		s := d.quests[id]
		for _, k := range []ListKind{ListDungeon, ListVillage} {
			for i, it := range s.List(k) {
				add := func(name, field string, sub int) {
					if name = strings.TrimSpace(name); name != "" {
						refs = append(refs, ImageRef{Image: name, QuestID: id, List: k, Index: i, Field: field, SubIndex: sub})
					}
				}
				switch v := it.(type) {
				case action.Press:
					add(v.Pattern, "target_pattern", -1)
					for j, f := range v.Fallbacks {
						if f.Kind() == action.FallbackImage {
							add(f.Text, "fallback_value", j)
						}
					}
				case action.Harken:
					add(v.Image, "target_pattern", -1)
				case action.MinimapStair:
					add(v.Image, "target_pattern", -1)
				}
			}
		}
	}
	return refs
}
