/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"

	"questeditor/internal/action"
)

// Marker is one captured value of an item, labelled "#<index>".
type Marker struct {
	Index int
	Label string
	Coord *action.Coord
	ROI   *action.ROI
	// Exclusion marks chest regions after the first.
	Exclusion bool
}

// Markers collects the coordinates and regions stored in list, in item order.
// Items without captured values contribute nothing.
func Markers(list action.List) []Marker {
	var out []Marker
	add := func(i int, c *action.Coord, suffix string) {
		if c == nil {
			return
		}
		cc := *c
		out = append(out, Marker{Index: i, Label: fmt.Sprintf("#%d%s", i, suffix), Coord: &cc})
	}
	for i, it := range list {
		switch v := it.(type) {
		case action.Position:
			add(i, v.Coord, "")
		case action.Stair:
			add(i, v.Coord, "")
		case action.MinimapStair:
			add(i, v.Coord, "")
		case action.Simple:
			if c, ok := parseTap(v.Command); ok {
				add(i, &c, "")
			}
		case action.Press:
			for j, f := range v.Fallbacks {
				c := f.Coord
				if c == nil {
					if tap, ok := parseTap(f.Text); ok {
						c = &tap
					}
				}
				add(i, c, fmt.Sprintf(".%d", j))
			}
		case action.Harken:
			if v.ROI != nil {
				r := *v.ROI
				out = append(out, Marker{Index: i, Label: fmt.Sprintf("#%d", i), ROI: &r})
			}
		case action.Chest:
			for j, r := range v.ROIs {
				r := r
				out = append(out, Marker{Index: i, Label: fmt.Sprintf("#%d.%d", i, j), ROI: &r, Exclusion: j > 0})
			}
		}
	}
	return out
}

// parseTap reads "input tap X Y".
func parseTap(cmd string) (action.Coord, bool) {
	f := strings.Fields(cmd)
	if len(f) != 4 || f[0] != "input" || f[1] != "tap" {
		return action.Coord{}, false
	}
	var c action.Coord
	if _, err := fmt.Sscanf(f[2]+" "+f[3], "%d %d", &c.X, &c.Y); err != nil {
		return action.Coord{}, false
	}
	return c, true
}
