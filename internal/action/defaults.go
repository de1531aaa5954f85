/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package action

import (
	"errors"
	"fmt"
)

// DefaultDirection is the direction label new items start with.
const DefaultDirection = "右下"

// Directions are the conventional direction labels; any string is accepted.
var Directions = []string{"右上", "右下", "左上", "左下"}

// Default returns the starting shape of a newly added item of variant v.
func Default(v Variant) (Item, error) {
	origin := func() *Coord { return &Coord{} }
	switch v {
	case VariantPosition:
		return Position{Direction: DefaultDirection, Coord: origin()}, nil
	case VariantStair:
		return Stair{ID: "stair_name", Direction: DefaultDirection, Coord: origin()}, nil
	case VariantMinimapStair:
		return MinimapStair{Direction: DefaultDirection, Coord: origin(), Image: "floor_img"}, nil
	case VariantHarken:
		return Harken{Direction: DefaultDirection}, nil
	case VariantChest:
		return Chest{Direction: DefaultDirection}, nil
	case VariantChestAuto:
		return ChestAuto{}, nil
	case VariantPress:
		return Press{
			Pattern:   "target_image",
			Fallbacks: []Fallback{TextFallback("input swipe 0 0 0 0")},
			Delay:     2,
		}, nil
	case VariantSimple:
		return Simple{Command: "input tap 0 0"}, nil
	}
	return nil, fmt.Errorf("no default shape for variant %q", v)
}

// ErrNotReplayable is returned for items with no device-executable action.
var ErrNotReplayable = errors.New("no executable command")

// Replay is one step sent to the device service when testing an item:
// either a raw device command or an image to match and click.
type Replay struct {
	Command    string
	ClickImage string
}

func (r Replay) String() string {
	if r.ClickImage != "" {
		return "click_image " + r.ClickImage
	}
	return r.Command
}

// ReplayPlan lists the device steps that exercise it. Press items click their
// pattern and then run every fallback in order.
func ReplayPlan(it Item) ([]Replay, error) {
	switch v := it.(type) {
	case Press:
		var plan []Replay
		if v.Pattern != "" {
			plan = append(plan, Replay{ClickImage: v.Pattern})
		}
		for _, f := range v.Fallbacks {
			switch f.Kind() {
			case FallbackTap:
				plan = append(plan, Replay{Command: TapCommand(*f.Coord)})
			case FallbackCommand:
				plan = append(plan, Replay{Command: f.Text})
			case FallbackImage:
				if f.Text != "" {
					plan = append(plan, Replay{ClickImage: f.Text})
				}
			}
		}
		if len(plan) == 0 {
			return nil, fmt.Errorf("press: %w", ErrNotReplayable)
		}
		return plan, nil
	case Position:
		return tapPlan(v.Coord, it)
	case Stair:
		return tapPlan(v.Coord, it)
	case MinimapStair:
		return tapPlan(v.Coord, it)
	case Simple:
		if v.Command == "" {
			return nil, fmt.Errorf("simple: %w", ErrNotReplayable)
		}
		return []Replay{{Command: v.Command}}, nil
	case Chest:
		return nil, fmt.Errorf("chest uses ROI, cannot simple tap: %w", ErrNotReplayable)
	}
	return nil, fmt.Errorf("%s: %w", it.Variant(), ErrNotReplayable)
}

func tapPlan(c *Coord, it Item) ([]Replay, error) {
	if c == nil {
		return nil, fmt.Errorf("%s without coordinate: %w", it.Variant(), ErrNotReplayable)
	}
	return []Replay{{Command: TapCommand(*c)}}, nil
}
