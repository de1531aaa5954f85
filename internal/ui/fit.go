/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"

	"questeditor/internal/action"
	"questeditor/internal/capture"
	"questeditor/internal/viewport"
)

// FitMirror returns the largest rectangle with the device aspect ratio that
// fits a w x h area, centred. Pointer positions are mapped through it.
func FitMirror(w, h float64) viewport.Rect {
	if w <= 0 || h <= 0 {
		return viewport.Rect{}
	}
	aspect := float64(viewport.VirtualWidth) / float64(viewport.VirtualHeight)
	fw, fh := w, w/aspect
	if fh > h {
		fw, fh = h*aspect, h
	}
	return viewport.Rect{Left: (w - fw) / 2, Top: (h - fh) / 2, Width: fw, Height: fh}
}

// itemRow is the text shown for item i of a list.
func itemRow(i int, it action.Item) string {
	return fmt.Sprintf("%d. [%s] %s", i, it.Variant(), action.Summary(it))
}

// captureChoice is one capture button offered for an item.
type captureChoice struct {
	Label string
	Mode  capture.Mode
	Field capture.Field
	Sub   *int
}

// captureChoices lists the captures that apply to it, by variant.
func captureChoices(it action.Item) []captureChoice {
	sub := func(i int) *int { return &i }
	switch v := it.(type) {
	case action.Position, action.Stair:
		return []captureChoice{{Label: "Pick coord", Mode: capture.ModePick, Field: capture.FieldCoord}}
	case action.MinimapStair:
		return []captureChoice{
			{Label: "Pick coord", Mode: capture.ModePick, Field: capture.FieldCoord},
			{Label: "Crop floor image", Mode: capture.ModeRect, Field: capture.FieldTargetPattern},
		}
	case action.Harken:
		return []captureChoice{
			{Label: "Crop image", Mode: capture.ModeRect, Field: capture.FieldTargetPattern},
			{Label: "Draw ROI", Mode: capture.ModeRect, Field: capture.FieldROI},
		}
	case action.Chest:
		return []captureChoice{{Label: "Add ROI", Mode: capture.ModeRect, Field: capture.FieldROI}}
	case action.Simple:
		return []captureChoice{
			{Label: "Pick tap", Mode: capture.ModePick, Field: capture.FieldCoordSimple},
			{Label: "Record swipe", Mode: capture.ModeSwipe, Field: capture.FieldFallbackValue},
		}
	case action.Press:
		out := []captureChoice{{Label: "Crop pattern", Mode: capture.ModeRect, Field: capture.FieldTargetPattern}}
		for j := range v.Fallbacks {
			out = append(out,
				captureChoice{Label: fmt.Sprintf("Fallback %d: tap", j), Mode: capture.ModePick, Field: capture.FieldCoordFallback, Sub: sub(j)},
				captureChoice{Label: fmt.Sprintf("Fallback %d: image", j), Mode: capture.ModeRect, Field: capture.FieldFallbackValue, Sub: sub(j)},
				captureChoice{Label: fmt.Sprintf("Fallback %d: swipe", j), Mode: capture.ModeSwipe, Field: capture.FieldFallbackValue, Sub: sub(j)},
			)
		}
		return append(out, captureChoice{Label: "New fallback tap", Mode: capture.ModePick, Field: capture.FieldCoordFallback, Sub: sub(len(v.Fallbacks))})
	}
	return nil
}
