/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewport maps pointer positions on the rendered device mirror to the
// fixed logical device resolution every captured value is expressed in.
package viewport

import (
	"fmt"
	"math"
)

// Virtual device resolution.
const (
	VirtualWidth  = 900
	VirtualHeight = 1600
)

// Point is a position in virtual resolution pixels.
type Point struct {
	X int
	Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Rect is the on-screen bounding rectangle of the capture surface in UI pixels.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// ToVirtual converts client coordinates to virtual resolution by independent
// X/Y scaling. A zero-size rectangle maps everything to the origin.
func ToVirtual(clientX, clientY float64, r Rect) Point {
	if r.Empty() {
		return Point{}
	}
	sx := float64(VirtualWidth) / r.Width
	sy := float64(VirtualHeight) / r.Height
	return Point{
		X: roundHalfUp((clientX - r.Left) * sx),
		Y: roundHalfUp((clientY - r.Top) * sy),
	}
}

// FromVirtual is the inverse of ToVirtual; it is used to draw overlays on the
// surface at the position of a captured value.
func FromVirtual(p Point, r Rect) (float64, float64) {
	if r.Empty() {
		return r.Left, r.Top
	}
	return r.Left + float64(p.X)*r.Width/VirtualWidth, r.Top + float64(p.Y)*r.Height/VirtualHeight
}

// roundHalfUp rounds .5 toward positive infinity so that negative offsets
// (pointer slightly left of the surface) round the same way as the mirror UI.
func roundHalfUp(v float64) int { return int(math.Floor(v + 0.5)) }

// Box is an axis-aligned rectangle in virtual resolution.
type Box struct {
	X int
	Y int
	W int
	H int
}

// DragBox returns the box spanned by a drag from a to b, independent of drag direction.
func DragBox(a, b Point) Box {
	x1, x2 := minmax(a.X, b.X)
	y1, y2 := minmax(a.Y, b.Y)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Empty reports whether the box has zero width or height.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Quad returns the box as [x1, y1, x2, y2].
func (b Box) Quad() [4]int { return [4]int{b.X, b.Y, b.X + b.W, b.Y + b.H} }

func minmax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
