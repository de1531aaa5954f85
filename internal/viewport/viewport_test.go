/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package viewport

import "testing"

func TestToVirtualScales(t *testing.T) {
	r := Rect{Left: 10, Top: 20, Width: 450, Height: 800}
	got := ToVirtual(10+225, 20+400, r)
	if want := (Point{X: 450, Y: 800}); got != want {
		t.Fatalf("ToVirtual = %v, want %v", got, want)
	}
}

func TestToVirtualIdentityScale(t *testing.T) {
	r := Rect{Left: 0, Top: 0, Width: VirtualWidth, Height: VirtualHeight}
	for _, c := range []Point{{0, 0}, {1, 1}, {123, 456}, {899, 1599}} {
		got := ToVirtual(float64(c.X), float64(c.Y), r)
		if got != c {
			t.Fatalf("identity mapping of %v = %v", c, got)
		}
	}
}

func TestToVirtualZeroRect(t *testing.T) {
	if got := ToVirtual(50, 60, Rect{Left: 5, Top: 5}); got != (Point{}) {
		t.Fatalf("zero rect should map to origin, got %v", got)
	}
	if got := ToVirtual(50, 60, Rect{Width: 100}); got != (Point{}) {
		t.Fatalf("zero height should map to origin, got %v", got)
	}
}

func TestToVirtualRoundsHalfUp(t *testing.T) {
	// 900/600 = 1.5 per pixel, so 1px -> 1.5 -> 2 and -1px -> -1.5 -> -1
	r := Rect{Width: 600, Height: 1600}
	if got := ToVirtual(1, 0, r).X; got != 2 {
		t.Fatalf("x for 1px = %d, want 2", got)
	}
	if got := ToVirtual(-1, 0, r).X; got != -1 {
		t.Fatalf("x for -1px = %d, want -1", got)
	}
}

func TestFromVirtualInvertsToVirtual(t *testing.T) {
	r := Rect{Left: 100, Top: 50, Width: 450, Height: 800}
	x, y := FromVirtual(Point{X: 450, Y: 800}, r)
	if x != 325 || y != 450 {
		t.Fatalf("FromVirtual = (%v,%v), want (325,450)", x, y)
	}
}

func TestDragBoxAllDirections(t *testing.T) {
	a := Point{X: 100, Y: 200}
	b := Point{X: 300, Y: 500}
	corners := [][2]Point{
		{a, b},
		{b, a},
		{{X: a.X, Y: b.Y}, {X: b.X, Y: a.Y}},
		{{X: b.X, Y: a.Y}, {X: a.X, Y: b.Y}},
	}
	for _, c := range corners {
		q := DragBox(c[0], c[1]).Quad()
		if q != [4]int{100, 200, 300, 500} {
			t.Fatalf("drag %v -> %v gave %v", c[0], c[1], q)
		}
		if !(q[0] < q[2] && q[1] < q[3]) {
			t.Fatalf("quad not ordered: %v", q)
		}
	}
}

func TestDragBoxEmpty(t *testing.T) {
	if !DragBox(Point{X: 5, Y: 5}, Point{X: 5, Y: 90}).Empty() {
		t.Fatalf("zero-width drag should be empty")
	}
	if DragBox(Point{X: 5, Y: 5}, Point{X: 6, Y: 6}).Empty() {
		t.Fatalf("1x1 drag should not be empty")
	}
}
