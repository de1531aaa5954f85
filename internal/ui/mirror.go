//go:build fyne && cgo

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
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"questeditor/internal/export"
	"questeditor/internal/viewport"
)

var (
	pointColor     = color.RGBA{R: 0, G: 230, B: 64, A: 255}
	regionColor    = color.RGBA{R: 255, G: 215, B: 0, A: 255}
	exclusionColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	selectionColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
)

// MirrorCanvas shows the device frame letterboxed at the device aspect ratio,
// draws captured markers over it and reports pointer input in UI pixels
// together with the on-screen mirror rectangle.
type MirrorCanvas struct {
	widget.BaseWidget

	frame     image.Image
	markers   []export.Marker
	selection *viewport.Box

	down bool
	last fyne.Position

	OnDown func(x, y float64, r viewport.Rect)
	OnMove func(x, y float64, r viewport.Rect)
	OnUp   func(x, y float64, r viewport.Rect)
}

func NewMirrorCanvas() *MirrorCanvas {
	m := &MirrorCanvas{}
	m.ExtendBaseWidget(m)
	return m
}

// SetFrame replaces the displayed frame. Must run on the UI goroutine.
func (m *MirrorCanvas) SetFrame(img image.Image) {
	m.frame = img
	m.Refresh()
}

// SetOverlay replaces the marker overlay and the drag preview.
func (m *MirrorCanvas) SetOverlay(markers []export.Marker, selection *viewport.Box) {
	m.markers = markers
	m.selection = selection
	m.Refresh()
}

// MinSize keeps the mirror usable at a quarter of the device resolution.
func (m *MirrorCanvas) MinSize() fyne.Size { return fyne.NewSize(225, 400) }

func (m *MirrorCanvas) mirrorRect() viewport.Rect {
	s := m.Size()
	return FitMirror(float64(s.Width), float64(s.Height))
}

func (m *MirrorCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	m.down = true
	m.last = e.Position
	if m.OnDown != nil {
		m.OnDown(float64(e.Position.X), float64(e.Position.Y), m.mirrorRect())
	}
}

func (m *MirrorCanvas) MouseUp(e *desktop.MouseEvent) {
	if !m.down {
		return
	}
	m.down = false
	if m.OnUp != nil {
		m.OnUp(float64(e.Position.X), float64(e.Position.Y), m.mirrorRect())
	}
}

func (m *MirrorCanvas) Dragged(e *fyne.DragEvent) {
	m.last = e.Position
	if m.down && m.OnMove != nil {
		m.OnMove(float64(e.Position.X), float64(e.Position.Y), m.mirrorRect())
	}
}

// DragEnd finishes a drag whose release the driver did not report as MouseUp.
func (m *MirrorCanvas) DragEnd() {
	if !m.down {
		return
	}
	m.down = false
	if m.OnUp != nil {
		m.OnUp(float64(m.last.X), float64(m.last.Y), m.mirrorRect())
	}
}

func (m *MirrorCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	border.StrokeWidth = 1
	sel := canvas.NewRectangle(color.RGBA{R: 0, G: 170, B: 255, A: 40})
	sel.StrokeColor = selectionColor
	sel.StrokeWidth = 1
	sel.Hide()
	return &mirrorRenderer{m: m, bg: bg, img: img, border: border, sel: sel}
}

// mirrorRenderer lays the frame out in the fitted rectangle and rebuilds the
// marker shapes on every refresh.
type mirrorRenderer struct {
	m        *MirrorCanvas
	bg       *canvas.Rectangle
	img      *canvas.Image
	border   *canvas.Rectangle
	sel      *canvas.Rectangle
	overlays []fyne.CanvasObject
}

func (r *mirrorRenderer) Destroy()           {}
func (r *mirrorRenderer) MinSize() fyne.Size { return r.m.MinSize() }

func (r *mirrorRenderer) Objects() []fyne.CanvasObject {
	objs := []fyne.CanvasObject{r.bg, r.img, r.border}
	objs = append(objs, r.overlays...)
	return append(objs, r.sel)
}

func (r *mirrorRenderer) Refresh() {
	r.img.Image = r.m.frame
	r.img.Refresh()
	r.Layout(r.m.Size())
	canvas.Refresh(r.m)
}

func (r *mirrorRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	mr := FitMirror(float64(size.Width), float64(size.Height))
	pos := fyne.NewPos(float32(mr.Left), float32(mr.Top))
	sz := fyne.NewSize(float32(mr.Width), float32(mr.Height))
	r.img.Move(pos)
	r.img.Resize(sz)
	r.border.Move(pos)
	r.border.Resize(sz)

	toScreen := func(x, y int) fyne.Position {
		sx, sy := viewport.FromVirtual(viewport.Point{X: x, Y: y}, mr)
		return fyne.NewPos(float32(sx), float32(sy))
	}

	r.overlays = r.overlays[:0]
	for _, mk := range r.m.markers {
		switch {
		case mk.Coord != nil:
			dot := canvas.NewCircle(color.Transparent)
			dot.StrokeColor = pointColor
			dot.StrokeWidth = 2
			c := toScreen(mk.Coord.X, mk.Coord.Y)
			dot.Move(fyne.NewPos(c.X-5, c.Y-5))
			dot.Resize(fyne.NewSize(10, 10))
			r.overlays = append(r.overlays, dot, r.label(mk.Label, fyne.NewPos(c.X+7, c.Y-8)))
		case mk.ROI != nil:
			box := canvas.NewRectangle(color.Transparent)
			box.StrokeColor = regionColor
			if mk.Exclusion {
				box.StrokeColor = exclusionColor
			}
			box.StrokeWidth = 1
			a := toScreen(mk.ROI[0], mk.ROI[1])
			b := toScreen(mk.ROI[2], mk.ROI[3])
			box.Move(a)
			box.Resize(fyne.NewSize(b.X-a.X, b.Y-a.Y))
			r.overlays = append(r.overlays, box, r.label(mk.Label, fyne.NewPos(a.X+2, a.Y+2)))
		}
	}

	if s := r.m.selection; s != nil && !s.Empty() {
		a := toScreen(s.X, s.Y)
		b := toScreen(s.X+s.W, s.Y+s.H)
		r.sel.Move(a)
		r.sel.Resize(fyne.NewSize(b.X-a.X, b.Y-a.Y))
		r.sel.Show()
	} else {
		r.sel.Hide()
	}
}

func (r *mirrorRenderer) label(text string, pos fyne.Position) fyne.CanvasObject {
	t := canvas.NewText(text, color.White)
	t.TextSize = 11
	t.Resize(t.MinSize())
	t.Move(pos)
	return t
}
