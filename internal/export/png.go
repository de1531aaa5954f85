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
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"questeditor/internal/action"
	"questeditor/internal/crop"
	"questeditor/internal/quest"
	"questeditor/internal/viewport"
)

// PNGOptions controls the overlay export.
// - Scale: output size relative to the virtual resolution; 0 means 0.5
// - Labels: draw the "#index" label next to each marker
// - Colors default to green points, yellow regions and red exclusions.
type PNGOptions struct {
	Scale          float64
	Labels         bool
	PointColor     color.RGBA
	RegionColor    color.RGBA
	ExclusionColor color.RGBA
}

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Scale <= 0 {
		o.Scale = 0.5
	}
	if o.PointColor == (color.RGBA{}) {
		o.PointColor = color.RGBA{R: 0, G: 230, B: 64, A: 255}
	}
	if o.RegionColor == (color.RGBA{}) {
		o.RegionColor = color.RGBA{R: 255, G: 215, B: 0, A: 255}
	}
	if o.ExclusionColor == (color.RGBA{}) {
		o.ExclusionColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	}
	return o
}

// RenderOverlay draws the markers of list over frame. A nil frame gives a
// dark background at the virtual aspect ratio.
func RenderOverlay(frame image.Image, list action.List, opt PNGOptions) *image.RGBA {
	opt = opt.withDefaults()
	pixW := int(float64(viewport.VirtualWidth) * opt.Scale)
	pixH := int(float64(viewport.VirtualHeight) * opt.Scale)
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	if frame != nil {
		draw.ApproxBiLinear.Scale(img, img.Bounds(), frame, frame.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 32, G: 32, B: 32, A: 255}}, image.Point{}, draw.Src)
	}

	px := func(v int) int { return int(float64(v) * opt.Scale) }
	for _, m := range Markers(list) {
		var lx, ly int
		switch {
		case m.Coord != nil:
			x, y := px(m.Coord.X), px(m.Coord.Y)
			crosshair(img, x, y, 6, opt.PointColor)
			lx, ly = x+8, y-4
		case m.ROI != nil:
			c := opt.RegionColor
			if m.Exclusion {
				c = opt.ExclusionColor
			}
			r := *m.ROI
			strokeRect(img, px(r[0]), px(r[1]), px(r[2]), px(r[3]), c)
			lx, ly = px(r[0])+3, px(r[1])+14
		}
		if opt.Labels {
			label(img, lx, ly, m.Label, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

// ExportQuestPNG renders list k of quest id over frame (raw or base64 JPEG,
// may be nil) and writes it to outPath.
func ExportQuestPNG(doc quest.Document, id string, k quest.ListKind, frameData []byte, outPath string, opt PNGOptions) error {
	sc, ok := doc.Get(id)
	if !ok {
		return fmt.Errorf("export png: quest %q: %w", id, quest.ErrNotFound)
	}
	var frame image.Image
	if len(frameData) > 0 {
		f, err := crop.DecodeFrame(frameData)
		if err != nil {
			return fmt.Errorf("export png: %w", err)
		}
		frame = f
	}
	img := RenderOverlay(frame, sc.List(k), opt)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func crosshair(img *image.RGBA, x, y, r int, col color.RGBA) {
	for d := -r; d <= r; d++ {
		setClipped(img, x+d, y, col)
		setClipped(img, x, y+d, col)
	}
	strokeRect(img, x-2, y-2, x+2, y+2, col)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for x := x0; x <= x1; x++ {
		setClipped(img, x, y0, col)
		setClipped(img, x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		setClipped(img, x0, y, col)
		setClipped(img, x1, y, col)
	}
}

func setClipped(img *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, col)
	}
}

func label(img *image.RGBA, x, y int, text string, col color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
