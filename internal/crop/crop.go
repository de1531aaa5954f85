/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crop cuts template images out of the live device frame and names
// them for the image store.
package crop

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"questeditor/internal/viewport"
)

// Ext is the extension every saved template carries.
const Ext = ".png"

// DecodeFrame decodes a mirror frame: raw JPEG bytes, or base64 text of them.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8 {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg frame: %w", err)
		}
		return img, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode base64 frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Region returns the part of frame under box, given in virtual coordinates.
// The result is box.W x box.H pixels; frames that are not at virtual
// resolution are resampled.
func Region(frame image.Image, box viewport.Box) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("no frame to crop")
	}
	if box.Empty() {
		return nil, fmt.Errorf("empty crop box %+v", box)
	}
	b := frame.Bounds()
	sx := float64(b.Dx()) / viewport.VirtualWidth
	sy := float64(b.Dy()) / viewport.VirtualHeight
	src := image.Rect(
		b.Min.X+int(float64(box.X)*sx),
		b.Min.Y+int(float64(box.Y)*sy),
		b.Min.X+int(float64(box.X+box.W)*sx),
		b.Min.Y+int(float64(box.Y+box.H)*sy),
	).Intersect(b)
	if src.Empty() {
		return nil, fmt.Errorf("crop box %+v outside frame %v", box, b)
	}
	dst := image.NewRGBA(image.Rect(0, 0, box.W, box.H))
	if src.Dx() == box.W && src.Dy() == box.H {
		draw.Copy(dst, image.Point{}, frame, src, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), frame, src, draw.Src, nil)
	}
	return dst, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64PNG encodes img as base64 PNG, the form the device service stores.
func EncodeBase64PNG(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DefaultName picks the name offered for a new crop: the field's current value
// when it has one, else img_HHMMSS in UTC.
func DefaultName(current string, now time.Time) string {
	if s := strings.TrimSpace(current); s != "" && !strings.HasPrefix(s, "input ") {
		return s
	}
	return "img_" + now.UTC().Format("150405")
}

// CanonicalName trims name and appends the png extension unless it already
// ends in it, compared case-insensitively.
func CanonicalName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), Ext) {
		return name
	}
	return name + Ext
}

// DisplayName trims name and strips a trailing png extension for storing in
// a script field.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), Ext) {
		return name[:len(name)-len(Ext)]
	}
	return name
}
