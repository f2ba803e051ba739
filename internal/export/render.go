/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export turns a scene document into files: PNG rasters, PDF pages
// and the raw JSON document.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"positron/internal/scene"
	"positron/internal/textlayout"
)

// paintOf resolves a color attribute; ok is false when nothing is painted.
func paintOf(s, fallback string) (color.NRGBA, bool) {
	if strings.TrimSpace(s) == "" {
		s = fallback
	}
	if s == "" {
		return color.NRGBA{}, false
	}
	c, err := scene.ParseColor(s)
	if err != nil || c.A == 0 {
		return color.NRGBA{}, false
	}
	return c, true
}

func fillOf(o scene.Object) (color.NRGBA, bool) {
	if o.Type == scene.KindLine {
		return color.NRGBA{}, false
	}
	return paintOf(o.Fill, scene.DefaultColor)
}

func strokeOf(o scene.Object) (color.NRGBA, bool) {
	if o.StrokeWidth <= 0 || o.Type.IsText() {
		return color.NRGBA{}, false
	}
	fallback := ""
	if o.Type == scene.KindLine {
		fallback = scene.DefaultColor
	}
	return paintOf(o.Stroke, fallback)
}

// visible reports whether o contributes any pixels.
func visible(o scene.Object) bool {
	if o.Opacity <= 0 || o.ScaleX == 0 || o.ScaleY == 0 {
		return false
	}
	w, h := o.Size()
	return w > 0 || h > 0
}

func decodeSrc(src string) (image.Image, error) {
	_, data, err := scene.DecodeDataURI(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// textImage renders a text object into a bitmap of its local box enlarged by
// k. The bitmap's pixel (x,y) corresponds to local point (x/k, y/k).
func textImage(o scene.Object, fonts textlayout.Provider, k float64) *image.RGBA {
	spec := o.FontSpec()
	fill, ok := paintOf(o.Fill, scene.DefaultColor)
	if !ok || strings.TrimSpace(o.Text) == "" {
		return nil
	}
	spec.Size *= k
	var box textlayout.Box
	if o.Type == scene.KindTextbox && o.Width > 0 {
		box = textlayout.Wrap(fonts, spec, o.Text, o.Width*k)
	} else {
		box = textlayout.Measure(fonts, spec, o.Text)
	}
	w, h := o.Width*k, o.Height*k
	if w <= 0 {
		w = box.Width
	}
	if h <= 0 {
		h = box.Height
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(w)), int(math.Ceil(h))))
	face, _ := fonts.Resolve(spec)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fill), Face: face}
	lh := box.Metrics.LineHeight()
	for i, line := range box.Lines {
		x := 0.0
		switch o.TextAlign {
		case "center":
			x = (w - line.Width) / 2
		case "right":
			x = w - line.Width
		}
		base := float64(i)*lh + box.Metrics.Ascent
		d.Dot = fixed.P(int(math.Round(x)), int(math.Round(base)))
		d.DrawString(line.Text)
		if o.Underline && line.Width > 0 {
			thick := math.Max(1, spec.Size/16)
			y0 := int(math.Round(base + thick))
			r := image.Rect(int(x), y0, int(x+line.Width), y0+int(math.Ceil(thick)))
			draw.Draw(dst, r, image.NewUniform(fill), image.Point{}, draw.Over)
		}
	}
	return dst
}

// aff converts a scene transform into x/image's row-major form.
func aff(m scene.Affine2D) f64.Aff3 {
	return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
}

// placeBitmap draws src onto a transparent canvas-sized layer through m,
// which maps src pixel coordinates to output pixels.
func placeBitmap(w, h int, src image.Image, m scene.Affine2D) *image.RGBA {
	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Transform(layer, aff(m), src, src.Bounds(), draw.Over, nil)
	return layer
}

// textScale is the supersampling factor used for text rendered at output
// scale s.
func textScale(o scene.Object, s float64) float64 {
	k := s * math.Max(math.Abs(o.ScaleX), math.Abs(o.ScaleY))
	if k <= 0 {
		return 1
	}
	return k
}
