/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"

	"github.com/gogpu/gg"

	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/storage"
	"positron/internal/textlayout"
)

// DefaultPNGName is the file name offered for PNG downloads.
const DefaultPNGName = "design.png"

// MaxPixels bounds the raster size.
const MaxPixels = 64 << 20

// PNGOptions controls rasterization.
type PNGOptions struct {
	// Scale multiplies the canvas size; zero means 1.
	Scale float64
	// Fonts resolves text faces. A private provider is used when nil.
	Fonts textlayout.Provider
}

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Fonts == nil {
		o.Fonts = textlayout.NewOTProvider(nil)
	}
	return o
}

// Rasterize draws d: background color, gradient and image first, then every
// object in stacking order with its transform and opacity.
func Rasterize(d scene.Document, opt PNGOptions) (image.Image, error) {
	opt = opt.withDefaults()
	s := opt.Scale
	w, h := int(math.Ceil(d.Width*s)), int(math.Ceil(d.Height*s))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid canvas size %vx%v", d.Width, d.Height)
	}
	if w*h > MaxPixels {
		return nil, fmt.Errorf("raster of %dx%d exceeds the pixel limit", w, h)
	}
	l := applog.WithOperation(applog.WithComponent("export"), "rasterize")

	dc := gg.NewContext(w, h)
	defer func() { _ = dc.Close() }()
	r := &rasterizer{dc: dc, w: w, h: h, scale: s, fonts: opt.Fonts, log: l}
	if err := r.background(d.Background); err != nil {
		return nil, err
	}
	for _, o := range d.Objects {
		if !visible(o) {
			continue
		}
		if err := r.object(o); err != nil {
			return nil, fmt.Errorf("draw %s %s: %w", o.Type, o.ID, err)
		}
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return dc.Image(), nil
}

// WritePNG rasterizes d and encodes it to w.
func WritePNG(w io.Writer, d scene.Document, opt PNGOptions) error {
	img, err := Rasterize(d, opt)
	if err != nil {
		return err
	}
	return encodePNG(w, img)
}

// SavePNG writes the raster of d to path transactionally.
func SavePNG(path string, d scene.Document, opt PNGOptions) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, d, opt); err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

type rasterizer struct {
	dc    *gg.Context
	w, h  int
	scale float64
	fonts textlayout.Provider
	log   *slog.Logger
}

func toMatrix(m scene.Affine2D) gg.Matrix {
	return gg.Matrix{A: m.A, B: m.C, C: m.E, D: m.B, E: m.D, F: m.F}
}

func (r *rasterizer) background(bg scene.Background) error {
	if c, ok := paintOf(bg.Color, scene.DefaultBackground); ok {
		r.dc.ClearWithColor(gg.FromColor(c))
	}
	if g := bg.Gradient; g != nil && len(g.Stops) > 0 {
		s := r.scale
		brush := gg.NewLinearGradientBrush(g.X1*s, g.Y1*s, g.X2*s, g.Y2*s)
		for _, st := range g.Stops {
			c, err := scene.ParseColor(st.Color)
			if err != nil {
				return fmt.Errorf("gradient stop: %w", err)
			}
			brush.AddColorStop(st.Offset, gg.FromColor(c))
		}
		r.dc.Identity()
		r.dc.SetFillBrush(brush)
		r.dc.DrawRectangle(0, 0, float64(r.w), float64(r.h))
		if err := r.dc.Fill(); err != nil {
			return err
		}
	}
	if bi := bg.Image; bi != nil && bi.Src != "" && bi.Opacity > 0 {
		img, err := decodeSrc(bi.Src)
		if err != nil {
			// a broken background image must not block the export
			r.log.Warn("skip background image", slog.Any("err", err))
			return nil
		}
		b := img.Bounds()
		m := scene.Scale(r.scale, r.scale).
			Mul(scene.Scale(bi.ScaleX, bi.ScaleY)).
			Mul(scene.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
		r.composite(placeBitmap(r.w, r.h, img, m), bi.Opacity)
	}
	return nil
}

func (r *rasterizer) object(o scene.Object) error {
	m := scene.Scale(r.scale, r.scale).Mul(o.Transform())
	switch o.Type {
	case scene.KindImage:
		img, err := decodeSrc(o.Src)
		if err != nil {
			r.log.Warn("skip image", slog.String("id", o.ID), slog.Any("err", err))
			return nil
		}
		b := img.Bounds()
		// the image spans its natural size in local coordinates
		fit := scene.Identity
		if o.Width > 0 && o.Height > 0 {
			fit = scene.Scale(o.Width/float64(b.Dx()), o.Height/float64(b.Dy()))
		}
		m = m.Mul(fit).Mul(scene.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
		r.composite(placeBitmap(r.w, r.h, img, m), o.Opacity)
		return nil
	case scene.KindIText, scene.KindTextbox:
		k := textScale(o, r.scale)
		bmp := textImage(o, r.fonts, k)
		if bmp == nil {
			return nil
		}
		r.composite(placeBitmap(r.w, r.h, bmp, m.Mul(scene.Scale(1/k, 1/k))), o.Opacity)
		return nil
	}
	return r.shape(o, m)
}

func (r *rasterizer) shape(o scene.Object, m scene.Affine2D) error {
	fill, hasFill := fillOf(o)
	stroke, hasStroke := strokeOf(o)
	if !hasFill && !hasStroke {
		return nil
	}
	dc := r.dc
	if o.Opacity < 1 {
		dc.PushLayer(gg.BlendNormal, o.Opacity)
		defer dc.PopLayer()
	}
	dc.Push()
	defer dc.Pop()
	dc.SetTransform(toMatrix(m))

	w, h := o.Size()
	path := func() {
		switch o.Type {
		case scene.KindRect:
			if rad := math.Min(o.RX, math.Min(w, h)/2); rad > 0 {
				dc.DrawRoundedRectangle(0, 0, w, h, rad)
			} else {
				dc.DrawRectangle(0, 0, w, h)
			}
		case scene.KindCircle:
			dc.DrawCircle(o.Radius, o.Radius, o.Radius)
		case scene.KindTriangle:
			dc.MoveTo(w/2, 0)
			dc.LineTo(w, h)
			dc.LineTo(0, h)
			dc.ClosePath()
		case scene.KindLine:
			a, b := o.LocalLineEnds()
			dc.MoveTo(a.X, a.Y)
			dc.LineTo(b.X, b.Y)
		}
	}

	var errs []error
	if hasFill {
		path()
		dc.SetFillBrush(gg.Solid(gg.FromColor(fill)))
		errs = append(errs, dc.Fill())
	}
	if hasStroke {
		path()
		dc.SetLineWidth(o.StrokeWidth)
		dc.SetStrokeBrush(gg.Solid(gg.FromColor(stroke)))
		errs = append(errs, dc.Stroke())
	}
	return errors.Join(errs...)
}

func encodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// composite blends a canvas-sized layer over the output.
func (r *rasterizer) composite(layer *image.RGBA, opacity float64) {
	if opacity <= 0 {
		return
	}
	r.dc.Push()
	r.dc.Identity()
	r.dc.DrawImageEx(gg.ImageBufFromImage(layer), gg.DrawImageOptions{
		Opacity:   math.Min(opacity, 1),
		BlendMode: gg.BlendNormal,
	})
	r.dc.Pop()
}
