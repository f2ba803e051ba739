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
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"

	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/storage"
	"positron/internal/version"
)

// DefaultPDFName is the file name offered for PDF downloads.
const DefaultPDFName = "design.pdf"

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// WritePDF renders d as a single page, one canvas pixel per point. Shapes
// and text stay vector; images are embedded as PNG.
func WritePDF(w io.Writer, d scene.Document) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid canvas size %vx%v", d.Width, d.Height)
	}
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")
	size := gofpdf.SizeType{Wd: d.Width, Ht: d.Height}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle("Positron design", true)
	pdf.SetCreator("Positron "+version.String(), true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", size)

	p := &pdfPainter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), log: l}
	p.background(d)
	for i, o := range d.Objects {
		if !visible(o) {
			continue
		}
		p.object(i, o)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// SavePDF writes the PDF of d to path transactionally.
func SavePDF(path string, d scene.Document) error {
	var buf bytes.Buffer
	if err := WritePDF(&buf, d); err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, buf.Bytes())
}

type pdfPainter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
	log *slog.Logger
}

func (p *pdfPainter) background(d scene.Document) {
	pdf := p.pdf
	if c, ok := paintOf(d.Background.Color, scene.DefaultBackground); ok {
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		pdf.Rect(0, 0, d.Width, d.Height, "F")
	}
	if g := d.Background.Gradient; g != nil && len(g.Stops) > 0 {
		from, _ := scene.ParseColor(g.Stops[0].Color)
		to, _ := scene.ParseColor(g.Stops[len(g.Stops)-1].Color)
		// gradient vectors are given in unit space with y pointing up
		x1, y1 := g.X1/d.Width, 1-g.Y1/d.Height
		x2, y2 := g.X2/d.Width, 1-g.Y2/d.Height
		pdf.LinearGradient(0, 0, d.Width, d.Height,
			int(from.R), int(from.G), int(from.B), int(to.R), int(to.G), int(to.B),
			x1, y1, x2, y2)
	}
	if bi := d.Background.Image; bi != nil && bi.Src != "" && bi.Opacity > 0 {
		w, h := bi.Width*bi.ScaleX, bi.Height*bi.ScaleY
		if !p.image("background", bi.Src, 0, 0, w, h, bi.Opacity) {
			p.log.Warn("skip background image")
		}
	}
}

func (p *pdfPainter) object(i int, o scene.Object) {
	pdf := p.pdf
	w, h := o.Size()
	// the pivot is (Left, Top); the local box starts at pivot minus origin offset
	x0 := o.Left - originFraction(o.OriginX)*w
	y0 := o.Top - originFraction(o.OriginY)*h

	pdf.TransformBegin()
	defer pdf.TransformEnd()
	if o.Angle != 0 {
		pdf.TransformRotate(-o.Angle, o.Left, o.Top)
	}
	if o.ScaleX != 1 || o.ScaleY != 1 {
		pdf.TransformScale(o.ScaleX*100, o.ScaleY*100, o.Left, o.Top)
	}
	if o.Opacity < 1 {
		pdf.SetAlpha(o.Opacity, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}

	switch o.Type {
	case scene.KindImage:
		if !p.image(fmt.Sprintf("obj%d", i), o.Src, x0, y0, w, h, 1) {
			p.log.Warn("skip image", slog.String("id", o.ID))
		}
		return
	case scene.KindIText, scene.KindTextbox:
		p.text(o, x0, y0, w)
		return
	}

	style := ""
	if c, ok := fillOf(o); ok {
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		style += "F"
	}
	if c, ok := strokeOf(o); ok {
		pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		pdf.SetLineWidth(o.StrokeWidth)
		style += "D"
	}
	if style == "" {
		return
	}
	switch o.Type {
	case scene.KindRect:
		if r := math.Min(o.RX, math.Min(w, h)/2); r > 0 {
			p.roundedRect(x0, y0, w, h, r, style)
		} else {
			pdf.Rect(x0, y0, w, h, style)
		}
	case scene.KindCircle:
		pdf.Circle(x0+o.Radius, y0+o.Radius, o.Radius, style)
	case scene.KindTriangle:
		pdf.Polygon([]gofpdf.PointType{
			{X: x0 + w/2, Y: y0}, {X: x0 + w, Y: y0 + h}, {X: x0, Y: y0 + h},
		}, style)
	case scene.KindLine:
		if strings.Contains(style, "D") {
			a, b := o.LocalLineEnds()
			pdf.Line(x0+a.X, y0+a.Y, x0+b.X, y0+b.Y)
		}
	}
}

func (p *pdfPainter) roundedRect(x, y, w, h, r float64, style string) {
	pdf := p.pdf
	c := r * kappa
	pdf.MoveTo(x+r, y)
	pdf.LineTo(x+w-r, y)
	pdf.CurveBezierCubicTo(x+w-r+c, y, x+w, y+r-c, x+w, y+r)
	pdf.LineTo(x+w, y+h-r)
	pdf.CurveBezierCubicTo(x+w, y+h-r+c, x+w-r+c, y+h, x+w-r, y+h)
	pdf.LineTo(x+r, y+h)
	pdf.CurveBezierCubicTo(x+r-c, y+h, x, y+h-r+c, x, y+h-r)
	pdf.LineTo(x, y+r)
	pdf.CurveBezierCubicTo(x, y+r-c, x+r-c, y, x+r, y)
	pdf.ClosePath()
	pdf.DrawPath(style)
}

// image embeds a data URI image. It reports false when the source does not
// decode.
func (p *pdfPainter) image(name, src string, x, y, w, h, opacity float64) bool {
	img, err := decodeSrc(src)
	if err != nil {
		return false
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, flatten(img)); err != nil {
		return false
	}
	if w <= 0 || h <= 0 {
		b := img.Bounds()
		w, h = float64(b.Dx()), float64(b.Dy())
	}
	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	p.pdf.RegisterImageOptionsReader(name, opt, &buf)
	if opacity < 1 {
		p.pdf.SetAlpha(opacity, "Normal")
		defer p.pdf.SetAlpha(1, "Normal")
	}
	p.pdf.ImageOptions(name, x, y, w, h, false, opt, 0, "")
	return !p.pdf.Err()
}

// flatten converts img to NRGBA, which every PNG reader handles.
func flatten(img image.Image) image.Image {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// pdfFamily maps editor font names to the PDF core fonts.
func pdfFamily(family string) string {
	switch strings.ToLower(family) {
	case "times new roman", "times", "georgia", "serif":
		return "Times"
	case "courier new", "courier", "monospace":
		return "Courier"
	}
	return "Helvetica"
}

func (p *pdfPainter) text(o scene.Object, x0, y0, boxW float64) {
	c, ok := paintOf(o.Fill, scene.DefaultColor)
	if !ok || strings.TrimSpace(o.Text) == "" {
		return
	}
	pdf := p.pdf
	spec := o.FontSpec()
	style := ""
	if spec.Bold {
		style += "B"
	}
	if spec.Italic {
		style += "I"
	}
	pdf.SetFont(pdfFamily(spec.Family), style, spec.Size)
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))

	var lines []string
	if o.Type == scene.KindTextbox && boxW > 0 {
		for _, para := range strings.Split(o.Text, "\n") {
			lines = append(lines, pdf.SplitText(p.tr(para), boxW)...)
		}
	} else {
		for _, s := range strings.Split(o.Text, "\n") {
			lines = append(lines, p.tr(s))
		}
	}
	lh := spec.Size * 1.16
	ascent := spec.Size * 0.9
	for i, line := range lines {
		lw := pdf.GetStringWidth(line)
		x := x0
		switch o.TextAlign {
		case "center":
			x += (boxW - lw) / 2
		case "right":
			x += boxW - lw
		}
		base := y0 + float64(i)*lh + ascent
		pdf.Text(x, base, line)
		if o.Underline {
			pdf.SetLineWidth(math.Max(0.5, spec.Size/16))
			pdf.Line(x, base+spec.Size/10, x+lw, base+spec.Size/10)
		}
	}
}

// originFraction maps an origin keyword to its share of the extent.
func originFraction(v string) float64 {
	switch v {
	case "center":
		return 0.5
	case "right", "bottom":
		return 1
	}
	return 0
}
