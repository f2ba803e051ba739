/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and wraps text for the scene and the exporters.
// All measurement goes through a Provider so that tests can use the fixed
// 7x13 bitmap face while real rendering uses scalable OpenType faces.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string
	Size   float64 // px
	Bold   bool
	Italic bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// LineHeight is the distance between two baselines.
func (m Metrics) LineHeight() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// Line is a single laid out line.
type Line struct {
	Text  string
	Width float64
}

// Box is the result of measuring or wrapping a block of text.
type Box struct {
	Lines   []Line
	Width   float64
	Height  float64
	Metrics Metrics
}

// BasicProvider uses x/image/basicfont Face7x13 regardless of the requested
// size. Widths are deterministic which keeps tests stable.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	asc := float64(m.Ascent.Round())
	desc := float64(m.Descent.Round())
	gap := float64(m.Height.Round()) - asc - desc
	if gap < 0 {
		gap = 0
	}
	return Metrics{Ascent: asc, Descent: desc, LineGap: gap}
}

func advance(d *font.Drawer, s string) float64 {
	return float64(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}

// Measure lays text out without wrapping; explicit newlines start new lines.
func Measure(p Provider, spec FontSpec, text string) Box {
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	d := &font.Drawer{Face: face}
	box := Box{Metrics: met}
	for _, s := range strings.Split(text, "\n") {
		box.push(Line{Text: s, Width: advance(d, s)})
	}
	return box
}

// Wrap breaks text on spaces so that no line exceeds maxWidth unless a single
// word is wider. A non-positive maxWidth disables wrapping.
func Wrap(p Provider, spec FontSpec, text string, maxWidth float64) Box {
	if maxWidth <= 0 {
		return Measure(p, spec, text)
	}
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	d := &font.Drawer{Face: face}
	box := Box{Metrics: met}
	space := advance(d, " ")
	for _, para := range strings.Split(text, "\n") {
		var cur []string
		var w float64
		for _, word := range strings.Fields(para) {
			ww := advance(d, word)
			if len(cur) > 0 && w+space+ww > maxWidth {
				box.push(Line{Text: strings.Join(cur, " "), Width: w})
				cur, w = nil, 0
			}
			if len(cur) > 0 {
				w += space
			}
			cur = append(cur, word)
			w += ww
		}
		box.push(Line{Text: strings.Join(cur, " "), Width: w})
	}
	return box
}

func (b *Box) push(l Line) {
	b.Lines = append(b.Lines, l)
	if l.Width > b.Width {
		b.Width = l.Width
	}
	b.Height += b.Metrics.LineHeight()
}
