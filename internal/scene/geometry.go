/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Geometry helpers used for bounds and hit-testing.

import "math"

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse transform; a singular matrix yields Identity
// and false.
func (m Affine2D) Invert() (Affine2D, bool) {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity, false
	}
	inv := 1 / det
	return Affine2D{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, true
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }

// RotateDeg rotates clockwise in screen space (y down) by deg degrees.
func RotateDeg(deg float64) Affine2D {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// originFactor maps an origin keyword to its fraction of the extent.
func originFactor(v string) float64 {
	switch v {
	case "center":
		return 0.5
	case "right", "bottom":
		return 1
	}
	return 0
}

// Size returns the unscaled local extent of o.
func (o Object) Size() (w, h float64) {
	switch o.Type {
	case KindCircle:
		return 2 * o.Radius, 2 * o.Radius
	case KindLine:
		return math.Abs(o.X2 - o.X1), math.Abs(o.Y2 - o.Y1)
	}
	return o.Width, o.Height
}

// Transform maps local coordinates, where the shape spans [0,w]x[0,h], to
// canvas coordinates.
func (o Object) Transform() Affine2D {
	w, h := o.Size()
	sx, sy := o.ScaleX, o.ScaleY
	m := Translate(o.Left, o.Top)
	m = m.Mul(RotateDeg(o.Angle))
	m = m.Mul(Scale(sx, sy))
	return m.Mul(Translate(-originFactor(o.OriginX)*w, -originFactor(o.OriginY)*h))
}

// Bounds is the axis-aligned bounding box of o on the canvas.
func (o Object) Bounds() Rect {
	w, h := o.Size()
	m := o.Transform()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range []Pt{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		p := m.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// lineHitTolerance is the distance in local units within which a line is hit.
const lineHitTolerance = 4

// Hit reports whether canvas point p lies on o.
func (o Object) Hit(p Pt) bool {
	inv, ok := o.Transform().Invert()
	if !ok {
		return false
	}
	q := inv.Apply(p)
	w, h := o.Size()
	switch o.Type {
	case KindCircle:
		if o.Radius == 0 {
			return false
		}
		dx := (q.X - o.Radius) / o.Radius
		dy := (q.Y - o.Radius) / o.Radius
		return dx*dx+dy*dy <= 1
	case KindTriangle:
		// apex at top middle, base along the bottom edge
		if q.Y < 0 || q.Y > h || h == 0 {
			return false
		}
		half := (w / 2) * (q.Y / h)
		return q.X >= w/2-half && q.X <= w/2+half
	case KindLine:
		a, b := o.LocalLineEnds()
		return distToSegment(q, a, b) <= math.Max(lineHitTolerance, o.StrokeWidth/2)
	}
	return Rect{W: w, H: h}.Contains(q)
}

// LocalLineEnds returns the endpoints of a line in local coordinates.
func (o Object) LocalLineEnds() (Pt, Pt) {
	minX := math.Min(o.X1, o.X2)
	minY := math.Min(o.Y1, o.Y2)
	return Pt{o.X1 - minX, o.Y1 - minY}, Pt{o.X2 - minX, o.Y2 - minY}
}

// LineEnds returns the endpoints of a line object in canvas coordinates.
func (o Object) LineEnds() (Pt, Pt) {
	a, b := o.LocalLineEnds()
	m := o.Transform()
	return m.Apply(a), m.Apply(b)
}

func distToSegment(p, a, b Pt) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
