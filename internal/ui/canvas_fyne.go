//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"positron/internal/editor"
	"positron/internal/export"
	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/textlayout"
)

// DesignCanvas shows the rasterized design and turns pointer gestures into
// editor operations. Drag previews only move the selection outline; the edit
// is applied once on DragEnd so one gesture is one history entry.
type DesignCanvas struct {
	widget.BaseWidget

	ed    *editor.Editor
	fonts textlayout.Provider
	log   *slog.Logger

	zoom    float32
	offsetX float32
	offsetY float32

	raster     image.Image
	docW, docH float32
	selected   scene.Rect
	hasSel     bool

	dragMode  dragMode
	startPage scene.Pt
	curPage   scene.Pt

	// OnChange is called after a gesture changed the design.
	OnChange func()
}

type dragMode int

const (
	dragNone dragMode = iota
	dragPan
	dragMove
	dragScale
	dragRotate
)

const (
	handleSize   = 10
	rotateOffset = 24
	minZoom      = 0.1
	maxZoom      = 4.0
)

func NewDesignCanvas(ed *editor.Editor) *DesignCanvas {
	dc := &DesignCanvas{
		ed:    ed,
		fonts: textlayout.NewOTProvider(nil),
		log:   applog.WithComponent("ui.canvas"),
		zoom:  1,
	}
	dc.ExtendBaseWidget(dc)
	dc.Reload()
	return dc
}

// Reload re-rasterizes the design and picks up the current selection.
func (p *DesignCanvas) Reload() {
	d := p.ed.Document()
	img, err := export.Rasterize(d, export.PNGOptions{Scale: 1, Fonts: p.fonts})
	if err != nil {
		p.log.Error("rasterize failed", slog.Any("err", err))
		img = nil
	}
	p.raster = img
	p.docW, p.docH = float32(d.Width), float32(d.Height)
	o, _, ok := p.ed.Selection()
	p.hasSel = ok
	if ok {
		p.selected = o.Bounds()
	}
	p.Refresh()
}

// ZoomBy changes the zoom factor within [minZoom, maxZoom].
func (p *DesignCanvas) ZoomBy(step float32) {
	p.zoom += step
	if p.zoom < minZoom {
		p.zoom = minZoom
	}
	if p.zoom > maxZoom {
		p.zoom = maxZoom
	}
	p.Refresh()
}

// ResetView centers the design at 100%.
func (p *DesignCanvas) ResetView() {
	p.zoom, p.offsetX, p.offsetY = 1, 0, 0
	p.Refresh()
}

func (p *DesignCanvas) origin() (cx, cy float32) {
	size := p.Size()
	cx = size.Width/2 - p.docW*p.zoom/2 + p.offsetX
	cy = size.Height/2 - p.docH*p.zoom/2 + p.offsetY
	return cx, cy
}

func (p *DesignCanvas) toScreen(pt scene.Pt) fyne.Position {
	cx, cy := p.origin()
	return fyne.NewPos(cx+float32(pt.X)*p.zoom, cy+float32(pt.Y)*p.zoom)
}

func (p *DesignCanvas) toPage(pos fyne.Position) scene.Pt {
	cx, cy := p.origin()
	return scene.Pt{X: float64((pos.X - cx) / p.zoom), Y: float64((pos.Y - cy) / p.zoom)}
}

// preview is the selection outline in page coordinates with the pending
// gesture applied.
func (p *DesignCanvas) preview() scene.Rect {
	b := p.selected
	dx, dy := p.curPage.X-p.startPage.X, p.curPage.Y-p.startPage.Y
	switch p.dragMode {
	case dragMove:
		b.X += dx
		b.Y += dy
	case dragScale:
		fx, fy := p.scaleFactors()
		b.W *= fx
		b.H *= fy
	}
	return b
}

func (p *DesignCanvas) scaleFactors() (fx, fy float64) {
	b := p.selected
	fx, fy = 1, 1
	if w := p.startPage.X - b.X; w != 0 {
		fx = (p.curPage.X - b.X) / w
	}
	if h := p.startPage.Y - b.Y; h != 0 {
		fy = (p.curPage.Y - b.Y) / h
	}
	return math.Max(fx, 0.01), math.Max(fy, 0.01)
}

func (p *DesignCanvas) rotation() float64 {
	b := p.selected
	cx, cy := b.X+b.W/2, b.Y+b.H/2
	a0 := math.Atan2(p.startPage.Y-cy, p.startPage.X-cx)
	a1 := math.Atan2(p.curPage.Y-cy, p.curPage.X-cx)
	return (a1 - a0) * 180 / math.Pi
}

// handles returns the scale handle (bottom right) and rotate handle (above
// top center) in screen coordinates.
func (p *DesignCanvas) handles() (scale, rotate fyne.Position) {
	b := p.preview()
	br := p.toScreen(scene.Pt{X: b.X + b.W, Y: b.Y + b.H})
	top := p.toScreen(scene.Pt{X: b.X + b.W/2, Y: b.Y})
	return fyne.NewPos(br.X-handleSize/2, br.Y-handleSize/2),
		fyne.NewPos(top.X-handleSize/2, top.Y-rotateOffset-handleSize/2)
}

func within(pos, corner fyne.Position) bool {
	return pos.X >= corner.X && pos.X <= corner.X+handleSize && pos.Y >= corner.Y && pos.Y <= corner.Y+handleSize
}

// Tapped selects the top-most object under the pointer.
func (p *DesignCanvas) Tapped(e *fyne.PointEvent) {
	pt := p.toPage(e.Position)
	if _, ok := p.ed.SelectAt(pt.X, pt.Y); !ok {
		p.ed.ClearSelection()
	}
	p.Reload()
	if p.OnChange != nil {
		p.OnChange()
	}
}

func (p *DesignCanvas) Dragged(e *fyne.DragEvent) {
	if p.dragMode == dragNone {
		p.startPage = p.toPage(e.Position)
		p.curPage = p.startPage
		p.dragMode = dragPan
		if p.hasSel {
			sh, rh := p.handles()
			switch {
			case within(e.Position, rh):
				p.dragMode = dragRotate
			case within(e.Position, sh):
				p.dragMode = dragScale
			case p.selected.Contains(p.startPage):
				p.dragMode = dragMove
			}
		}
	}
	if p.dragMode == dragPan {
		p.offsetX += e.Dragged.DX
		p.offsetY += e.Dragged.DY
	} else {
		p.curPage = p.toPage(e.Position)
	}
	p.Refresh()
}

func (p *DesignCanvas) DragEnd() {
	mode := p.dragMode
	p.dragMode = dragNone
	var err error
	switch mode {
	case dragMove:
		err = p.ed.Move(p.curPage.X-p.startPage.X, p.curPage.Y-p.startPage.Y)
	case dragScale:
		err = p.ed.Scale(p.scaleFactors())
	case dragRotate:
		err = p.ed.Rotate(p.rotation())
	default:
		p.Refresh()
		return
	}
	if err != nil {
		p.log.Info("gesture rejected", slog.Any("err", err))
	}
	p.Reload()
	if p.OnChange != nil {
		p.OnChange()
	}
}

// Scrolled zooms with the wheel.
func (p *DesignCanvas) Scrolled(e *fyne.ScrollEvent) {
	p.ZoomBy(e.Scrolled.DY * 0.002)
}

func (p *DesignCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

func (p *DesignCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 229, G: 231, B: 235, A: 255})
	shadow := canvas.NewRectangle(color.NRGBA{A: 40})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleSmooth

	accent := color.NRGBA{R: 59, G: 130, B: 246, A: 255}
	bbox := canvas.NewRectangle(color.Transparent)
	bbox.StrokeColor = accent
	bbox.StrokeWidth = 1
	scaleHandle := canvas.NewRectangle(accent)
	rotHandle := canvas.NewCircle(color.NRGBA{R: 250, G: 204, B: 21, A: 255})

	return &designCanvasRenderer{
		dc:      p,
		bg:      bg,
		shadow:  shadow,
		img:     img,
		bbox:    bbox,
		scale:   scaleHandle,
		rotate:  rotHandle,
		objects: []fyne.CanvasObject{bg, shadow, img, bbox, scaleHandle, rotHandle},
	}
}

type designCanvasRenderer struct {
	dc         *DesignCanvas
	bg, shadow *canvas.Rectangle
	img        *canvas.Image
	bbox       *canvas.Rectangle
	scale      *canvas.Rectangle
	rotate     *canvas.Circle
	objects    []fyne.CanvasObject
}

func (r *designCanvasRenderer) Destroy()                     {}
func (r *designCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *designCanvasRenderer) MinSize() fyne.Size           { return r.dc.MinSize() }

func (r *designCanvasRenderer) Refresh() {
	if r.img.Image != r.dc.raster {
		r.img.Image = r.dc.raster
		r.img.Refresh()
	}
	r.Layout(r.dc.Size())
	canvas.Refresh(r.dc)
}

func (r *designCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	cx, cy := r.dc.origin()
	page := fyne.NewSize(r.dc.docW*r.dc.zoom, r.dc.docH*r.dc.zoom)
	r.shadow.Resize(page)
	r.shadow.Move(fyne.NewPos(cx+4, cy+4))
	r.img.Resize(page)
	r.img.Move(fyne.NewPos(cx, cy))

	if !r.dc.hasSel {
		r.bbox.Hide()
		r.scale.Hide()
		r.rotate.Hide()
		return
	}
	b := r.dc.preview()
	p0 := r.dc.toScreen(scene.Pt{X: b.X, Y: b.Y})
	p1 := r.dc.toScreen(scene.Pt{X: b.X + b.W, Y: b.Y + b.H})
	r.bbox.Move(p0)
	r.bbox.Resize(fyne.NewSize(p1.X-p0.X, p1.Y-p0.Y))
	sh, rh := r.dc.handles()
	r.scale.Move(sh)
	r.scale.Resize(fyne.NewSize(handleSize, handleSize))
	r.rotate.Move(rh)
	r.rotate.Resize(fyne.NewSize(handleSize, handleSize))
	r.bbox.Show()
	r.scale.Show()
	r.rotate.Show()
}
