/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package panel applies property-panel edits to the selected scene object.
//
// Every setter is a no-op when nothing is selected. A valid edit mutates the
// object through the scene, updates the panel's local snapshot, commits (which
// records history) and re-renders. Invalid values return ErrInvalidValue and
// change nothing.
package panel

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	applog "positron/internal/log"
	"positron/internal/scene"
	"positron/internal/selection"
)

// ErrInvalidValue is returned for out-of-range or unknown attribute values.
var ErrInvalidValue = errors.New("invalid value")

// Limits and choices offered by the panel.
const (
	MaxStrokeWidth  = 20
	MaxFontSize     = 400
	DuplicateOffset = 20
)

var (
	FontFamilies = []string{"Arial", "Times New Roman", "Courier New", "Georgia", "Verdana"}
	FontSizes    = []float64{12, 14, 16, 18, 20, 24, 30, 36, 48, 60, 72}
	TextAligns   = []string{"left", "center", "right", "justify"}
)

// Canvas is the subset of the scene the controller drives.
type Canvas interface {
	Object(id string) (scene.Object, bool)
	Update(id string, fn func(*scene.Object)) error
	Add(o scene.Object) (scene.Object, error)
	Remove(id string) error
	SetActive(id string) error
	Clone(id string, dx, dy float64) (scene.Object, error)
	BringToFront(id string) error
	SendToBack(id string) error
	Commit()
	Render()
}

// Controller edits whatever the selection bridge points at.
type Controller struct {
	canvas Canvas
	sel    *selection.Bridge
	log    *slog.Logger
	cancel func()

	props selection.Properties
	has   bool
}

// New wires a controller to a canvas and its selection bridge.
func New(c Canvas, sel *selection.Bridge) *Controller {
	ctl := &Controller{canvas: c, sel: sel, log: applog.WithComponent("panel")}
	ctl.props, ctl.has = sel.Properties()
	ctl.cancel = sel.Observe(func(p selection.Properties, ok bool) {
		ctl.props, ctl.has = p, ok
	})
	return ctl
}

// Close detaches from the selection bridge.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Properties returns the panel's local snapshot.
func (c *Controller) Properties() (selection.Properties, bool) {
	if !c.has {
		return selection.Properties{}, false
	}
	p := c.props
	if p.Text != nil {
		t := *p.Text
		p.Text = &t
	}
	return p, true
}

// target resolves the selection; ok is false when there is nothing to edit.
func (c *Controller) target() (scene.Object, bool) {
	return c.sel.Current()
}

// apply runs mutate on the selected object, then local on the snapshot, then
// commits and renders.
func (c *Controller) apply(op string, mutate func(*scene.Object), local func(*selection.Properties)) error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	if err := c.canvas.Update(o.ID, mutate); err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if local != nil && c.has {
		local(&c.props)
	}
	c.canvas.Commit()
	c.canvas.Render()
	c.sel.Refresh()
	c.log.Debug("property applied", slog.String("op", op), slog.String("id", o.ID))
	return nil
}

// applyText is apply restricted to text objects.
func (c *Controller) applyText(op string, mutate func(*scene.Object), local func(*selection.TextProperties)) error {
	o, ok := c.target()
	if !ok || !o.Type.IsText() {
		return nil
	}
	return c.apply(op, mutate, func(p *selection.Properties) {
		if p.Text != nil {
			local(p.Text)
		}
	})
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))
}

// SetFill sets the fill color.
func (c *Controller) SetFill(color string) error {
	if !scene.ValidColor(color) {
		return invalid("fill %q", color)
	}
	return c.apply("fill", func(o *scene.Object) { o.Fill = color }, func(p *selection.Properties) { p.Fill = color })
}

// SetStroke sets the stroke color.
func (c *Controller) SetStroke(color string) error {
	if !scene.ValidColor(color) {
		return invalid("stroke %q", color)
	}
	return c.apply("stroke", func(o *scene.Object) { o.Stroke = color }, func(p *selection.Properties) { p.Stroke = color })
}

// SetStrokeWidth accepts 0..MaxStrokeWidth.
func (c *Controller) SetStrokeWidth(w float64) error {
	if w < 0 || w > MaxStrokeWidth {
		return invalid("stroke width %v", w)
	}
	return c.apply("strokeWidth", func(o *scene.Object) { o.StrokeWidth = w }, func(p *selection.Properties) { p.StrokeWidth = w })
}

// SetOpacity accepts a percentage in 0..100.
func (c *Controller) SetOpacity(percent int) error {
	if percent < 0 || percent > 100 {
		return invalid("opacity %d", percent)
	}
	return c.apply("opacity", func(o *scene.Object) { o.Opacity = float64(percent) / 100 }, func(p *selection.Properties) { p.Opacity = percent })
}

// ToggleLock flips all five lock flags together.
func (c *Controller) ToggleLock() error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	return c.SetLocked(!o.Locked())
}

// SetLocked sets all five lock flags to v.
func (c *Controller) SetLocked(v bool) error {
	return c.apply("lock", func(o *scene.Object) { o.SetLocked(v) }, func(p *selection.Properties) { p.Locked = v })
}

// SetFontFamily sets the font family of a text object.
func (c *Controller) SetFontFamily(family string) error {
	family = strings.TrimSpace(family)
	if family == "" {
		return invalid("empty font family")
	}
	return c.applyText("fontFamily", func(o *scene.Object) { o.FontFamily = family }, func(t *selection.TextProperties) { t.FontFamily = family })
}

// SetFontSize sets the font size of a text object.
func (c *Controller) SetFontSize(size float64) error {
	if size <= 0 || size > MaxFontSize {
		return invalid("font size %v", size)
	}
	return c.applyText("fontSize", func(o *scene.Object) { o.FontSize = size }, func(t *selection.TextProperties) { t.FontSize = size })
}

// SetFontWeight accepts "bold" or "normal".
func (c *Controller) SetFontWeight(weight string) error {
	if weight != "bold" && weight != "normal" {
		return invalid("font weight %q", weight)
	}
	return c.applyText("fontWeight", func(o *scene.Object) { o.FontWeight = weight }, func(t *selection.TextProperties) { t.FontWeight = weight })
}

// ToggleBold switches between bold and normal weight.
func (c *Controller) ToggleBold() error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	if o.FontWeight == "bold" {
		return c.SetFontWeight("normal")
	}
	return c.SetFontWeight("bold")
}

// SetFontStyle accepts "italic" or "normal".
func (c *Controller) SetFontStyle(style string) error {
	if style != "italic" && style != "normal" {
		return invalid("font style %q", style)
	}
	return c.applyText("fontStyle", func(o *scene.Object) { o.FontStyle = style }, func(t *selection.TextProperties) { t.FontStyle = style })
}

// ToggleItalic switches between italic and normal style.
func (c *Controller) ToggleItalic() error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	if o.FontStyle == "italic" {
		return c.SetFontStyle("normal")
	}
	return c.SetFontStyle("italic")
}

// SetUnderline sets the underline flag of a text object.
func (c *Controller) SetUnderline(v bool) error {
	return c.applyText("underline", func(o *scene.Object) { o.Underline = v }, func(t *selection.TextProperties) { t.Underline = v })
}

// ToggleUnderline flips the underline flag.
func (c *Controller) ToggleUnderline() error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	return c.SetUnderline(!o.Underline)
}

// SetTextAlign accepts left, center, right or justify.
func (c *Controller) SetTextAlign(align string) error {
	valid := false
	for _, a := range TextAligns {
		if a == align {
			valid = true
			break
		}
	}
	if !valid {
		return invalid("text align %q", align)
	}
	return c.applyText("textAlign", func(o *scene.Object) { o.TextAlign = align }, func(t *selection.TextProperties) { t.TextAlign = align })
}

// BringToFront raises the selected object to the top.
func (c *Controller) BringToFront() error {
	return c.reorder("bringToFront", c.canvas.BringToFront)
}

// SendToBack lowers the selected object to the bottom.
func (c *Controller) SendToBack() error {
	return c.reorder("sendToBack", c.canvas.SendToBack)
}

func (c *Controller) reorder(op string, fn func(string) error) error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	if err := fn(o.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.canvas.Commit()
	c.canvas.Render()
	return nil
}

// Delete removes the selected object. The scene releases the selection.
func (c *Controller) Delete() error {
	o, ok := c.target()
	if !ok {
		return nil
	}
	if err := c.canvas.Remove(o.ID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	c.canvas.Commit()
	c.canvas.Render()
	c.log.Debug("object deleted", slog.String("id", o.ID))
	return nil
}

// Duplicate clones the selected object at an offset of DuplicateOffset on
// both axes and selects the copy. The add records history once.
func (c *Controller) Duplicate() (scene.Object, bool, error) {
	o, ok := c.target()
	if !ok {
		return scene.Object{}, false, nil
	}
	cp, err := c.canvas.Clone(o.ID, DuplicateOffset, DuplicateOffset)
	if err != nil {
		return scene.Object{}, false, fmt.Errorf("duplicate: %w", err)
	}
	added, err := c.canvas.Add(cp)
	if err != nil {
		return scene.Object{}, false, fmt.Errorf("duplicate: %w", err)
	}
	if err := c.canvas.SetActive(added.ID); err != nil {
		return scene.Object{}, false, fmt.Errorf("duplicate: %w", err)
	}
	c.canvas.Render()
	return added, true, nil
}
