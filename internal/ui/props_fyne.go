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
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"positron/internal/editor"
	"positron/internal/panel"
	"positron/internal/selection"
)

// propertyPane mirrors the selection's properties. Widget callbacks are
// muted while the pane is being filled so a refresh never writes back.
type propertyPane struct {
	ed       *editor.Editor
	w        fyne.Window
	onChange func()
	filling  bool

	title       *widget.Label
	fill        *widget.Entry
	stroke      *widget.Entry
	strokeWidth *widget.Entry
	opacity     *widget.Slider
	locked      *widget.Check

	family    *widget.Select
	size      *widget.Entry
	bold      *widget.Button
	italic    *widget.Button
	underline *widget.Button
	align     *widget.Select
	textBox   *fyne.Container

	box *fyne.Container
}

func newPropertyPane(ed *editor.Editor, w fyne.Window, onChange func()) *propertyPane {
	p := &propertyPane{ed: ed, w: w, onChange: onChange}
	p.title = widget.NewLabelWithStyle("No selection", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	p.fill = colorEntry(func(s string) { p.set(func(c *panel.Controller) error { return c.SetFill(s) }) })
	p.stroke = colorEntry(func(s string) { p.set(func(c *panel.Controller) error { return c.SetStroke(s) }) })
	p.strokeWidth = widget.NewEntry()
	p.strokeWidth.OnSubmitted = func(s string) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			dialog.ShowError(fmt.Errorf("stroke width must be a number"), w)
			return
		}
		p.set(func(c *panel.Controller) error { return c.SetStrokeWidth(v) })
	}
	p.opacity = widget.NewSlider(0, 100)
	p.opacity.Step = 1
	p.opacity.OnChangeEnded = func(v float64) {
		p.set(func(c *panel.Controller) error { return c.SetOpacity(int(v)) })
	}
	p.locked = widget.NewCheck("Locked", func(v bool) {
		p.set(func(c *panel.Controller) error { return c.SetLocked(v) })
	})

	p.family = widget.NewSelect(panel.FontFamilies, func(s string) {
		p.set(func(c *panel.Controller) error { return c.SetFontFamily(s) })
	})
	p.size = widget.NewEntry()
	p.size.OnSubmitted = func(s string) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			dialog.ShowError(fmt.Errorf("font size must be a number"), w)
			return
		}
		p.set(func(c *panel.Controller) error { return c.SetFontSize(v) })
	}
	p.bold = widget.NewButton("B", func() { p.set((*panel.Controller).ToggleBold) })
	p.italic = widget.NewButton("I", func() { p.set((*panel.Controller).ToggleItalic) })
	p.underline = widget.NewButton("U", func() { p.set((*panel.Controller).ToggleUnderline) })
	p.align = widget.NewSelect(panel.TextAligns, func(s string) {
		p.set(func(c *panel.Controller) error { return c.SetTextAlign(s) })
	})

	p.textBox = container.NewVBox(
		widget.NewSeparator(),
		widget.NewLabel("Text"),
		widget.NewForm(
			widget.NewFormItem("Font", p.family),
			widget.NewFormItem("Size", p.size),
			widget.NewFormItem("Align", p.align),
		),
		container.NewGridWithColumns(3, p.bold, p.italic, p.underline),
	)

	actions := container.NewGridWithColumns(2,
		widget.NewButton("Bring to Front", func() { p.set((*panel.Controller).BringToFront) }),
		widget.NewButton("Send to Back", func() { p.set((*panel.Controller).SendToBack) }),
		widget.NewButton("Duplicate", func() {
			p.set(func(c *panel.Controller) error {
				_, _, err := c.Duplicate()
				return err
			})
		}),
		widget.NewButton("Delete", func() { p.set((*panel.Controller).Delete) }),
	)

	p.box = container.NewVBox(
		p.title,
		widget.NewForm(
			widget.NewFormItem("Fill", p.fill),
			widget.NewFormItem("Stroke", p.stroke),
			widget.NewFormItem("Stroke width", p.strokeWidth),
			widget.NewFormItem("Opacity", p.opacity),
		),
		p.locked,
		p.textBox,
		widget.NewSeparator(),
		actions,
	)
	p.Refresh()
	return p
}

func colorEntry(apply func(string)) *widget.Entry {
	e := widget.NewEntry()
	e.SetPlaceHolder("#rrggbb")
	e.OnSubmitted = func(s string) { apply(strings.TrimSpace(s)) }
	return e
}

func (p *propertyPane) set(fn func(*panel.Controller) error) {
	if p.filling {
		return
	}
	if err := p.ed.Panel(fn); err != nil {
		dialog.ShowError(err, p.w)
	}
	if p.onChange != nil {
		p.onChange()
	}
}

// Refresh fills the widgets from the current selection.
func (p *propertyPane) Refresh() {
	p.filling = true
	defer func() { p.filling = false }()

	_, props, ok := p.ed.Selection()
	if !ok {
		p.title.SetText("No selection")
		p.box.Objects[1].Hide()
		p.locked.Hide()
		p.textBox.Hide()
		return
	}
	p.title.SetText(kindLabel(props))
	p.box.Objects[1].Show()
	p.locked.Show()
	p.fill.SetText(props.Fill)
	p.stroke.SetText(props.Stroke)
	p.strokeWidth.SetText(strconv.FormatFloat(props.StrokeWidth, 'f', -1, 64))
	p.opacity.SetValue(float64(props.Opacity))
	p.locked.SetChecked(props.Locked)
	if props.Text == nil {
		p.textBox.Hide()
		return
	}
	t := props.Text
	p.family.SetSelected(t.FontFamily)
	p.size.SetText(strconv.FormatFloat(t.FontSize, 'f', -1, 64))
	p.align.SetSelected(t.TextAlign)
	p.bold.Importance = importance(t.FontWeight == "bold")
	p.italic.Importance = importance(t.FontStyle == "italic")
	p.underline.Importance = importance(t.Underline)
	p.bold.Refresh()
	p.italic.Refresh()
	p.underline.Refresh()
	p.textBox.Show()
}

func importance(on bool) widget.Importance {
	if on {
		return widget.HighImportance
	}
	return widget.MediumImportance
}

func kindLabel(p selection.Properties) string {
	s := string(p.Kind)
	if p.Locked {
		s += " (locked)"
	}
	return s
}
