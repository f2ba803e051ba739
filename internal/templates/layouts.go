/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templates

import "positron/internal/scene"

func centered(o scene.Object) scene.Object {
	o.OriginX, o.OriginY = "center", "center"
	return o
}

func label(s string, left, top, size float64, bold bool, fill string) scene.Object {
	o := scene.Object{
		Type: scene.KindIText, Left: left, Top: top, Text: s,
		FontFamily: "Arial", FontSize: size, Fill: fill, TextAlign: "center",
		StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
	}
	if bold {
		o.FontWeight = "bold"
	}
	return o
}

func box(left, top, w, h float64, fill string) scene.Object {
	return scene.Object{
		Type: scene.KindRect, Left: left, Top: top, Width: w, Height: h,
		Fill: fill, StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
	}
}

func social() scene.Document {
	d := scene.NewDocument(800, 800)
	d.Background.Color = slate
	button := centered(box(400, 450, 200, 60, yellow))
	button.RX, button.RY = 10, 10
	d.Objects = []scene.Object{
		centered(label("YOUR HEADLINE HERE", 400, 300, 40, true, white)),
		centered(label("Subtitle text goes here", 400, 360, 24, false, white)),
		button,
		centered(label("LEARN MORE", 400, 450, 20, true, dark)),
	}
	return d
}

func presentation() scene.Document {
	d := scene.NewDocument(800, 450)
	d.Background.Color = dark
	title := label("PRESENTATION TITLE", 400, 80, 36, true, white)
	title.OriginX = "center"
	divider := box(400, 130, 100, 4, yellow)
	divider.OriginX = "center"
	bullet := func(s string, top float64) scene.Object {
		o := label(s, 100, top, 24, false, white)
		o.TextAlign = ""
		return o
	}
	d.Objects = []scene.Object{
		title,
		divider,
		bullet("• First point goes here", 180),
		bullet("• Second point goes here", 230),
		bullet("• Third point goes here", 280),
	}
	return d
}

func flyer() scene.Document {
	d := scene.NewDocument(595, 842)
	d.Background.Color = slate
	when := label("Date • Time • Location", 297.5, 200, 24, false, yellow)
	when.OriginX = "center"
	desc := label("Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.", 100, 300, 18, false, white)
	desc.Type = scene.KindTextbox
	desc.Width = 400
	d.Objects = []scene.Object{
		box(0, 0, 595, 150, blue),
		centered(label("EVENT TITLE", 297.5, 75, 48, true, white)),
		when,
		desc,
		box(0, 742, 595, 100, blue),
		centered(label("Contact: info@example.com | www.example.com", 297.5, 792, 18, false, white)),
	}
	return d
}

var layouts = map[string]func() scene.Document{
	"social":       social,
	"presentation": presentation,
	"flyer":        flyer,
}

// Layout returns a fresh copy of a built-in page layout.
func Layout(name string) (scene.Document, bool) {
	fn, ok := layouts[name]
	if !ok {
		return scene.Document{}, false
	}
	return fn(), true
}

// LayoutNames lists the built-in layouts in alphabetical order.
func LayoutNames() []string { return keys(layouts) }
