/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package templates provides the canned content of the editor: shape and text
// presets, full-page layouts, background presets, and user template packs.
package templates

import (
	"sort"

	"positron/internal/scene"
)

const (
	white     = "#FFFFFF"
	blue      = "#3A86FF"
	blueLight = "#4CC9F0"
	navy      = "#0A2472"
	yellow    = "#FFBE0B"
	orange    = "#FB5607"
	slate     = "#1E293B"
	dark      = "#0F172A"
)

// insert position shared by all presets
const presetLeft, presetTop = 100, 100

var shapes = map[string]func() scene.Object{
	"rectangle": func() scene.Object {
		return scene.Object{
			Type: scene.KindRect, Left: presetLeft, Top: presetTop, Width: 100, Height: 100,
			Fill: blueLight, Stroke: blue, StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
		}
	},
	"circle": func() scene.Object {
		return scene.Object{
			Type: scene.KindCircle, Left: presetLeft, Top: presetTop, Radius: 50,
			Fill: yellow, Stroke: orange, StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
		}
	},
	"triangle": func() scene.Object {
		return scene.Object{
			Type: scene.KindTriangle, Left: presetLeft, Top: presetTop, Width: 100, Height: 100,
			Fill: orange, Stroke: yellow, StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
		}
	},
	"line": func() scene.Object {
		return scene.Object{
			Type: scene.KindLine, Left: 50, Top: 50, X1: 50, Y1: 50, X2: 200, Y2: 50,
			Stroke: blueLight, StrokeWidth: 5, ScaleX: 1, ScaleY: 1, Opacity: 1,
		}
	},
}

var shapeAliases = map[string]string{"rect": "rectangle"}

// Shape returns a fresh copy of a shape preset.
func Shape(name string) (scene.Object, bool) {
	if alias, ok := shapeAliases[name]; ok {
		name = alias
	}
	fn, ok := shapes[name]
	if !ok {
		return scene.Object{}, false
	}
	return fn(), true
}

func text(s string, size float64, weight string) scene.Object {
	return scene.Object{
		Type: scene.KindIText, Left: presetLeft, Top: presetTop, Text: s,
		FontFamily: "Arial", FontSize: size, FontWeight: weight, Fill: white,
		StrokeWidth: 1, ScaleX: 1, ScaleY: 1, Opacity: 1,
	}
}

var texts = map[string]func() scene.Object{
	"text":       func() scene.Object { return text("Edit this text", 30, "") },
	"heading":    func() scene.Object { return text("Heading", 36, "bold") },
	"subheading": func() scene.Object { return text("Subheading", 24, "600") },
	"body":       func() scene.Object { return text("Body text goes here", 16, "") },
}

// Text returns a fresh copy of a text preset.
func Text(name string) (scene.Object, bool) {
	fn, ok := texts[name]
	if !ok {
		return scene.Object{}, false
	}
	return fn(), true
}

// ShapeNames lists the shape presets in alphabetical order.
func ShapeNames() []string { return keys(shapes) }

// TextNames lists the text presets in alphabetical order.
func TextNames() []string { return keys(texts) }

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
