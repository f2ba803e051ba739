/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package selection tracks which scene object is selected and derives the
// attribute values the property panel displays for it.
package selection

import (
	"math"

	"positron/internal/scene"
)

// Source is the part of the scene the bridge reads from.
type Source interface {
	Object(id string) (scene.Object, bool)
	Subscribe(scene.Listener) (unsubscribe func())
}

// TextProperties are only present for text objects.
type TextProperties struct {
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight string  `json:"fontWeight"`
	FontStyle  string  `json:"fontStyle"`
	Underline  bool    `json:"underline"`
	TextAlign  string  `json:"textAlign"`
}

// Properties is the panel's view of the selected object.
type Properties struct {
	Kind        scene.Kind      `json:"kind"`
	Fill        string          `json:"fill"`
	Stroke      string          `json:"stroke"`
	StrokeWidth float64         `json:"strokeWidth"`
	Opacity     int             `json:"opacity"` // percent
	Locked      bool            `json:"locked"`
	Text        *TextProperties `json:"text,omitempty"`
}

// PropertiesOf computes the full snapshot for o, substituting defaults for
// empty attributes.
func PropertiesOf(o scene.Object) Properties {
	p := Properties{
		Kind:        o.Type,
		Fill:        orDefault(o.Fill, scene.DefaultColor),
		Stroke:      orDefault(o.Stroke, scene.DefaultColor),
		StrokeWidth: o.StrokeWidth,
		Opacity:     int(math.Round(o.Opacity * 100)),
		Locked:      o.Locked(),
	}
	if o.Type.IsText() {
		size := o.FontSize
		if size <= 0 {
			size = scene.DefaultFontSize
		}
		p.Text = &TextProperties{
			FontFamily: orDefault(o.FontFamily, scene.DefaultFontFamily),
			FontSize:   size,
			FontWeight: orDefault(o.FontWeight, scene.DefaultFontWeight),
			FontStyle:  orDefault(o.FontStyle, scene.DefaultFontStyle),
			Underline:  o.Underline,
			TextAlign:  orDefault(o.TextAlign, scene.DefaultTextAlign),
		}
	}
	return p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Observer is told about every selection or snapshot change. ok is false when
// nothing is selected.
type Observer func(p Properties, ok bool)

// Bridge holds a weak reference (the id) to the selected object.
type Bridge struct {
	src   Source
	unsub func()

	id    string
	props Properties

	observers map[int]Observer
	nextObs   int
}

// New starts tracking selection events of src.
func New(src Source) *Bridge {
	b := &Bridge{src: src, observers: map[int]Observer{}}
	b.unsub = src.Subscribe(b.handle)
	return b
}

func (b *Bridge) handle(ev scene.Event) {
	switch ev.Kind {
	case scene.SelectionAcquired, scene.SelectionChanged:
		if ev.Object != nil {
			b.set(ev.Object.ID, *ev.Object)
		}
	case scene.SelectionReleased:
		b.clear()
	case scene.ObjectRemoved:
		if ev.Object != nil && ev.Object.ID == b.id {
			b.clear()
		}
	case scene.ObjectModified:
		if ev.Object != nil && ev.Object.ID == b.id {
			b.set(b.id, *ev.Object)
		}
	case scene.Loaded:
		// a restored scene may no longer contain the object
		if _, ok := b.src.Object(b.id); !ok && b.id != "" {
			b.clear()
		}
	}
}

func (b *Bridge) set(id string, o scene.Object) {
	b.id = id
	b.props = PropertiesOf(o)
	b.notify()
}

func (b *Bridge) clear() {
	if b.id == "" {
		return
	}
	b.id = ""
	b.props = Properties{}
	b.notify()
}

func (b *Bridge) notify() {
	p, ok := b.Properties()
	for _, fn := range b.observers {
		fn(p, ok)
	}
}

// ID returns the selected id, or "" when nothing is selected.
func (b *Bridge) ID() string { return b.id }

// Current resolves the reference through the scene. It yields nothing once
// the object is gone.
func (b *Bridge) Current() (scene.Object, bool) {
	if b.id == "" {
		return scene.Object{}, false
	}
	return b.src.Object(b.id)
}

// Properties returns the snapshot taken at the last selection event.
func (b *Bridge) Properties() (Properties, bool) {
	if _, ok := b.Current(); !ok {
		return Properties{}, false
	}
	p := b.props
	if p.Text != nil {
		t := *p.Text
		p.Text = &t
	}
	return p, true
}

// Refresh recomputes the snapshot from the live object.
func (b *Bridge) Refresh() {
	if o, ok := b.Current(); ok {
		b.set(o.ID, o)
	}
}

// Observe registers fn and returns a function that removes it.
func (b *Bridge) Observe(fn Observer) (cancel func()) {
	b.nextObs++
	id := b.nextObs
	b.observers[id] = fn
	return func() { delete(b.observers, id) }
}

// Close stops tracking the scene.
func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}
