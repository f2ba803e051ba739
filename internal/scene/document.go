/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"fmt"
)

// DocumentVersion is written into every serialized Document.
const DocumentVersion = "1"

// Default canvas.
const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultBackground = "#ffffff"
)

// Attribute defaults applied wherever an object leaves them empty.
const (
	DefaultColor      = "#000000"
	DefaultFontFamily = "Arial"
	DefaultFontSize   = 30
	DefaultFontWeight = "normal"
	DefaultFontStyle  = "normal"
	DefaultTextAlign  = "left"
)

// Kind is the type of a scene object.
type Kind string

const (
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindLine     Kind = "line"
	KindIText    Kind = "i-text"
	KindTextbox  Kind = "textbox"
	KindImage    Kind = "image"
)

// Valid reports whether k is a known object kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRect, KindCircle, KindTriangle, KindLine, KindIText, KindTextbox, KindImage:
		return true
	}
	return false
}

// IsText reports whether objects of kind k carry text attributes.
func (k Kind) IsText() bool { return k == KindIText || k == KindTextbox }

// Document is the serialized form of a Scene.
type Document struct {
	Version    string     `json:"version"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Background Background `json:"background"`
	Objects    []Object   `json:"objects"`
}

// Background is a solid color with an optional gradient and image on top.
type Background struct {
	Color    string           `json:"color"`
	Gradient *Gradient        `json:"gradient,omitempty"`
	Image    *BackgroundImage `json:"image,omitempty"`
}

// Gradient is a linear gradient in canvas coordinates.
type Gradient struct {
	X1    float64        `json:"x1"`
	Y1    float64        `json:"y1"`
	X2    float64        `json:"x2"`
	Y2    float64        `json:"y2"`
	Stops []GradientStop `json:"stops"`
}

type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// BackgroundImage is stretched onto the canvas by its scale factors.
type BackgroundImage struct {
	Src     string  `json:"src"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
	Opacity float64 `json:"opacity"`
}

// Clone returns a deep copy of b.
func (b Background) Clone() Background {
	out := Background{Color: b.Color}
	if b.Gradient != nil {
		g := *b.Gradient
		g.Stops = append([]GradientStop(nil), b.Gradient.Stops...)
		out.Gradient = &g
	}
	if b.Image != nil {
		im := *b.Image
		out.Image = &im
	}
	return out
}

// Object is one item on the canvas. Coordinates follow the usual design-tool
// convention: (Left, Top) is the position of the origin point, Width/Height are
// unscaled, Angle is in degrees around the origin point.
type Object struct {
	ID   string `json:"id"`
	Type Kind   `json:"type"`

	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScaleX  float64 `json:"scaleX"`
	ScaleY  float64 `json:"scaleY"`
	Angle   float64 `json:"angle"`
	OriginX string  `json:"originX,omitempty"` // left|center|right
	OriginY string  `json:"originY,omitempty"` // top|center|bottom

	Radius float64 `json:"radius,omitempty"`
	RX     float64 `json:"rx,omitempty"`
	RY     float64 `json:"ry,omitempty"`
	X1     float64 `json:"x1,omitempty"`
	Y1     float64 `json:"y1,omitempty"`
	X2     float64 `json:"x2,omitempty"`
	Y2     float64 `json:"y2,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`

	LockMovementX bool `json:"lockMovementX,omitempty"`
	LockMovementY bool `json:"lockMovementY,omitempty"`
	LockRotation  bool `json:"lockRotation,omitempty"`
	LockScalingX  bool `json:"lockScalingX,omitempty"`
	LockScalingY  bool `json:"lockScalingY,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`
	FontStyle  string  `json:"fontStyle,omitempty"`
	Underline  bool    `json:"underline,omitempty"`
	TextAlign  string  `json:"textAlign,omitempty"`

	Src string `json:"src,omitempty"`
}

// UnmarshalJSON fills in the defaults that an omitted attribute stands for.
func (o *Object) UnmarshalJSON(b []byte) error {
	type plain Object
	p := plain{ScaleX: 1, ScaleY: 1, Opacity: 1}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = Object(p)
	return nil
}

// Locked reports the lock state shown in the property panel: both movement
// axes locked.
func (o Object) Locked() bool { return o.LockMovementX && o.LockMovementY }

// SetLocked sets all five lock flags together.
func (o *Object) SetLocked(v bool) {
	o.LockMovementX = v
	o.LockMovementY = v
	o.LockRotation = v
	o.LockScalingX = v
	o.LockScalingY = v
}

// NewDocument returns an empty white document of the given size.
func NewDocument(width, height float64) Document {
	return Document{
		Version:    DocumentVersion,
		Width:      width,
		Height:     height,
		Background: Background{Color: DefaultBackground},
		Objects:    []Object{},
	}
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := d
	out.Background = d.Background.Clone()
	out.Objects = append([]Object(nil), d.Objects...)
	if out.Objects == nil {
		out.Objects = []Object{}
	}
	return out
}

// Marshal encodes d. Output is deterministic for equal documents.
func (d Document) Marshal() ([]byte, error) {
	if d.Objects == nil {
		d.Objects = []Object{}
	}
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

// ParseDocument validates b against the document schema and decodes it.
func ParseDocument(b []byte) (Document, error) {
	if err := Validate(b); err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := d.check(); err != nil {
		return Document{}, err
	}
	if d.Objects == nil {
		d.Objects = []Object{}
	}
	return d, nil
}

// check enforces what the schema cannot express.
func (d Document) check() error {
	seen := make(map[string]struct{}, len(d.Objects))
	for i, o := range d.Objects {
		if !o.Type.Valid() {
			return fmt.Errorf("%w: object %d has unknown type %q", ErrInvalidDocument, i, o.Type)
		}
		if o.ID == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("%w: duplicate object id %q", ErrInvalidDocument, o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}
