/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"positron/internal/textlayout"
)

// Scene is the in-memory canvas.
type Scene struct {
	width, height float64
	background    Background
	objects       []*Object
	active        string

	subs    []subscription
	nextSub int

	text    textlayout.Provider
	renders uint64
}

// New returns an empty scene with a white background.
func New(width, height float64) *Scene {
	return &Scene{
		width:      width,
		height:     height,
		background: Background{Color: DefaultBackground},
		text:       textlayout.Default(),
	}
}

// SetTextProvider changes the provider used to size text objects.
func (s *Scene) SetTextProvider(p textlayout.Provider) {
	if p != nil {
		s.text = p
	}
}

// Dimensions returns the canvas size.
func (s *Scene) Dimensions() (width, height float64) { return s.width, s.height }

// SetDimensions resizes the canvas. Objects are not moved.
func (s *Scene) SetDimensions(width, height float64) {
	s.width, s.height = width, height
}

// Background returns a copy of the current background.
func (s *Scene) Background() Background { return s.background.Clone() }

// SetBackground replaces the background.
func (s *Scene) SetBackground(bg Background) { s.background = bg.Clone() }

// Len returns the number of objects.
func (s *Scene) Len() int { return len(s.objects) }

// Objects returns copies of all objects, bottom first.
func (s *Scene) Objects() []Object {
	out := make([]Object, len(s.objects))
	for i, o := range s.objects {
		out[i] = *o
	}
	return out
}

// Object looks up an object by id.
func (s *Scene) Object(id string) (Object, bool) {
	if o := s.find(id); o != nil {
		return *o, true
	}
	return Object{}, false
}

func (s *Scene) find(id string) *Object {
	if id == "" {
		return nil
	}
	for _, o := range s.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *Scene) indexOf(id string) int {
	for i, o := range s.objects {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Add appends o on top of the stack and emits ObjectAdded. A missing or
// colliding id is replaced with a fresh one. The stored copy is returned.
func (s *Scene) Add(o Object) (Object, error) {
	if !o.Type.Valid() {
		return Object{}, fmt.Errorf("%w: %q", ErrUnknownKind, o.Type)
	}
	if o.ID == "" || s.find(o.ID) != nil {
		o.ID = uuid.New().String()
	}
	if o.ScaleX == 0 {
		o.ScaleX = 1
	}
	if o.ScaleY == 0 {
		o.ScaleY = 1
	}
	s.measure(&o)
	p := &o
	s.objects = append(s.objects, p)
	s.emit(ObjectAdded, p)
	return *p, nil
}

// Remove deletes an object. If it was active the selection is released
// after ObjectRemoved is emitted.
func (s *Scene) Remove(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o := s.objects[i]
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	s.emit(ObjectRemoved, o)
	if s.active == id {
		s.active = ""
		s.emit(SelectionReleased, nil)
	}
	return nil
}

// Active returns the active object, if any.
func (s *Scene) Active() (Object, bool) { return s.Object(s.active) }

// SetActive makes id the active object. Selecting the already active object
// emits nothing.
func (s *Scene) SetActive(id string) error {
	o := s.find(id)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	switch s.active {
	case id:
		return nil
	case "":
		s.active = id
		s.emit(SelectionAcquired, o)
	default:
		s.active = id
		s.emit(SelectionChanged, o)
	}
	return nil
}

// ClearActive drops the selection.
func (s *Scene) ClearActive() {
	if s.active == "" {
		return
	}
	s.active = ""
	s.emit(SelectionReleased, nil)
}

// Update applies fn to the stored object without emitting an event. The id
// and type cannot be changed through fn.
func (s *Scene) Update(id string, fn func(*Object)) error {
	o := s.find(id)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	keepID, keepType := o.ID, o.Type
	fn(o)
	o.ID, o.Type = keepID, keepType
	s.measure(o)
	return nil
}

// Modify is Update followed by ObjectModified.
func (s *Scene) Modify(id string, fn func(*Object)) error {
	if err := s.Update(id, fn); err != nil {
		return err
	}
	s.emit(ObjectModified, s.find(id))
	return nil
}

// Move translates an object the way a drag does. Locked axes are skipped;
// ErrLocked is returned when the locks swallow the whole move.
func (s *Scene) Move(id string, dx, dy float64) error {
	o := s.find(id)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.LockMovementX {
		dx = 0
	}
	if o.LockMovementY {
		dy = 0
	}
	if dx == 0 && dy == 0 {
		if o.LockMovementX || o.LockMovementY {
			return ErrLocked
		}
		return nil
	}
	return s.Modify(id, func(o *Object) {
		o.Left += dx
		o.Top += dy
	})
}

// ScaleBy multiplies the scale factors the way a corner handle does.
func (s *Scene) ScaleBy(id string, fx, fy float64) error {
	o := s.find(id)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.LockScalingX {
		fx = 1
	}
	if o.LockScalingY {
		fy = 1
	}
	if fx == 1 && fy == 1 {
		if o.LockScalingX || o.LockScalingY {
			return ErrLocked
		}
		return nil
	}
	if fx <= 0 || fy <= 0 {
		return fmt.Errorf("scale factors must be positive, got %v,%v", fx, fy)
	}
	return s.Modify(id, func(o *Object) {
		o.ScaleX *= fx
		o.ScaleY *= fy
	})
}

// RotateBy adds deg to the angle, normalized to [0,360).
func (s *Scene) RotateBy(id string, deg float64) error {
	o := s.find(id)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.LockRotation {
		return ErrLocked
	}
	if deg == 0 {
		return nil
	}
	return s.Modify(id, func(o *Object) {
		a := o.Angle + deg
		for a < 0 {
			a += 360
		}
		for a >= 360 {
			a -= 360
		}
		o.Angle = a
	})
}

// BringToFront moves an object to the top of the stack.
func (s *Scene) BringToFront(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o := s.objects[i]
	s.objects = append(append(s.objects[:i:i], s.objects[i+1:]...), o)
	return nil
}

// SendToBack moves an object to the bottom of the stack.
func (s *Scene) SendToBack(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	o := s.objects[i]
	rest := append(s.objects[:i:i], s.objects[i+1:]...)
	s.objects = append([]*Object{o}, rest...)
	return nil
}

// Clone returns a copy of an object with a new id, offset by dx,dy. The copy
// is not added to the scene.
func (s *Scene) Clone(id string, dx, dy float64) (Object, error) {
	o := s.find(id)
	if o == nil {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *o
	cp.ID = uuid.New().String()
	cp.Left += dx
	cp.Top += dy
	return cp, nil
}

// ObjectAt returns the topmost object under the canvas point x,y.
func (s *Scene) ObjectAt(x, y float64) (Object, bool) {
	p := Pt{X: x, Y: y}
	for i := len(s.objects) - 1; i >= 0; i-- {
		if s.objects[i].Hit(p) {
			return *s.objects[i], true
		}
	}
	return Object{}, false
}

// Commit announces that a batch of attribute changes is complete.
func (s *Scene) Commit() { s.emit(Committed, nil) }

// Render requests a repaint. It never records history.
func (s *Scene) Render() {
	s.renders++
	s.emit(Rendered, nil)
}

// Renders returns how many times Render has been called.
func (s *Scene) Renders() uint64 { return s.renders }

// Document returns a deep copy of the scene state.
func (s *Scene) Document() Document {
	d := NewDocument(s.width, s.height)
	d.Background = s.background.Clone()
	d.Objects = s.Objects()
	return d
}

// Serialize encodes the scene as a Document.
func (s *Scene) Serialize() ([]byte, error) { return s.Document().Marshal() }

// Deserialize replaces the whole scene with the encoded Document. The bytes
// are fully decoded and validated before anything changes. The selection is
// cleared, Loaded is emitted and the scene re-renders.
func (s *Scene) Deserialize(b []byte) error {
	d, err := ParseDocument(b)
	if err != nil {
		return err
	}
	s.load(d)
	return nil
}

// Replace swaps in d the same way Deserialize does, without a round trip
// through JSON.
func (s *Scene) Replace(d Document) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: dimensions %vx%v", ErrInvalidDocument, d.Width, d.Height)
	}
	s.load(d.Clone())
	return nil
}

func (s *Scene) load(d Document) {
	objs := make([]*Object, len(d.Objects))
	for i := range d.Objects {
		o := d.Objects[i]
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		if o.Type.IsText() && (o.Width == 0 || o.Height == 0) {
			s.measure(&o)
		}
		objs[i] = &o
	}
	s.width, s.height = d.Width, d.Height
	s.background = d.Background
	s.objects = objs
	if s.active != "" {
		s.active = ""
		s.emit(SelectionReleased, nil)
	}
	s.emit(Loaded, nil)
	s.Render()
}

// FontSpec describes the face a text object is drawn with.
func (o Object) FontSpec() textlayout.FontSpec {
	spec := textlayout.FontSpec{
		Family: o.FontFamily,
		Size:   o.FontSize,
		Bold:   IsBold(o.FontWeight),
		Italic: o.FontStyle == "italic",
	}
	if spec.Family == "" {
		spec.Family = DefaultFontFamily
	}
	if spec.Size <= 0 {
		spec.Size = DefaultFontSize
	}
	return spec
}

// IsBold reports whether a CSS-style weight renders bold.
func IsBold(weight string) bool {
	if weight == "bold" || weight == "bolder" {
		return true
	}
	n, err := strconv.Atoi(weight)
	return err == nil && n >= 600
}

// measure sizes text objects from their content. Single-line text grows with
// its content; a textbox keeps its width and wraps.
func (s *Scene) measure(o *Object) {
	if !o.Type.IsText() || s.text == nil {
		return
	}
	spec := o.FontSpec()
	switch o.Type {
	case KindIText:
		box := textlayout.Measure(s.text, spec, o.Text)
		o.Width, o.Height = box.Width, box.Height
	case KindTextbox:
		if o.Width <= 0 {
			o.Width = textlayout.Measure(s.text, spec, o.Text).Width
		}
		o.Height = textlayout.Wrap(s.text, spec, o.Text, o.Width).Height
	}
}
