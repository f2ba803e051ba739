/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package selection

import (
	"testing"

	"positron/internal/scene"
)

func setup(t *testing.T) (*scene.Scene, *Bridge) {
	t.Helper()
	s := scene.New(scene.DefaultWidth, scene.DefaultHeight)
	b := New(s)
	t.Cleanup(b.Close)
	return s, b
}

func TestNothingSelectedInitially(t *testing.T) {
	_, b := setup(t)
	if _, ok := b.Current(); ok {
		t.Fatalf("expected no selection")
	}
	if _, ok := b.Properties(); ok {
		t.Fatalf("expected no properties")
	}
}

func TestAcquireChangeRelease(t *testing.T) {
	s, b := setup(t)
	r, _ := s.Add(scene.Object{Type: scene.KindRect, Width: 10, Height: 10, Fill: "#4CC9F0", Stroke: "#3A86FF", StrokeWidth: 1, Opacity: 0.5})
	txt, _ := s.Add(scene.Object{Type: scene.KindIText, Text: "hi", FontWeight: "bold", Opacity: 1})

	_ = s.SetActive(r.ID)
	p, ok := b.Properties()
	if !ok || p.Fill != "#4CC9F0" || p.Stroke != "#3A86FF" || p.Opacity != 50 || p.Text != nil {
		t.Fatalf("rect properties wrong: %+v ok=%v", p, ok)
	}

	_ = s.SetActive(txt.ID)
	p, _ = b.Properties()
	if p.Text == nil {
		t.Fatalf("text properties missing")
	}
	want := TextProperties{FontFamily: "Arial", FontSize: 30, FontWeight: "bold", FontStyle: "normal", TextAlign: "left"}
	if *p.Text != want {
		t.Fatalf("text properties = %+v, want %+v", *p.Text, want)
	}
	if p.Fill != "#000000" || p.Stroke != "#000000" {
		t.Fatalf("color defaults not applied: %+v", p)
	}

	s.ClearActive()
	if _, ok := b.Current(); ok {
		t.Fatalf("selection should be released")
	}
}

func TestRemovedObjectClearsSelection(t *testing.T) {
	s, b := setup(t)
	r, _ := s.Add(scene.Object{Type: scene.KindRect, Opacity: 1})
	_ = s.SetActive(r.ID)
	_ = s.Remove(r.ID)
	if b.ID() != "" {
		t.Fatalf("selection should be cleared when its object is removed")
	}
}

func TestWeakReferenceYieldsNothingAfterRestore(t *testing.T) {
	s, b := setup(t)
	before, _ := s.Serialize()
	r, _ := s.Add(scene.Object{Type: scene.KindRect, Opacity: 1})
	_ = s.SetActive(r.ID)
	if err := s.Deserialize(before); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Current(); ok {
		t.Fatalf("selection must not survive a restore without the object")
	}
}

func TestLockedAndModifiedRefresh(t *testing.T) {
	s, b := setup(t)
	r, _ := s.Add(scene.Object{Type: scene.KindRect, Opacity: 1})
	_ = s.SetActive(r.ID)

	var seen []bool
	cancel := b.Observe(func(p Properties, ok bool) { seen = append(seen, p.Locked) })
	_ = s.Modify(r.ID, func(o *scene.Object) { o.SetLocked(true) })
	p, _ := b.Properties()
	if !p.Locked {
		t.Fatalf("modified lock state not reflected")
	}
	cancel()
	_ = s.Modify(r.ID, func(o *scene.Object) { o.SetLocked(false) })
	if len(seen) != 1 || !seen[0] {
		t.Fatalf("observer calls = %v", seen)
	}
	if p, _ := b.Properties(); p.Locked {
		t.Fatalf("unlock not reflected")
	}
}

func TestPropertiesReturnsCopy(t *testing.T) {
	s, b := setup(t)
	o, _ := s.Add(scene.Object{Type: scene.KindTextbox, Text: "x", Width: 50, Opacity: 1})
	_ = s.SetActive(o.ID)
	p, _ := b.Properties()
	p.Text.FontSize = 99
	q, _ := b.Properties()
	if q.Text.FontSize == 99 {
		t.Fatalf("Properties must not expose internal state")
	}
}
