/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"
	"testing"
)

func TestWrap_BreaksOnSpaces(t *testing.T) {
	box := Wrap(BasicProvider{}, FontSpec{}, "Hello world from Go", 50)
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(box.Lines))
	}
	for _, l := range box.Lines {
		if strings.HasPrefix(l.Text, " ") || strings.HasSuffix(l.Text, " ") {
			t.Fatalf("line has dangling space: %q", l.Text)
		}
	}
	if box.Width <= 0 || box.Height <= 0 {
		t.Fatalf("expected positive box size: %+v", box)
	}
}

func TestWrap_LongWordStaysOnItsOwnLine(t *testing.T) {
	box := Wrap(BasicProvider{}, FontSpec{}, "a supercalifragilistic b", 30)
	if len(box.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(box.Lines), box.Lines)
	}
	if box.Lines[1].Text != "supercalifragilistic" {
		t.Fatalf("unexpected middle line %q", box.Lines[1].Text)
	}
}

func TestMeasure_Deterministic(t *testing.T) {
	a := Measure(BasicProvider{}, FontSpec{}, "ABC")
	if a.Width != 21 { // 7px per glyph
		t.Fatalf("expected width 21, got %v", a.Width)
	}
	b := Measure(nil, FontSpec{}, "ABC\nDE")
	if len(b.Lines) != 2 || b.Width != 21 || b.Height != 2*a.Height {
		t.Fatalf("multi-line measure mismatch: %+v", b)
	}
}

func TestWrap_NonPositiveWidthMeasures(t *testing.T) {
	a := Wrap(BasicProvider{}, FontSpec{}, "one two three", 0)
	if len(a.Lines) != 1 {
		t.Fatalf("expected a single line, got %d", len(a.Lines))
	}
}
