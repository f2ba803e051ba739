/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestOTProvider_ScalesWithSize(t *testing.T) {
	p := NewOTProvider(nil)
	small := Measure(p, FontSpec{Family: "Arial", Size: 12}, "Hello")
	large := Measure(p, FontSpec{Family: "Arial", Size: 48}, "Hello")
	if !(large.Width > 3*small.Width) {
		t.Fatalf("expected width to scale with size: small=%v large=%v", small.Width, large.Width)
	}
	if !(large.Height > small.Height) {
		t.Fatalf("expected height to scale with size: small=%v large=%v", small.Height, large.Height)
	}
}

func TestOTProvider_MonoFamily(t *testing.T) {
	p := NewOTProvider(nil)
	a := Measure(p, FontSpec{Family: "Courier New", Size: 20}, "iiii")
	b := Measure(p, FontSpec{Family: "Courier New", Size: 20}, "WWWW")
	if a.Width != b.Width {
		t.Fatalf("monospace widths differ: %v vs %v", a.Width, b.Width)
	}
}

func TestOTProvider_CachesFaces(t *testing.T) {
	p := NewOTProvider(nil)
	spec := FontSpec{Family: "Georgia", Size: 18, Bold: true}
	f1, _ := p.Resolve(spec)
	f2, _ := p.Resolve(spec)
	if f1 != f2 {
		t.Fatalf("expected cached face to be reused")
	}
}

func TestFontLibrary_LoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Brand-Bold.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.ttf"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := NewFontLibrary()
	n, err := lib.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 font loaded, got %d", n)
	}
	if lib.find(FontSpec{Family: "brand", Bold: true}) == nil {
		t.Fatalf("expected Brand bold to resolve")
	}
	// non-bold request falls back to nothing because only the bold face exists
	if lib.find(FontSpec{Family: "Brand"}) != nil {
		t.Fatalf("expected no regular face")
	}
}

func TestParseFontFileName(t *testing.T) {
	cases := []struct {
		in           string
		fam          string
		bold, italic bool
	}{
		{"Inter-Regular", "Inter", false, false},
		{"Inter-BoldItalic", "Inter", true, true},
		{"Inter-Italic", "Inter", false, true},
		{"Open-Sans", "Open-Sans", false, false},
	}
	for _, c := range cases {
		fam, b, i := parseFontFileName(c.in)
		if fam != c.fam || b != c.bold || i != c.italic {
			t.Fatalf("parseFontFileName(%q)=%q,%v,%v", c.in, fam, b, i)
		}
	}
}
