/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores loaded OpenType fonts mapped by family/bold/italic.
// Family names are matched case-insensitively.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// LoadTTF loads a font file into the library under the given family/style.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, italic, data)
}

// Add parses raw TTF/OTF bytes and registers them.
func (fl *FontLibrary) Add(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: strings.ToLower(family), bold: bold, italic: italic}] = f
	return nil
}

// LoadDir registers every .ttf/.otf file in dir. The family is the file name
// without extension; a "-Bold", "-Italic" or "-BoldItalic" suffix selects the style.
// Files that fail to parse are skipped; the count of loaded files is returned.
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		family, bold, italic := parseFontFileName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if err := fl.LoadTTF(family, bold, italic, filepath.Join(dir, e.Name())); err != nil {
			continue
		}
		n++
	}
	return n, nil
}

func parseFontFileName(base string) (family string, bold, italic bool) {
	family = base
	if i := strings.LastIndex(base, "-"); i > 0 {
		switch strings.ToLower(base[i+1:]) {
		case "bold":
			return base[:i], true, false
		case "italic":
			return base[:i], false, true
		case "bolditalic":
			return base[:i], true, true
		case "regular":
			return base[:i], false, false
		}
	}
	return family, false, false
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	fam := strings.ToLower(spec.Family)
	if f, ok := fl.fonts[fontKey{family: fam, bold: spec.Bold, italic: spec.Italic}]; ok {
		return f
	}
	if f, ok := fl.fonts[fontKey{family: fam}]; ok {
		return f
	}
	return nil
}

// monoFamilies resolve to Go Mono; everything else falls back to Go sans.
var monoFamilies = map[string]bool{"courier new": true, "courier": true, "monospace": true}

var (
	goOnce  sync.Once
	goFonts map[fontKey]*opentype.Font
)

func builtinFonts() map[fontKey]*opentype.Font {
	goOnce.Do(func() {
		src := map[fontKey][]byte{
			{family: "sans"}:                           goregular.TTF,
			{family: "sans", bold: true}:               gobold.TTF,
			{family: "sans", italic: true}:             goitalic.TTF,
			{family: "sans", bold: true, italic: true}: gobolditalic.TTF,
			{family: "mono"}:                           gomono.TTF,
			{family: "mono", bold: true}:               gomonobold.TTF,
			{family: "mono", italic: true}:             gomonoitalic.TTF,
			{family: "mono", bold: true, italic: true}: gomonobolditalic.TTF,
		}
		goFonts = make(map[fontKey]*opentype.Font, len(src))
		for k, b := range src {
			// The Go fonts ship with x/image and always parse.
			if f, err := opentype.Parse(b); err == nil {
				goFonts[k] = f
			}
		}
	})
	return goFonts
}

// OTProvider resolves FontSpec using a FontLibrary first and the bundled Go
// fonts second. Faces are cached per spec.
type OTProvider struct {
	Lib *FontLibrary
	DPI float64 // default 72 if zero

	mu    sync.Mutex
	faces map[FontSpec]font.Face
}

// NewOTProvider returns a provider backed by lib (which may be nil).
func NewOTProvider(lib *FontLibrary) *OTProvider { return &OTProvider{Lib: lib} }

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 12
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if face, ok := p.faces[spec]; ok {
		return face, metricsOf(face)
	}
	f := p.Lib.find(spec)
	if f == nil {
		fam := "sans"
		if monoFamilies[strings.ToLower(spec.Family)] {
			fam = "mono"
		}
		f = builtinFonts()[fontKey{family: fam, bold: spec.Bold, italic: spec.Italic}]
	}
	if f == nil {
		return BasicProvider{}.Resolve(spec)
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.Size, DPI: dpi, Hinting: font.HintingFull})
	if err != nil {
		return BasicProvider{}.Resolve(spec)
	}
	if p.faces == nil {
		p.faces = make(map[FontSpec]font.Face)
	}
	p.faces[spec] = face
	return face, metricsOf(face)
}

var defaultProvider = NewOTProvider(nil)

// Default returns the process-wide provider backed by the bundled Go fonts.
func Default() Provider { return defaultProvider }
