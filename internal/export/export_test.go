/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/gg"

	"positron/internal/scene"
)

func rectDoc(fill string) scene.Document {
	d := scene.NewDocument(100, 80)
	d.Objects = append(d.Objects, scene.Object{
		ID: "r1", Type: scene.KindRect,
		Left: 20, Top: 20, Width: 40, Height: 30,
		ScaleX: 1, ScaleY: 1, Opacity: 1, Fill: fill,
	})
	return d
}

func near(c color.Color, r, g, b uint8) bool {
	cr, cg, cb, _ := c.RGBA()
	d := func(a uint32, want uint8) bool {
		v := int(a>>8) - int(want)
		return v > -12 && v < 12
	}
	return d(cr, r) && d(cg, g) && d(cb, b)
}

func TestRasterizeRect(t *testing.T) {
	img, err := Rasterize(rectDoc("#ff0000"), PNGOptions{})
	if err != nil {
		t.Fatalf("rasterize: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Fatalf("bounds %v", b)
	}
	if c := img.At(40, 35); !near(c, 255, 0, 0) {
		t.Fatalf("center pixel %v, want red", c)
	}
	if c := img.At(5, 5); !near(c, 255, 255, 255) {
		t.Fatalf("corner pixel %v, want white", c)
	}
}

func TestRasterizeScale(t *testing.T) {
	img, err := Rasterize(rectDoc("#00ff00"), PNGOptions{Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 160 {
		t.Fatalf("bounds %v", b)
	}
	if c := img.At(80, 70); !near(c, 0, 255, 0) {
		t.Fatalf("scaled center %v, want green", c)
	}
}

func TestRasterizeSkipsTransparentObjects(t *testing.T) {
	d := rectDoc("#ff0000")
	d.Objects[0].Opacity = 0
	img, err := Rasterize(d, PNGOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c := img.At(40, 35); !near(c, 255, 255, 255) {
		t.Fatalf("invisible object painted: %v", c)
	}
}

func TestRasterizeGradient(t *testing.T) {
	d := scene.NewDocument(100, 100)
	d.Background.Gradient = &scene.Gradient{
		X2: 100, Y2: 100,
		Stops: []scene.GradientStop{{Offset: 0, Color: "#0000ff"}, {Offset: 1, Color: "#ffff00"}},
	}
	img, err := Rasterize(d, PNGOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// gg blends stops in linear light, so expectations come from its brush
	brush := gg.NewLinearGradientBrush(0, 0, 100, 100)
	brush.AddColorStop(0, gg.RGB(0, 0, 1))
	brush.AddColorStop(1, gg.RGB(1, 1, 0))
	for _, p := range []image.Point{{1, 1}, {50, 50}, {98, 98}} {
		want := brush.ColorAt(float64(p.X)+0.5, float64(p.Y)+0.5).Color().(color.NRGBA)
		if c := img.At(p.X, p.Y); !near(c, want.R, want.G, want.B) {
			t.Errorf("pixel %v = %v, want about %v", p, c, want)
		}
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); b <= r {
		t.Fatalf("top-left not blue dominated: %v", img.At(0, 0))
	}
	if r, _, b, _ := img.At(99, 99).RGBA(); r <= b {
		t.Fatalf("bottom-right not yellow dominated: %v", img.At(99, 99))
	}
}

func TestRasterizeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	d := scene.NewDocument(100, 100)
	d.Objects = append(d.Objects, scene.Object{
		ID: "i1", Type: scene.KindImage, Left: 10, Top: 10, Width: 10, Height: 10,
		ScaleX: 4, ScaleY: 4, Opacity: 1, Src: scene.DataURI("image/png", buf.Bytes()),
	})
	img, err := Rasterize(d, PNGOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c := img.At(30, 30); !near(c, 0, 0, 255) {
		t.Fatalf("image center %v, want blue", c)
	}
	if c := img.At(60, 60); !near(c, 255, 255, 255) {
		t.Fatalf("outside image %v, want white", c)
	}
}

func TestRasterizeBrokenImageIsSkipped(t *testing.T) {
	d := rectDoc("#ff0000")
	d.Objects = append(d.Objects, scene.Object{
		ID: "bad", Type: scene.KindImage, Width: 5, Height: 5,
		ScaleX: 1, ScaleY: 1, Opacity: 1, Src: "data:image/png;base64,AAAA",
	})
	if _, err := Rasterize(d, PNGOptions{}); err != nil {
		t.Fatalf("broken image should not fail the export: %v", err)
	}
}

func TestRasterizeRejectsEmptyCanvas(t *testing.T) {
	if _, err := Rasterize(scene.NewDocument(0, 10), PNGOptions{}); err == nil {
		t.Fatal("want error for zero width")
	}
}

func TestWritePNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, rectDoc("blue"), PNGOptions{}); err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 80 {
		t.Fatalf("config %+v", cfg)
	}
}

func TestWritePDF(t *testing.T) {
	d := rectDoc("#ff0000")
	d.Background.Gradient = &scene.Gradient{
		X2: 100, Y2: 80,
		Stops: []scene.GradientStop{{Offset: 0, Color: "#0000ff"}, {Offset: 1, Color: "#ffff00"}},
	}
	d.Objects = append(d.Objects,
		scene.Object{ID: "c", Type: scene.KindCircle, Left: 50, Top: 10, Radius: 10, ScaleX: 1, ScaleY: 1, Opacity: 0.5, Fill: "#00ff00"},
		scene.Object{ID: "l", Type: scene.KindLine, X1: 0, Y1: 0, X2: 50, Y2: 0, Left: 10, Top: 70, ScaleX: 1, ScaleY: 1, Opacity: 1, Stroke: "#000", StrokeWidth: 2},
		scene.Object{ID: "t", Type: scene.KindTextbox, Text: "Hello PDF", Left: 5, Top: 5, Width: 60, FontSize: 12, ScaleX: 1, ScaleY: 1, Opacity: 1, Angle: 15},
	)
	var buf bytes.Buffer
	if err := WritePDF(&buf, d); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF") {
		t.Fatalf("not a pdf: %q", buf.String()[:min(buf.Len(), 16)])
	}
}

func TestJSONFileName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got, want := JSONFileName(ts), "positron-design-2024-03-09T14-05-07.json"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSaveJSON(t *testing.T) {
	dir := t.TempDir()
	blob := []byte(`{"version":"1"}`)
	path, err := SaveJSON(dir, blob, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, blob) {
		t.Fatalf("read back %q, %v", got, err)
	}
	if _, err := SaveJSON(dir, nil, time.Now()); err == nil {
		t.Fatal("want error for empty blob")
	}
}

func TestBatchExportPresets(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	paths, err := BatchExport(rectDoc("red"), BatchOptions{OutDir: dir, Now: func() time.Time { return ts }})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "web", DefaultPNGName),
		filepath.Join(dir, "web", JSONFileName(ts)),
	}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("paths %v want %v", paths, want)
	}

	paths, err = BatchExport(rectDoc("red"), BatchOptions{Preset: PresetPrint, OutDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != DefaultPDFName {
		t.Fatalf("print paths %v", paths)
	}
	f, err := os.Open(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil || cfg.Width != 200 {
		t.Fatalf("print png %+v %v", cfg, err)
	}
}

func TestBatchExportUnknownFormat(t *testing.T) {
	_, err := BatchExport(rectDoc("red"), BatchOptions{OutDir: t.TempDir(), Formats: []string{"svg"}})
	if err == nil || !strings.Contains(err.Error(), "svg") {
		t.Fatalf("want unknown format error, got %v", err)
	}
}
