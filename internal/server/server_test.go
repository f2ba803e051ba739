/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"positron/internal/editor"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/scene"
)

func newServer(t *testing.T) (*httptest.Server, *editor.Editor) {
	t.Helper()
	ed := editor.New(editor.Options{
		Ingest: ingest.Config{TickInterval: time.Millisecond, ResetAfter: 10 * time.Millisecond},
	})
	t.Cleanup(ed.Close)
	ts := httptest.NewServer(New(ed, Options{}).Handler())
	t.Cleanup(ts.Close)
	return ts, ed
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, res *http.Response, code int) {
	t.Helper()
	if res.StatusCode != code {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", res.Request.Method, res.Request.URL.Path, res.StatusCode, code, b)
	}
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := newServer(t)
	expectStatus(t, do(t, ts, http.MethodGet, "/healthz", ""), http.StatusOK)
	v := decode[map[string]string](t, do(t, ts, http.MethodGet, "/api/version", ""))
	if v["version"] == "" {
		t.Fatalf("version %v", v)
	}
}

func TestInsertUndoRedoFlow(t *testing.T) {
	ts, _ := newServer(t)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/shapes/rectangle", ""), http.StatusCreated)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/shapes/circle", ""), http.StatusCreated)

	step := decode[stepResult](t, do(t, ts, http.MethodPost, "/api/undo", ""))
	if !step.Changed || !step.History.CanRedo {
		t.Fatalf("undo %+v", step)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/shapes/triangle", ""), http.StatusCreated)
	step = decode[stepResult](t, do(t, ts, http.MethodPost, "/api/redo", ""))
	if step.Changed {
		t.Fatal("redo after new edit must not change anything")
	}
	d := decode[scene.Document](t, do(t, ts, http.MethodGet, "/api/design", ""))
	if len(d.Objects) != 2 || d.Objects[1].Type != scene.KindTriangle {
		t.Fatalf("objects %+v", d.Objects)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/shapes/hexagon", ""), http.StatusNotFound)
}

func TestSelectionEndpoints(t *testing.T) {
	ts, _ := newServer(t)
	expectStatus(t, do(t, ts, http.MethodGet, "/api/selection", ""), http.StatusNoContent)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/texts/heading", ""), http.StatusCreated)

	sel := decode[selectionView](t, do(t, ts, http.MethodPatch, "/api/selection", `{"fill":"#ff0000","fontSize":48}`))
	if sel.Properties.Fill != "#ff0000" || sel.Properties.Text == nil || sel.Properties.Text.FontSize != 48 {
		t.Fatalf("props %+v", sel.Properties)
	}
	expectStatus(t, do(t, ts, http.MethodPatch, "/api/selection", `{"opacity":150}`), http.StatusBadRequest)

	locked := decode[selectionView](t, do(t, ts, http.MethodPost, "/api/selection/lock", ""))
	o := locked.Object
	if !(o.LockMovementX && o.LockMovementY && o.LockRotation && o.LockScalingX && o.LockScalingY) {
		t.Fatalf("lock flags %+v", o)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/selection/transform", `{"dx":5}`), http.StatusConflict)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/selection/lock", ""), http.StatusOK)

	dup := decode[selectionView](t, do(t, ts, http.MethodPost, "/api/selection/duplicate", ""))
	if dup.Object.ID == o.ID || dup.Object.Left != o.Left+20 || dup.Object.Top != o.Top+20 {
		t.Fatalf("duplicate %+v", dup.Object)
	}
	moved := decode[selectionView](t, do(t, ts, http.MethodPost, "/api/selection/transform", `{"dx":5,"angle":90}`))
	if moved.Object.Left != dup.Object.Left+5 || moved.Object.Angle != 90 {
		t.Fatalf("transform %+v", moved.Object)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/selection/explode", ""), http.StatusNotFound)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/selection/delete", ""), http.StatusNoContent)

	expectStatus(t, do(t, ts, http.MethodPut, "/api/selection", `{"id":"`+o.ID+`"}`), http.StatusOK)
	expectStatus(t, do(t, ts, http.MethodDelete, "/api/selection", ""), http.StatusNoContent)
	expectStatus(t, do(t, ts, http.MethodPut, "/api/selection", `{"id":"missing"}`), http.StatusNotFound)
}

func TestTemplatesAndBackground(t *testing.T) {
	ts, _ := newServer(t)
	cat := decode[catalog](t, do(t, ts, http.MethodGet, "/api/templates", ""))
	if len(cat.Templates) < 3 || len(cat.Shapes) != 4 || len(cat.Backgrounds) != 5 {
		t.Fatalf("catalog %+v", cat)
	}
	d := decode[scene.Document](t, do(t, ts, http.MethodPost, "/api/templates/flyer/apply", ""))
	if d.Width != 595 || d.Height != 842 {
		t.Fatalf("flyer %vx%v", d.Width, d.Height)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/templates/nope/apply", ""), http.StatusNotFound)

	bg := decode[editor.BackgroundState](t, do(t, ts, http.MethodPost, "/api/background/preset/blue-yellow", ""))
	if !bg.Gradient {
		t.Fatalf("background %+v", bg)
	}
	expectStatus(t, do(t, ts, http.MethodPatch, "/api/background", `{"opacity":500}`), http.StatusBadRequest)
	bg = decode[editor.BackgroundState](t, do(t, ts, http.MethodDelete, "/api/background", ""))
	if bg.Gradient || bg.Color != scene.DefaultBackground {
		t.Fatalf("removed %+v", bg)
	}
}

func TestExportEndpoints(t *testing.T) {
	ts, _ := newServer(t)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/shapes/circle", ""), http.StatusCreated)

	res := do(t, ts, http.MethodGet, "/api/design.png?scale=0.5", "")
	expectStatus(t, res, http.StatusOK)
	cfg, err := png.DecodeConfig(res.Body)
	if err != nil || cfg.Width != 400 {
		t.Fatalf("png %+v %v", cfg, err)
	}
	expectStatus(t, do(t, ts, http.MethodGet, "/api/design.png?scale=-1", ""), http.StatusBadRequest)

	res = do(t, ts, http.MethodGet, "/api/design.pdf", "")
	expectStatus(t, res, http.StatusOK)
	if ct := res.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type %q", ct)
	}

	res = do(t, ts, http.MethodGet, "/api/design?download=1", "")
	expectStatus(t, res, http.StatusOK)
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "positron-design-") {
		t.Fatalf("disposition %q", cd)
	}
	ns := decode[[]editor.Notice](t, do(t, ts, http.MethodGet, "/api/notices", ""))
	if len(ns) != 3 {
		t.Fatalf("notices %+v", ns)
	}
	expectStatus(t, do(t, ts, http.MethodGet, "/api/notices?after=x", ""), http.StatusBadRequest)
}

func TestSaveWithoutStore(t *testing.T) {
	ts, _ := newServer(t)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/save", ""), http.StatusServiceUnavailable)
}

func TestReplaceDesign(t *testing.T) {
	ts, _ := newServer(t)
	d := scene.NewDocument(300, 200)
	b, _ := d.Marshal()
	got := decode[scene.Document](t, do(t, ts, http.MethodPut, "/api/design", string(b)))
	if got.Width != 300 {
		t.Fatalf("width %v", got.Width)
	}
	expectStatus(t, do(t, ts, http.MethodPut, "/api/design", `{"nope":1}`), http.StatusBadRequest)
}

func multipartBody(t *testing.T, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + name + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAndPollTask(t *testing.T) {
	ts, ed := newServer(t)
	var img bytes.Buffer
	_ = png.Encode(&img, image.NewNRGBA(image.Rect(0, 0, 20, 10)))
	body, ct := multipartBody(t, "pic.png", "image/png", img.Bytes())
	res, err := ts.Client().Post(ts.URL+"/api/uploads/image", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	expectStatus(t, res, http.StatusAccepted)
	task := decode[taskView](t, res)

	deadline := time.Now().Add(2 * time.Second)
	for {
		v := decode[taskView](t, do(t, ts, http.MethodGet, "/api/uploads/tasks/"+task.ID, ""))
		if v.State == "done" {
			break
		}
		if v.State == "failed" || time.Now().After(deadline) {
			t.Fatalf("task %+v", v)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if o, _, ok := ed.Selection(); !ok || o.Type != scene.KindImage {
		t.Fatalf("selection %+v %v", o, ok)
	}
	expectStatus(t, do(t, ts, http.MethodGet, "/api/uploads/tasks/unknown", ""), http.StatusNotFound)
	expectStatus(t, do(t, ts, http.MethodPost, "/api/uploads/video", ""), http.StatusBadRequest)
}

func TestResizeEndpoint(t *testing.T) {
	ts, _ := newServer(t)
	got := decode[sizeBody](t, do(t, ts, http.MethodPost, "/api/resize", `{"width":840,"height":1000}`))
	if got.Width != 800 || got.Height != 600 {
		t.Fatalf("size %+v", got)
	}
	expectStatus(t, do(t, ts, http.MethodPost, "/api/resize", `{"width":10,"height":10}`), http.StatusBadRequest)
}

func TestLogLevelEndpoint(t *testing.T) {
	ts, _ := newServer(t)
	prev := applog.Level().String()
	t.Cleanup(func() { _ = applog.SetLevel(prev) })

	got := decode[levelBody](t, do(t, ts, http.MethodPut, "/api/log/level", `{"level":"warn"}`))
	if got.Level != "WARN" || applog.Level() != slog.LevelWarn {
		t.Fatalf("level %+v", got)
	}
	expectStatus(t, do(t, ts, http.MethodPut, "/api/log/level", `{"level":"loud"}`), http.StatusBadRequest)
}

func TestTokenGuardsAPI(t *testing.T) {
	ed := editor.New(editor.Options{})
	t.Cleanup(ed.Close)
	ts := httptest.NewServer(New(ed, Options{Token: "s3cret"}).Handler())
	t.Cleanup(ts.Close)

	expectStatus(t, do(t, ts, http.MethodGet, "/healthz", ""), http.StatusOK)
	expectStatus(t, do(t, ts, http.MethodGet, "/api/status", ""), http.StatusUnauthorized)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	expectStatus(t, res, http.StatusOK)
}
