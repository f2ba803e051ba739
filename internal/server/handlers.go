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
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"

	"positron/internal/editor"
	"positron/internal/export"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/panel"
	"positron/internal/scene"
	"positron/internal/selection"
	"positron/internal/templates"
	"positron/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.String(),
		"go":      runtime.Version(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ed.Status())
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid after %q", v)
			return
		}
		after = n
	}
	ns := s.ed.Notices(after)
	if ns == nil {
		ns = []editor.Notice{}
	}
	writeJSON(w, http.StatusOK, ns)
}

type sizeBody struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var body sizeBody
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	cw, ch, err := s.ed.Resize(body.Width, body.Height)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, sizeBody{Width: cw, Height: ch})
}

type levelBody struct {
	Level string `json:"level"`
}

func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	var body levelBody
	if err := decodeBody(r, &body); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	if err := applog.SetLevel(body.Level); err != nil {
		badRequest(w, "%v", err)
		return
	}
	s.log.InfoContext(r.Context(), "log level changed", "level", applog.Level().String())
	writeJSON(w, http.StatusOK, levelBody{Level: applog.Level().String()})
}

func (s *Server) handleDesign(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("download") == "" {
		writeJSON(w, http.StatusOK, s.ed.Document())
		return
	}
	name, blob, err := s.ed.ExportJSON()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	_, _ = w.Write(blob)
}

// handleReplaceDesign loads a document synchronously through the ingestion
// pipeline, so the same validation and busy rules apply.
func (s *Server) handleReplaceDesign(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opt.MaxUpload))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return
	}
	t, err := s.ed.Upload(context.WithoutCancel(r.Context()), ingest.KindDocument,
		ingest.FileFromBytes("design.json", "application/json", data))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := t.Wait(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ed.Document())
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	scale := 1.0
	if v := r.URL.Query().Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 8 {
			badRequest(w, "invalid scale %q", v)
			return
		}
		scale = f
	}
	var buf bytes.Buffer
	if err := s.ed.ExportPNG(&buf, scale); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.DefaultPNGName}))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ed.ExportPDF(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.DefaultPDFName}))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.ed.Save(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if err := s.ed.LoadSaved(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ed.Document())
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ed.History())
}

type stepResult struct {
	Changed bool                `json:"changed"`
	History editor.HistoryState `json:"history"`
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	ok := s.ed.Undo()
	writeJSON(w, http.StatusOK, stepResult{Changed: ok, History: s.ed.History()})
}

func (s *Server) handleRedo(w http.ResponseWriter, _ *http.Request) {
	ok := s.ed.Redo()
	writeJSON(w, http.StatusOK, stepResult{Changed: ok, History: s.ed.History()})
}

func (s *Server) handleInsertShape(w http.ResponseWriter, r *http.Request) {
	o, err := s.ed.InsertShape(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleInsertText(w http.ResponseWriter, r *http.Request) {
	o, err := s.ed.InsertText(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type catalog struct {
	Templates   []string `json:"templates"`
	Shapes      []string `json:"shapes"`
	Texts       []string `json:"texts"`
	Backgrounds []string `json:"backgrounds"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.ed.Templates()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog{
		Templates:   names,
		Shapes:      templates.ShapeNames(),
		Texts:       templates.TextNames(),
		Backgrounds: templates.BackgroundNames(),
	})
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.ed.ApplyTemplate(chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ed.Document())
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.ed.SaveTemplate(chi.URLParam(r, "name")); err != nil {
		badRequest(w, "%v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackground(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ed.Background())
}

func (s *Server) handleBackgroundPreset(w http.ResponseWriter, r *http.Request) {
	s.ed.ApplyBackground(chi.URLParam(r, "name"))
	writeJSON(w, http.StatusOK, s.ed.Background())
}

type backgroundPatch struct {
	Opacity *int `json:"opacity"`
	Scale   *int `json:"scale"`
}

func (s *Server) handleBackgroundPatch(w http.ResponseWriter, r *http.Request) {
	var p backgroundPatch
	if err := decodeBody(r, &p); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	if p.Opacity != nil {
		if _, err := s.ed.SetBackgroundOpacity(*p.Opacity); err != nil {
			badRequest(w, "%v", err)
			return
		}
	}
	if p.Scale != nil {
		if _, err := s.ed.SetBackgroundScale(*p.Scale); err != nil {
			badRequest(w, "%v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.ed.Background())
}

func (s *Server) handleBackgroundRemove(w http.ResponseWriter, _ *http.Request) {
	s.ed.RemoveBackground()
	writeJSON(w, http.StatusOK, s.ed.Background())
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ed.IngestStatus())
}

type taskView struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func viewOf(t *ingest.Task) taskView {
	v := taskView{ID: t.ID, Kind: t.Kind.String(), Name: t.Name, State: t.State().String(), Progress: t.Progress()}
	if err := t.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// handleUpload accepts a multipart "file" field and starts an ingestion. The
// response is 202 with the task; clients poll /api/uploads/tasks/{id}.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, ok := ingest.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		badRequest(w, "unknown upload kind %q", chi.URLParam(r, "kind"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
			return
		}
		badRequest(w, "missing file: %v", err)
		return
	}
	data, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		badRequest(w, "read upload: %v", err)
		return
	}
	f := ingest.FileFromBytes(hdr.Filename, hdr.Header.Get("Content-Type"), data)
	t, err := s.ed.Upload(context.WithoutCancel(r.Context()), kind, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/uploads/tasks/%s", t.ID))
	writeJSON(w, http.StatusAccepted, viewOf(t))
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ed.Task(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown task"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

type selectionView struct {
	Object     scene.Object         `json:"object"`
	Properties selection.Properties `json:"properties"`
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	o, p, ok := s.ed.Selection()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, selectionView{Object: o, Properties: p})
}

type selectBody struct {
	ID string   `json:"id"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// handleSelect selects by id, or by point when x and y are given.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var b selectBody
	if err := decodeBody(r, &b); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	switch {
	case b.ID != "":
		if err := s.ed.Select(b.ID); err != nil {
			s.fail(w, r, err)
			return
		}
	case b.X != nil && b.Y != nil:
		if _, ok := s.ed.SelectAt(*b.X, *b.Y); !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	default:
		badRequest(w, "id or x/y required")
		return
	}
	s.handleSelection(w, r)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.ed.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// propsPatch lists the attributes the property panel can set. Absent fields
// are left alone.
type propsPatch struct {
	Fill        *string  `json:"fill"`
	Stroke      *string  `json:"stroke"`
	StrokeWidth *float64 `json:"strokeWidth"`
	Opacity     *int     `json:"opacity"`
	Locked      *bool    `json:"locked"`
	FontFamily  *string  `json:"fontFamily"`
	FontSize    *float64 `json:"fontSize"`
	FontWeight  *string  `json:"fontWeight"`
	FontStyle   *string  `json:"fontStyle"`
	Underline   *bool    `json:"underline"`
	TextAlign   *string  `json:"textAlign"`
}

func (p propsPatch) apply(c *panel.Controller) error {
	steps := []func() error{}
	add := func(ok bool, fn func() error) {
		if ok {
			steps = append(steps, fn)
		}
	}
	add(p.Fill != nil, func() error { return c.SetFill(*p.Fill) })
	add(p.Stroke != nil, func() error { return c.SetStroke(*p.Stroke) })
	add(p.StrokeWidth != nil, func() error { return c.SetStrokeWidth(*p.StrokeWidth) })
	add(p.Opacity != nil, func() error { return c.SetOpacity(*p.Opacity) })
	add(p.Locked != nil, func() error { return c.SetLocked(*p.Locked) })
	add(p.FontFamily != nil, func() error { return c.SetFontFamily(*p.FontFamily) })
	add(p.FontSize != nil, func() error { return c.SetFontSize(*p.FontSize) })
	add(p.FontWeight != nil, func() error { return c.SetFontWeight(*p.FontWeight) })
	add(p.FontStyle != nil, func() error { return c.SetFontStyle(*p.FontStyle) })
	add(p.Underline != nil, func() error { return c.SetUnderline(*p.Underline) })
	add(p.TextAlign != nil, func() error { return c.SetTextAlign(*p.TextAlign) })
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handlePatchSelection(w http.ResponseWriter, r *http.Request) {
	var p propsPatch
	if err := decodeBody(r, &p); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	if err := s.ed.Panel(p.apply); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleSelection(w, r)
}

type transformBody struct {
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	SX    float64 `json:"sx"`
	SY    float64 `json:"sy"`
	Angle float64 `json:"angle"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var b transformBody
	if err := decodeBody(r, &b); err != nil {
		badRequest(w, "invalid body: %v", err)
		return
	}
	if b.DX != 0 || b.DY != 0 {
		if err := s.ed.Move(b.DX, b.DY); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if b.SX != 0 || b.SY != 0 {
		sx, sy := b.SX, b.SY
		if sx == 0 {
			sx = 1
		}
		if sy == 0 {
			sy = 1
		}
		if err := s.ed.Scale(sx, sy); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if b.Angle != 0 {
		if err := s.ed.Rotate(b.Angle); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.handleSelection(w, r)
}

var actions = map[string]func(*panel.Controller) error{
	"lock":      (*panel.Controller).ToggleLock,
	"bold":      (*panel.Controller).ToggleBold,
	"italic":    (*panel.Controller).ToggleItalic,
	"underline": (*panel.Controller).ToggleUnderline,
	"front":     (*panel.Controller).BringToFront,
	"back":      (*panel.Controller).SendToBack,
	"delete":    (*panel.Controller).Delete,
	"duplicate": func(c *panel.Controller) error {
		_, _, err := c.Duplicate()
		return err
	},
}

func (s *Server) handleSelectionAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	fn, ok := actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown action %q", name)})
		return
	}
	if err := s.ed.Panel(fn); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleSelection(w, r)
}
