/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is one editing session: a scene with its history,
// selection, property panel, upload pipeline and template library. A single
// mutex serializes every scene mutation so history captures always observe a
// settled state.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"positron/internal/history"
	"positron/internal/ingest"
	applog "positron/internal/log"
	"positron/internal/panel"
	"positron/internal/scene"
	"positron/internal/selection"
	"positron/internal/storage"
	"positron/internal/telemetry"
	"positron/internal/templates"
	"positron/internal/textlayout"
)

var (
	// ErrUnknownPreset is returned for shape or text preset names that do not exist.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrNoStore is returned by save and load when no slot store is configured.
	ErrNoStore = errors.New("no storage configured")
	// ErrNoSelection is returned by direct manipulation without an active object.
	ErrNoSelection = errors.New("nothing selected")
	// ErrSessionBusy is returned by Autosave while another goroutine holds the session.
	ErrSessionBusy = errors.New("session busy")
)

// Canvas container margin and aspect ratio used by Resize.
const (
	ContainerMargin = 40
	AspectRatio     = 4.0 / 3.0
)

// Options configures a session. Zero values pick sensible defaults.
type Options struct {
	Width, Height float64
	History       history.Config
	Ingest        ingest.Config
	Store         storage.Store
	Templates     *templates.Library
	Telemetry     *telemetry.Client
	Fonts         textlayout.Provider
	Now           func() time.Time
	MaxNotices    int
}

// Editor is safe for concurrent use.
type Editor struct {
	mu     sync.Mutex
	sc     *scene.Scene
	hist   *history.Manager
	sel    *selection.Bridge
	panel  *panel.Controller
	ingest *ingest.Pipeline

	lib   *templates.Library
	store storage.Store
	tel   *telemetry.Client
	now   func() time.Time
	log   *slog.Logger

	notices noticeBoard
}

// New builds a session around an empty canvas.
func New(opt Options) *Editor {
	if opt.Width <= 0 || opt.Height <= 0 {
		opt.Width, opt.Height = scene.DefaultWidth, scene.DefaultHeight
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Templates == nil {
		opt.Templates = templates.NewLibrary("")
	}
	sc := scene.New(opt.Width, opt.Height)
	if opt.Fonts != nil {
		sc.SetTextProvider(opt.Fonts)
	}
	e := &Editor{
		sc:    sc,
		lib:   opt.Templates,
		store: opt.Store,
		tel:   opt.Telemetry,
		now:   opt.Now,
		log:   applog.WithComponent("editor"),
	}
	e.notices.max = opt.MaxNotices
	e.hist = history.NewManager(sc, opt.History)
	e.sel = selection.New(sc)
	e.panel = panel.New(sc, e.sel)
	e.ingest = ingest.NewPipeline(target{e}, opt.Ingest)
	return e
}

// Close detaches every component. The store is left open.
func (e *Editor) Close() {
	e.ingest.Close()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panel.Close()
	e.sel.Close()
	e.hist.Close()
}

// Do runs fn with exclusive access to the scene.
func (e *Editor) Do(fn func(*scene.Scene) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sc)
}

// OnRender registers fn to run after every canvas render. fn is called with
// the session locked and must not call back into the Editor.
func (e *Editor) OnRender(fn func()) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	unsub := e.sc.Subscribe(func(ev scene.Event) {
		if ev.Kind == scene.Rendered {
			fn()
		}
	})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		unsub()
	}
}

// Document returns a copy of the current scene.
func (e *Editor) Document() scene.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sc.Document()
}

// Dimensions returns the canvas size.
func (e *Editor) Dimensions() (w, h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sc.Dimensions()
}

// Resize fits a 4:3 canvas into a container, keeping ContainerMargin free.
// Resizing is not an edit and records no history.
func (e *Editor) Resize(containerW, containerH float64) (w, h float64, err error) {
	w = containerW - ContainerMargin
	h = w / AspectRatio
	if h > containerH-ContainerMargin {
		h = containerH - ContainerMargin
		w = h * AspectRatio
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("container %vx%v too small", containerW, containerH)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sc.SetDimensions(w, h)
	e.sc.Render()
	return w, h, nil
}

// InsertShape adds the named shape preset and selects it.
func (e *Editor) InsertShape(name string) (scene.Object, error) {
	o, ok := templates.Shape(name)
	if !ok {
		return scene.Object{}, fmt.Errorf("%w: shape %q", ErrUnknownPreset, name)
	}
	return e.insert(o)
}

// InsertText adds the named text preset and selects it.
func (e *Editor) InsertText(name string) (scene.Object, error) {
	o, ok := templates.Text(name)
	if !ok {
		return scene.Object{}, fmt.Errorf("%w: text %q", ErrUnknownPreset, name)
	}
	return e.insert(o)
}

func (e *Editor) insert(o scene.Object) (scene.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertLocked(o)
}

func (e *Editor) insertLocked(o scene.Object) (scene.Object, error) {
	added, err := e.sc.Add(o)
	if err != nil {
		return scene.Object{}, err
	}
	if err := e.sc.SetActive(added.ID); err != nil {
		return scene.Object{}, err
	}
	e.sc.Render()
	return added, nil
}

// ApplyTemplate replaces the scene with a layout or user template. The swap
// is recorded as one history entry.
func (e *Editor) ApplyTemplate(name string) error {
	d, err := e.lib.Get(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	err = e.replaceLocked(d)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.tel.Track(telemetry.EventTemplate, map[string]any{"template": name})
	return nil
}

// SaveTemplate stores the current scene as a user template.
func (e *Editor) SaveTemplate(name string) error {
	return e.lib.Save(name, e.Document())
}

// Templates lists the template names available to ApplyTemplate.
func (e *Editor) Templates() ([]string, error) { return e.lib.Names() }

func (e *Editor) replaceLocked(d scene.Document) error {
	if err := e.sc.Replace(d); err != nil {
		return err
	}
	e.sc.Commit()
	return nil
}

// Undo steps back one history entry. It reports whether anything changed.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Undo()
}

// Redo steps forward one history entry.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Redo()
}

// Panel runs fn against the property panel under the session lock.
func (e *Editor) Panel(fn func(*panel.Controller) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.panel)
}

// Selection returns the selected object and its property snapshot.
func (e *Editor) Selection() (scene.Object, selection.Properties, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.sel.Current()
	if !ok {
		return scene.Object{}, selection.Properties{}, false
	}
	p, _ := e.panel.Properties()
	return o, p, true
}

// Select makes id the active object.
func (e *Editor) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sc.SetActive(id)
}

// SelectAt selects the topmost object under x,y, or clears the selection
// when the point hits nothing.
func (e *Editor) SelectAt(x, y float64) (scene.Object, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.sc.ObjectAt(x, y)
	if !ok {
		e.sc.ClearActive()
		return scene.Object{}, false
	}
	_ = e.sc.SetActive(o.ID)
	return o, true
}

// ClearSelection drops the active object.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sc.ClearActive()
}

// Move drags the selected object by dx,dy.
func (e *Editor) Move(dx, dy float64) error {
	return e.manipulate(func(id string) error { return e.sc.Move(id, dx, dy) })
}

// Scale multiplies the selected object's scale factors.
func (e *Editor) Scale(fx, fy float64) error {
	return e.manipulate(func(id string) error { return e.sc.ScaleBy(id, fx, fy) })
}

// Rotate turns the selected object by deg degrees.
func (e *Editor) Rotate(deg float64) error {
	return e.manipulate(func(id string) error { return e.sc.RotateBy(id, deg) })
}

func (e *Editor) manipulate(fn func(id string) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.sel.ID()
	if id == "" {
		return ErrNoSelection
	}
	if err := fn(id); err != nil {
		return err
	}
	e.sc.Render()
	return nil
}

// Upload starts an ingestion. Failures surface as error notices once the
// task ends; ErrBusy is returned directly.
func (e *Editor) Upload(ctx context.Context, kind ingest.Kind, f ingest.File) (*ingest.Task, error) {
	t, err := e.ingest.Start(ctx, kind, f)
	if err != nil {
		return nil, err
	}
	go e.watch(t)
	return t, nil
}

func (e *Editor) watch(t *ingest.Task) {
	<-t.Done()
	if err := t.Err(); err != nil {
		e.log.Warn("upload failed", slog.String("task", t.ID), slog.String("kind", t.Kind.String()), slog.Any("err", err))
		e.notify(Notice{Title: "Upload failed", Description: uploadError(t.Kind, err), Level: LevelError})
		return
	}
	e.tel.Track(telemetry.EventUpload, map[string]any{"kind": t.Kind.String()})
}

func uploadError(k ingest.Kind, err error) string {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedType):
		return "Please choose an image file"
	case errors.Is(err, ingest.ErrTooLarge):
		return "The file is too large"
	case errors.Is(err, ingest.ErrDecode) && k == ingest.KindDocument:
		return "The file is not a valid design"
	case errors.Is(err, ingest.ErrDecode):
		return "The image could not be read"
	case errors.Is(err, context.Canceled):
		return "The upload was cancelled"
	}
	return err.Error()
}

// Task looks up an ingestion task by id.
func (e *Editor) Task(id string) (*ingest.Task, bool) { return e.ingest.Task(id) }

// IngestStatus reports the upload indicator.
func (e *Editor) IngestStatus() ingest.Status { return e.ingest.Status() }

// ObserveIngest forwards pipeline status updates to fn. Updates may arrive
// from any goroutine.
func (e *Editor) ObserveIngest(fn func(ingest.Status)) (cancel func()) {
	return e.ingest.Observe(fn)
}

// HistoryState is the toolbar's view of the history log.
type HistoryState struct {
	CanUndo  bool `json:"canUndo"`
	CanRedo  bool `json:"canRedo"`
	Entries  int  `json:"entries"`
	Position int  `json:"position"`
	Bytes    int  `json:"bytes"`
}

// History reports the history log state.
func (e *Editor) History() HistoryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	total, n, pos := e.hist.Stats()
	return HistoryState{CanUndo: e.hist.CanUndo(), CanRedo: e.hist.CanRedo(), Entries: n, Position: pos, Bytes: total}
}

// Status is a summary of the whole session.
type Status struct {
	Width      float64               `json:"width"`
	Height     float64               `json:"height"`
	Objects    int                   `json:"objects"`
	Renders    uint64                `json:"renders"`
	History    HistoryState          `json:"history"`
	Selected   string                `json:"selected,omitempty"`
	Properties *selection.Properties `json:"properties,omitempty"`
	Background BackgroundState       `json:"background"`
	Ingest     ingest.Status         `json:"ingest"`
}

// Status returns a consistent snapshot of the session.
func (e *Editor) Status() Status {
	st := Status{History: e.History(), Ingest: e.ingest.Status()}
	e.mu.Lock()
	defer e.mu.Unlock()
	st.Width, st.Height = e.sc.Dimensions()
	st.Objects = e.sc.Len()
	st.Renders = e.sc.Renders()
	st.Selected = e.sel.ID()
	if p, ok := e.panel.Properties(); ok {
		st.Properties = &p
	}
	st.Background = e.backgroundStateLocked()
	return st
}

// target applies ingestion results under the session lock.
type target struct{ e *Editor }

func (t target) Dimensions() (float64, float64) { return t.e.Dimensions() }

func (t target) InsertImage(o scene.Object) error {
	_, err := t.e.insert(o)
	return err
}

func (t target) ReplaceDocument(d scene.Document) error {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	return t.e.replaceLocked(d)
}

func (t target) SetBackgroundImage(img scene.BackgroundImage) error {
	t.e.mu.Lock()
	defer t.e.mu.Unlock()
	bg := t.e.sc.Background()
	bg.Image = &img
	t.e.sc.SetBackground(bg)
	t.e.sc.Render()
	t.e.sc.Commit()
	return nil
}
