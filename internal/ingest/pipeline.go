/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "positron/internal/log"
	"positron/internal/scene"
)

// Target applies decoded results. Implementations serialize these calls
// with every other scene mutation.
type Target interface {
	Dimensions() (width, height float64)
	InsertImage(o scene.Object) error
	ReplaceDocument(d scene.Document) error
	SetBackgroundImage(img scene.BackgroundImage) error
}

// Status is a point-in-time view of the pipeline for UIs.
type Status struct {
	Busy     bool   `json:"busy"`
	Progress int    `json:"progress"`
	TaskID   string `json:"taskId,omitempty"`
	Kind     string `json:"kind,omitempty"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// Pipeline runs ingestion tasks one at a time.
type Pipeline struct {
	cfg    Config
	target Target
	log    *slog.Logger

	// emitMu orders observer deliveries; it is taken before mu.
	emitMu sync.Mutex

	mu        sync.Mutex
	current   *Task
	last      *Task
	progress  int
	resetGen  uint64
	observers map[int]func(Status)
	nextObs   int
	timers    map[*time.Timer]struct{}
	closed    bool
}

// NewPipeline returns a pipeline applying results to target.
func NewPipeline(target Target, cfg Config) *Pipeline {
	return &Pipeline{
		cfg:       cfg.withDefaults(),
		target:    target,
		log:       applog.WithComponent("ingest"),
		observers: map[int]func(Status){},
		timers:    map[*time.Timer]struct{}{},
	}
}

// Task is one ingestion run.
type Task struct {
	ID   string
	Kind Kind
	Name string

	p      *Pipeline
	cancel context.CancelFunc
	done   chan struct{}

	// guarded by p.mu
	state    State
	err      error
	progress int
}

// State returns the current state.
func (t *Task) State() State {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.state
}

// Err returns the failure cause once the task failed.
func (t *Task) Err() error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.err
}

// Progress returns the task's own progress, 0..100.
func (t *Task) Progress() int {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.progress
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel aborts the task if it has not yet applied its result.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx is done, and returns the task's
// error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches an ingestion. It fails with ErrBusy while another task is
// in flight; the in-flight indicator is left untouched in that case.
func (p *Pipeline) Start(ctx context.Context, kind Kind, f File) (*Task, error) {
	if kind != KindImage && kind != KindDocument && kind != KindBackground {
		return nil, fmt.Errorf("unknown ingestion kind %d", kind)
	}
	tctx, cancel := context.WithCancel(ctx)
	t := &Task{
		ID:     uuid.New().String(),
		Kind:   kind,
		Name:   f.Name,
		p:      p,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var startErr error
	p.update(func() {
		switch {
		case p.closed:
			startErr = errors.New("ingest pipeline closed")
		case p.current != nil:
			startErr = ErrBusy
		default:
			p.current = t
			p.last = t
			p.resetGen++ // a pending reset must not zero this task's progress
			p.progress = 0
		}
	})
	if startErr != nil {
		cancel()
		return nil, startErr
	}

	go p.run(tctx, t, f)
	return t, nil
}

// Ingest runs a task to completion.
func (p *Pipeline) Ingest(ctx context.Context, kind Kind, f File) error {
	t, err := p.Start(ctx, kind, f)
	if err != nil {
		return err
	}
	<-t.Done()
	return t.Err()
}

func (p *Pipeline) run(ctx context.Context, t *Task, f File) {
	defer close(t.done)
	defer t.cancel()
	ctx = applog.ContextWithTask(ctx, t.ID)
	stopTicks := p.tick(t)

	p.transition(t, Reading)
	data, err := read(ctx, f, p.cfg.MaxBytes)
	if err != nil {
		stopTicks()
		p.fail(ctx, t, err)
		return
	}

	p.transition(t, Decoding)
	apply, err := p.decode(t.Kind, f, data)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = apply()
	}
	stopTicks()
	if err != nil {
		p.fail(ctx, t, err)
		return
	}
	p.finish(ctx, t)
}

// decode validates data and returns the function that applies it.
func (p *Pipeline) decode(kind Kind, f File, data []byte) (func() error, error) {
	switch kind {
	case KindDocument:
		d, err := scene.ParseDocument(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return func() error { return p.target.ReplaceDocument(d) }, nil
	case KindImage, KindBackground:
		img, err := decodeImage(contentType(f, data), data)
		if err != nil {
			return nil, err
		}
		w, h := p.target.Dimensions()
		if kind == KindBackground {
			bg := backgroundImage(img, w, h)
			return func() error { return p.target.SetBackgroundImage(bg) }, nil
		}
		o := p.imageObject(img, w, h)
		return func() error { return p.target.InsertImage(o) }, nil
	}
	return nil, fmt.Errorf("unknown ingestion kind %d", kind)
}

// tick advances the task progress until stopped. stop waits for the ticker
// goroutine to exit so no tick lands after it returns.
func (p *Pipeline) tick(t *Task) (stop func()) {
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		tk := time.NewTicker(p.cfg.TickInterval)
		defer tk.Stop()
		for {
			select {
			case <-quit:
				return
			case <-tk.C:
				if t.Progress() >= p.cfg.Ceiling {
					continue
				}
				p.update(func() {
					t.progress = min(t.progress+p.cfg.TickStep, p.cfg.Ceiling)
					p.progress = t.progress
				})
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-exited
		})
	}
}

func (p *Pipeline) transition(t *Task, s State) {
	p.update(func() { t.state = s })
}

func (p *Pipeline) finish(ctx context.Context, t *Task) {
	p.update(func() {
		t.state = Done
		t.progress = 100
		p.progress = 100
		p.current = nil
		p.scheduleResetLocked(p.resetGen)
	})
	p.log.InfoContext(ctx, "ingested", slog.String("kind", t.Kind.String()), slog.String("file", t.Name))
}

func (p *Pipeline) fail(ctx context.Context, t *Task, err error) {
	p.update(func() {
		t.state = Failed
		t.err = err
		t.progress = 0
		p.progress = 0
		p.current = nil
	})
	p.log.WarnContext(ctx, "ingestion failed", slog.String("kind", t.Kind.String()), slog.String("file", t.Name), slog.Any("err", err))
}

// scheduleResetLocked drops the indicator to 0 after ResetAfter unless a new
// task started in the meantime.
func (p *Pipeline) scheduleResetLocked(gen uint64) {
	if p.closed {
		return
	}
	var tm *time.Timer
	tm = time.AfterFunc(p.cfg.ResetAfter, func() {
		p.update(func() {
			delete(p.timers, tm)
			if p.resetGen != gen || p.current != nil {
				return
			}
			p.progress = 0
			if p.last != nil {
				p.last.progress = 0
			}
		})
	})
	p.timers[tm] = struct{}{}
}

func (p *Pipeline) statusLocked() Status {
	st := Status{Busy: p.current != nil, Progress: p.progress, State: Idle.String()}
	if t := p.last; t != nil {
		st.TaskID = t.ID
		st.Kind = t.Kind.String()
		st.State = t.state.String()
		if t.err != nil {
			st.Error = t.err.Error()
		}
	}
	return st
}

// update runs fn under the state lock and then tells observers about the
// resulting status. Deliveries happen in the order the updates were made.
func (p *Pipeline) update(fn func()) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()
	p.mu.Lock()
	fn()
	st := p.statusLocked()
	obs := make([]func(Status), 0, len(p.observers))
	for _, o := range p.observers {
		obs = append(obs, o)
	}
	p.mu.Unlock()
	for _, o := range obs {
		o(st)
	}
}

// Status returns the current indicator state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// Busy reports whether a task is in flight.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Progress returns the indicator value, 0..100.
func (p *Pipeline) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Task returns the most recent task with the given id.
func (p *Pipeline) Task(id string) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && p.last.ID == id {
		return p.last, true
	}
	return nil, false
}

// Observe registers fn for status updates. Updates may arrive from any
// goroutine; fn must not start tasks.
func (p *Pipeline) Observe(fn func(Status)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextObs++
	id := p.nextObs
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// Close cancels an in-flight task and stops pending resets.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	cur := p.current
	for tm := range p.timers {
		tm.Stop()
		delete(p.timers, tm)
	}
	p.mu.Unlock()
	if cur != nil {
		cur.Cancel()
		<-cur.Done()
	}
}
