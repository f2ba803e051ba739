/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps a linear undo log of scene snapshots.
//
// Every object-added, object-modified and committed notification captures the
// serialized scene: entries after the current position are dropped and the new
// snapshot becomes the tail. Undo and redo restore a neighbouring entry into
// the scene. While a restore runs, notifications are ignored so that the
// restore itself never records history.
package history

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	applog "positron/internal/log"
	"positron/internal/scene"
)

// Canvas is the part of the scene the manager needs.
type Canvas interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
	Subscribe(scene.Listener) (unsubscribe func())
}

// Entry is one captured scene state. Blob is opaque to the manager; its size
// is accounted as len(Blob).
type Entry struct {
	Blob []byte
	TS   time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; the oldest entries are pruned when exceeded.
	MaxBytes int
	// MaxEntries limits the log depth (0 means unlimited).
	MaxEntries int
	// MinInterval coalesces a capture into the tail entry when it arrives
	// within the interval of the previous capture. Zero disables coalescing.
	MinInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultMaxBytes is used when Config.MaxBytes is not positive.
const DefaultMaxBytes = 16 * 1024 * 1024

// Manager owns the history log of one canvas.
type Manager struct {
	cfg    Config
	canvas Canvas
	log    *slog.Logger
	unsub  func()

	restoring atomic.Bool

	mu         sync.Mutex
	entries    []Entry
	pos        int
	totalBytes int
}

// NewManager captures the current canvas as the first entry and starts
// listening for changes.
func NewManager(c Canvas, cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{cfg: cfg, canvas: c, pos: -1, log: applog.WithComponent("history")}
	m.Snapshot()
	m.unsub = c.Subscribe(m.handle)
	return m
}

func (m *Manager) handle(ev scene.Event) {
	switch ev.Kind {
	case scene.ObjectAdded, scene.ObjectModified, scene.Committed:
		m.Snapshot()
	}
}

// Snapshot records the current canvas state. It is a no-op during restore.
// Serialization failures are logged and swallowed.
func (m *Manager) Snapshot() {
	if m.restoring.Load() {
		return
	}
	blob, err := m.canvas.Serialize()
	if err != nil {
		m.log.Warn("snapshot failed", slog.Any("err", err))
		return
	}
	now := m.cfg.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	atTail := m.pos == len(m.entries)-1
	for _, e := range m.entries[m.pos+1:] {
		m.totalBytes -= len(e.Blob)
	}
	m.entries = m.entries[:m.pos+1]

	if m.cfg.MinInterval > 0 && atTail && m.pos > 0 {
		last := &m.entries[m.pos]
		if now.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes += len(blob) - len(last.Blob)
			*last = Entry{Blob: blob, TS: now}
			m.enforceCapsLocked()
			return
		}
	}
	m.entries = append(m.entries, Entry{Blob: blob, TS: now})
	m.totalBytes += len(blob)
	m.pos = len(m.entries) - 1
	m.enforceCapsLocked()
}

// Undo restores the previous entry. It reports whether the position moved.
func (m *Manager) Undo() bool {
	return m.step(-1)
}

// Redo restores the next entry. It reports whether the position moved.
func (m *Manager) Redo() bool {
	return m.step(+1)
}

func (m *Manager) step(dir int) bool {
	if m.restoring.Load() {
		return false
	}
	m.mu.Lock()
	target := m.pos + dir
	if target < 0 || target >= len(m.entries) || m.pos < 0 {
		m.mu.Unlock()
		return false
	}
	blob := m.entries[target].Blob
	m.mu.Unlock()

	// the canvas calls back into handle while restoring
	m.restoring.Store(true)
	err := m.canvas.Deserialize(blob)
	m.restoring.Store(false)
	if err != nil {
		m.log.Warn("restore failed", slog.Int("entry", target), slog.Any("err", err))
		return false
	}

	m.mu.Lock()
	m.pos = target
	m.mu.Unlock()
	return true
}

// Reset discards the log and captures the current canvas as its only entry.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.pos = -1
	m.totalBytes = 0
	m.mu.Unlock()
	m.Snapshot()
}

// Restoring reports whether an undo or redo is in progress.
func (m *Manager) Restoring() bool { return m.restoring.Load() }

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos >= 0 && m.pos < len(m.entries)-1
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Position returns the index of the entry matching the canvas.
func (m *Manager) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Current returns a copy of the entry at the current position.
func (m *Manager) Current() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos < 0 {
		return Entry{}, false
	}
	e := m.entries[m.pos]
	e.Blob = append([]byte(nil), e.Blob...)
	return e, true
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, entries, position int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.entries), m.pos
}

// Close stops listening to the canvas.
func (m *Manager) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// enforceCapsLocked prunes the oldest entries. The current entry is always kept.
func (m *Manager) enforceCapsLocked() {
	drop := 0
	if m.cfg.MaxEntries > 0 && len(m.entries) > m.cfg.MaxEntries {
		drop = len(m.entries) - m.cfg.MaxEntries
	}
	bytes := m.totalBytes
	for i := 0; i < drop; i++ {
		bytes -= len(m.entries[i].Blob)
	}
	for bytes > m.cfg.MaxBytes && drop < len(m.entries) {
		bytes -= len(m.entries[drop].Blob)
		drop++
	}
	if drop > m.pos {
		drop = m.pos
	}
	if drop <= 0 {
		return
	}
	for _, e := range m.entries[:drop] {
		m.totalBytes -= len(e.Blob)
	}
	m.entries = append([]Entry(nil), m.entries[drop:]...)
	m.pos -= drop
}
