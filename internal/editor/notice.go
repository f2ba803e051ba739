/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"sync"
	"time"
)

// Level of a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// DefaultMaxNotices bounds the notice board when Options.MaxNotices is unset.
const DefaultMaxNotices = 32

// Notice is a transient user-visible message.
type Notice struct {
	Seq         uint64    `json:"seq"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Level       Level     `json:"level"`
	At          time.Time `json:"at"`
}

type noticeBoard struct {
	mu        sync.Mutex
	max       int
	seq       uint64
	items     []Notice
	observers map[int]func(Notice)
	nextObs   int
}

func (e *Editor) notify(n Notice) {
	b := &e.notices
	b.mu.Lock()
	b.seq++
	n.Seq = b.seq
	if n.At.IsZero() {
		n.At = e.now()
	}
	limit := b.max
	if limit <= 0 {
		limit = DefaultMaxNotices
	}
	b.items = append(b.items, n)
	if len(b.items) > limit {
		b.items = append([]Notice(nil), b.items[len(b.items)-limit:]...)
	}
	obs := make([]func(Notice), 0, len(b.observers))
	for _, fn := range b.observers {
		obs = append(obs, fn)
	}
	b.mu.Unlock()
	for _, fn := range obs {
		fn(n)
	}
}

// Notices returns the notices posted after seq, oldest first.
func (e *Editor) Notices(after uint64) []Notice {
	b := &e.notices
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Notice
	for _, n := range b.items {
		if n.Seq > after {
			out = append(out, n)
		}
	}
	return out
}

// ObserveNotices calls fn for every new notice. fn runs on the posting
// goroutine and must not block.
func (e *Editor) ObserveNotices(fn func(Notice)) (cancel func()) {
	b := &e.notices
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.observers == nil {
		b.observers = map[int]func(Notice){}
	}
	id := b.nextObs
	b.nextObs++
	b.observers[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}
