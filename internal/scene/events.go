/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// EventKind identifies a scene notification.
type EventKind int

const (
	ObjectAdded EventKind = iota + 1
	ObjectModified
	ObjectRemoved
	SelectionAcquired
	SelectionChanged
	SelectionReleased
	Committed
	Loaded
	Rendered
)

func (k EventKind) String() string {
	switch k {
	case ObjectAdded:
		return "object:added"
	case ObjectModified:
		return "object:modified"
	case ObjectRemoved:
		return "object:removed"
	case SelectionAcquired:
		return "selection:created"
	case SelectionChanged:
		return "selection:updated"
	case SelectionReleased:
		return "selection:cleared"
	case Committed:
		return "committed"
	case Loaded:
		return "loaded"
	case Rendered:
		return "rendered"
	}
	return "unknown"
}

// Event is delivered synchronously to every listener. Object is a copy of
// the affected object, nil for scene-wide events.
type Event struct {
	Kind   EventKind
	Object *Object
}

// Listener receives scene events. Listeners may call back into the Scene.
type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Subscribe registers l and returns a function that removes it.
func (s *Scene) Subscribe(l Listener) (unsubscribe func()) {
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: l})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Scene) emit(kind EventKind, o *Object) {
	ev := Event{Kind: kind}
	if o != nil {
		cp := *o
		ev.Object = &cp
	}
	// listeners may subscribe or unsubscribe while we iterate
	subs := append([]subscription(nil), s.subs...)
	for _, sub := range subs {
		sub.fn(ev)
	}
}
