/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"math"

	"positron/internal/scene"
	"positron/internal/templates"
)

// Bounds of the background image sliders, in percent.
const (
	MinBackgroundScale = 50
	MaxBackgroundScale = 150
)

// BackgroundState is the sidebar's view of the background.
type BackgroundState struct {
	Color    string `json:"color"`
	Gradient bool   `json:"gradient"`
	Image    bool   `json:"image"`
	Opacity  int    `json:"opacity"` // percent, image only
	Scale    int    `json:"scale"`   // percent of the canvas fit, image only
}

func (e *Editor) backgroundStateLocked() BackgroundState {
	bg := e.sc.Background()
	st := BackgroundState{Color: bg.Color, Gradient: bg.Gradient != nil}
	if im := bg.Image; im != nil {
		st.Image = true
		st.Opacity = int(math.Round(im.Opacity * 100))
		st.Scale = 100
		w, _ := e.sc.Dimensions()
		if im.Width > 0 && w > 0 {
			st.Scale = int(math.Round(im.ScaleX / (w / im.Width) * 100))
		}
	}
	return st
}

// Background reports the current background.
func (e *Editor) Background() BackgroundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backgroundStateLocked()
}

// ApplyBackground switches to a background preset, dropping any background
// image. Unknown names fall back to white.
func (e *Editor) ApplyBackground(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, h := e.sc.Dimensions()
	bg, ok := templates.Background(name, w, h)
	if !ok {
		e.log.Warn("unknown background preset", "name", name)
	}
	e.setBackgroundLocked(bg)
}

// SetBackgroundOpacity sets the background image opacity in percent. It
// reports false when there is no background image.
func (e *Editor) SetBackgroundOpacity(percent int) (bool, error) {
	if percent < 0 || percent > 100 {
		return false, fmt.Errorf("opacity %d out of range 0..100", percent)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	bg := e.sc.Background()
	if bg.Image == nil {
		return false, nil
	}
	bg.Image.Opacity = float64(percent) / 100
	e.setBackgroundLocked(bg)
	return true, nil
}

// SetBackgroundScale scales the background image relative to its
// canvas-filling size.
func (e *Editor) SetBackgroundScale(percent int) (bool, error) {
	if percent < MinBackgroundScale || percent > MaxBackgroundScale {
		return false, fmt.Errorf("scale %d out of range %d..%d", percent, MinBackgroundScale, MaxBackgroundScale)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	bg := e.sc.Background()
	im := bg.Image
	if im == nil || im.Width <= 0 || im.Height <= 0 {
		return false, nil
	}
	w, h := e.sc.Dimensions()
	f := float64(percent) / 100
	im.ScaleX = w / im.Width * f
	im.ScaleY = h / im.Height * f
	e.setBackgroundLocked(bg)
	return true, nil
}

// RemoveBackground resets to plain white.
func (e *Editor) RemoveBackground() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBackgroundLocked(scene.Background{Color: scene.DefaultBackground})
}

func (e *Editor) setBackgroundLocked(bg scene.Background) {
	e.sc.SetBackground(bg)
	e.sc.Render()
	e.sc.Commit()
}
