/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package templates

import "positron/internal/scene"

// Background returns the named background preset sized for a w×h canvas.
// Gradients run corner to corner. Unknown names fall back to white, as the
// sidebar's default case does; ok reports whether the name was known.
func Background(name string, w, h float64) (bg scene.Background, ok bool) {
	grad := func(from, to string) scene.Background {
		return scene.Background{
			Color: scene.DefaultBackground,
			Gradient: &scene.Gradient{
				X2: w, Y2: h,
				Stops: []scene.GradientStop{{Offset: 0, Color: from}, {Offset: 1, Color: to}},
			},
		}
	}
	switch name {
	case "blue":
		return grad(navy, blueLight), true
	case "yellow":
		return grad(yellow, orange), true
	case "blue-yellow":
		return grad(blue, yellow), true
	case "dark":
		return scene.Background{Color: dark}, true
	case "white":
		return scene.Background{Color: scene.DefaultBackground}, true
	}
	return scene.Background{Color: scene.DefaultBackground}, false
}

// BackgroundNames lists the background presets.
func BackgroundNames() []string {
	return []string{"blue", "yellow", "blue-yellow", "dark", "white"}
}
