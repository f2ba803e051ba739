/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.NRGBA
	}{
		{"#000000", color.NRGBA{0, 0, 0, 255}},
		{"#FFBE0B", color.NRGBA{0xff, 0xbe, 0x0b, 255}},
		{"#fff", color.NRGBA{255, 255, 255, 255}},
		{"#3A86FF80", color.NRGBA{0x3a, 0x86, 0xff, 0x80}},
		{" White ", color.NRGBA{255, 255, 255, 255}},
		{"transparent", color.NRGBA{}},
	}
	for _, c := range cases {
		got, err := ParseColor(c.in)
		if err != nil || got != c.want {
			t.Fatalf("ParseColor(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
	for _, bad := range []string{"", "#12", "#gggggg", "rgb(1,2,3)", "#1234567"} {
		if _, err := ParseColor(bad); !errors.Is(err, ErrInvalidColor) {
			t.Fatalf("ParseColor(%q): expected ErrInvalidColor, got %v", bad, err)
		}
	}
}
