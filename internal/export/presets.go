/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	applog "positron/internal/log"
	"positron/internal/scene"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by BatchExport.
const (
	FormatPNG  = "png"
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// BatchOptions controls a multi-format export of one document.
//
// Outputs land in OutDir/<preset>/. PNG and PDF use DefaultPNGName and
// DefaultPDFName, JSON uses JSONFileName.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // empty means preset defaults
	Scale   float64  // PNG scale; 0 means preset default
	OutDir  string
	Now     func() time.Time
}

// BatchExport writes d in every requested format and returns the written
// paths in format order.
func BatchExport(d scene.Document, opt BatchOptions) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "batch")
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	norm := make([]string, 0, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case FormatPNG, FormatJSON, FormatPDF:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
		if !slices.Contains(norm, f) {
			norm = append(norm, f)
		}
	}
	preset := opt.Preset
	if preset == "" {
		preset = PresetWeb
	}
	dir := opt.OutDir
	if dir == "" {
		dir = "exports"
	}
	dir = filepath.Join(dir, string(preset))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(preset)
	}

	var out []string
	for _, f := range norm {
		var path string
		var err error
		switch f {
		case FormatPNG:
			path = filepath.Join(dir, DefaultPNGName)
			err = SavePNG(path, d, PNGOptions{Scale: scale})
		case FormatPDF:
			path = filepath.Join(dir, DefaultPDFName)
			err = SavePDF(path, d)
		case FormatJSON:
			var blob []byte
			if blob, err = d.Marshal(); err == nil {
				path, err = SaveJSON(dir, blob, now())
			}
		}
		if err != nil {
			return out, fmt.Errorf("export %s: %w", f, err)
		}
		l.Info("exported", "format", f, "path", path)
		out = append(out, path)
	}
	return out, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetPrint:
		return []string{FormatPDF, FormatPNG}
	default:
		return []string{FormatPNG, FormatJSON}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetPrint {
		return 2
	}
	return 1
}
