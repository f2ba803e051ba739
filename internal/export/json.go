/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"positron/internal/storage"
)

// JSONFileName is the download name for a document exported at t.
func JSONFileName(t time.Time) string {
	return "positron-design-" + t.UTC().Format("2006-01-02T15-04-05") + ".json"
}

// SaveJSON writes the serialized document blob into dir under the name
// JSONFileName(now) and returns the full path.
func SaveJSON(dir string, blob []byte, now time.Time) (string, error) {
	if len(blob) == 0 {
		return "", fmt.Errorf("empty document")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, JSONFileName(now))
	if err := storage.WriteFileAtomic(path, blob); err != nil {
		return "", err
	}
	return path, nil
}
