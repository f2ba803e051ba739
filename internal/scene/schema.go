/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

var (
	// ErrInvalidDocument is returned for bytes that are not a well-formed Document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrNotFound is returned when an object id does not resolve.
	ErrNotFound = errors.New("object not found")
	// ErrLocked is returned for interactive transforms of a locked object.
	ErrLocked = errors.New("object is locked")
	// ErrUnknownKind is returned when adding an object of an unknown type.
	ErrUnknownKind = errors.New("unknown object kind")
)

//go:embed document.schema.json
var documentSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Schema returns the raw JSON schema that documents are validated against.
func Schema() []byte { return append([]byte(nil), documentSchema...) }

// Validate checks b against the document schema.
func Validate(b []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("load document schema: %w", schemaErr)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}
