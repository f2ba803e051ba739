/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is a user-supplied file. Open is called once per ingestion.
type File struct {
	Name        string
	ContentType string // declared type; may be empty
	Open        func() (io.ReadCloser, error)
}

// FileFromPath opens a file on disk. The content type is derived from the
// extension.
func FileFromPath(path string) File {
	return File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FileFromBytes wraps an in-memory payload such as a multipart upload.
func FileFromBytes(name, contentType string, b []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil },
	}
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// read loads the whole file, refusing anything above limit.
func read(ctx context.Context, f File, limit int64) ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("%w: %s has no content", ErrDecode, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(ctxReader{ctx: ctx, r: rc}, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, f.Name, limit)
	}
	return b, nil
}

// contentType settles the media type: the declared one unless it is missing
// or generic, then the extension, then a sniff of the bytes.
func contentType(f File, data []byte) string {
	ct := strings.TrimSpace(f.ContentType)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
