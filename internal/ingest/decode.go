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
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"positron/internal/scene"
)

// decodedImage is an image that passed validation.
type decodedImage struct {
	Width, Height int
	DataURI       string
}

func decodeImage(ct string, data []byte) (decodedImage, error) {
	if !strings.HasPrefix(ct, "image/") {
		return decodedImage{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ct)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return decodedImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return decodedImage{}, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	return decodedImage{
		Width:   b.Dx(),
		Height:  b.Dy(),
		DataURI: scene.DataURI(ct, data),
	}, nil
}

// FitScale returns the uniform scale that keeps a w×h image within ratio of
// the canvas: width is constrained first, then height.
func FitScale(w, h, canvasW, canvasH, ratio float64) float64 {
	scale := 1.0
	if w > canvasW*ratio {
		scale = canvasW * ratio / w
	}
	if h*scale > canvasH*ratio {
		scale = canvasH * ratio / h
	}
	return scale
}

func (p *Pipeline) imageObject(img decodedImage, canvasW, canvasH float64) scene.Object {
	s := FitScale(float64(img.Width), float64(img.Height), canvasW, canvasH, p.cfg.FitRatio)
	return scene.Object{
		Type:    scene.KindImage,
		Left:    p.cfg.ImageLeft,
		Top:     p.cfg.ImageTop,
		Width:   float64(img.Width),
		Height:  float64(img.Height),
		ScaleX:  s,
		ScaleY:  s,
		Opacity: 1,
		Src:     img.DataURI,
	}
}

func backgroundImage(img decodedImage, canvasW, canvasH float64) scene.BackgroundImage {
	return scene.BackgroundImage{
		Src:     img.DataURI,
		Width:   float64(img.Width),
		Height:  float64(img.Height),
		ScaleX:  canvasW / float64(img.Width),
		ScaleY:  canvasH / float64(img.Height),
		Opacity: 1,
	}
}
