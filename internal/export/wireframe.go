/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes pages of a project to files outside the editor:
// a static HTML site, PDF layout proofs, PNG and SVG wireframes and a zip
// bundle. The wireframe exporters paint the explicit layout model, not a
// browser rendering.
package export

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/layout"
	"pagecraft/internal/vector"
)

// ErrUnknownPage is returned when a requested page id is not in the document.
var ErrUnknownPage = errors.New("export: unknown page")

// Style controls wireframe colours. Zero colours fall back to defaults.
type Style struct {
	IncludeGuides bool
	GuideColor    color.RGBA
	Stroke        color.RGBA
	StrokeWidth   float64
	ImageFill     color.RGBA
	// CanvasWidth evaluates @media variants at this width; 0 means the
	// document's canvas width.
	CanvasWidth float64
}

func (s Style) withDefaults() Style {
	if s.GuideColor == (color.RGBA{}) {
		s.GuideColor = color.RGBA{R: 255, A: 255}
	}
	if s.Stroke == (color.RGBA{}) {
		s.Stroke = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	}
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = 1
	}
	if s.ImageFill == (color.RGBA{}) {
		s.ImageFill = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	}
	return s
}

// shape is one visible element of a page in paint order.
type shape struct {
	ID        string
	Type      domain.ElementType
	Frame     vector.Rect
	Fill      color.RGBA
	HasFill   bool
	Text      string
	FontSize  float64
	TextColor color.RGBA
}

// wireframe is a page reduced to what the wireframe exporters paint.
type wireframe struct {
	Page       domain.Page
	Width      float64
	Height     float64
	Background color.RGBA
	Shapes     []shape
}

func buildWireframe(doc *domain.Document, page domain.Page, st Style) wireframe {
	width := st.CanvasWidth
	if width <= 0 {
		width = doc.Canvas.Width
	}
	wf := wireframe{Page: page, Width: width, Height: doc.Canvas.Height, Background: color.RGBA{255, 255, 255, 255}}
	if c, ok := ParseColor(doc.Canvas.BackgroundColor); ok {
		wf.Background = c
	}
	m := layout.Compute(doc, page.PageID, width)
	for _, id := range m.Order() {
		n, _ := m.Node(id)
		if n.Hidden || n.Depth == 0 {
			continue
		}
		el, ok := doc.Elements[id]
		if !ok {
			continue
		}
		p := el.Props.Effective(width)
		sh := shape{ID: id, Type: el.Type, Frame: n.Frame, TextColor: color.RGBA{A: 255}}
		if c, ok := ParseColor(fmt.Sprint(p["backgroundColor"])); ok {
			sh.Fill, sh.HasFill = c, true
		}
		if el.Type == domain.TypeText {
			sh.Text, _ = p["text"].(string)
			sh.FontSize = layout.DefaultFontSize
			if fs, ok := domain.PropPx(p["fontSize"]); ok && fs > 0 {
				sh.FontSize = fs
			}
			if c, ok := ParseColor(fmt.Sprint(p["color"])); ok {
				sh.TextColor = c
			}
		}
		wf.Shapes = append(wf.Shapes, sh)
	}
	return wf
}

// selectPages resolves page ids in document order; empty means all pages.
func selectPages(doc *domain.Document, ids []string) ([]domain.Page, error) {
	if len(ids) == 0 {
		return append([]domain.Page(nil), doc.Pages...), nil
	}
	out := make([]domain.Page, 0, len(ids))
	for _, id := range ids {
		p, ok := doc.Page(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPage, id)
		}
		out = append(out, p)
	}
	return out, nil
}

// pageFileName is the file stem of a page: its slugged name, or its id.
func pageFileName(p domain.Page, index int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(p.Name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = p.PageID
	}
	if index == 0 && slug == "home" {
		return "index"
	}
	return slug
}

var namedColors = map[string]color.RGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"yellow":      {255, 255, 0, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"transparent": {},
}

// ParseColor reads the CSS colour forms the editor writes: named colours,
// #rgb, #rrggbb, #rrggbbaa and rgb()/rgba(). Transparent parses but is
// reported as not ok, as is anything else.
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, c.A > 0
	}
	if strings.HasPrefix(s, "#") {
		h := s[1:]
		if len(h) == 3 || len(h) == 4 {
			var long strings.Builder
			for _, r := range h {
				long.WriteRune(r)
				long.WriteRune(r)
			}
			h = long.String()
		}
		if len(h) != 6 && len(h) != 8 {
			return color.RGBA{}, false
		}
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			return color.RGBA{}, false
		}
		if len(h) == 6 {
			return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, true
		}
		c := color.RGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}
		return c, c.A > 0
	}
	for _, fn := range []string{"rgba(", "rgb("} {
		if !strings.HasPrefix(s, fn) || !strings.HasSuffix(s, ")") {
			continue
		}
		parts := strings.Split(s[len(fn):len(s)-1], ",")
		if len(parts) < 3 || len(parts) > 4 {
			return color.RGBA{}, false
		}
		var ch [4]float64
		ch[3] = 1
		for i, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return color.RGBA{}, false
			}
			ch[i] = f
		}
		c := color.RGBA{clamp8(ch[0]), clamp8(ch[1]), clamp8(ch[2]), clamp8(ch[3] * 255)}
		return c, c.A > 0
	}
	return color.RGBA{}, false
}

func clamp8(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}
