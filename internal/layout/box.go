/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"strings"

	"pagecraft/internal/domain"
)

// Edges holds per-side pixel widths (top, right, bottom, left).
type Edges struct{ Top, Right, Bottom, Left float64 }

// Horizontal returns Left+Right.
func (e Edges) Horizontal() float64 { return e.Left + e.Right }

// Vertical returns Top+Bottom.
func (e Edges) Vertical() float64 { return e.Top + e.Bottom }

// Padding resolves the padding shorthand and its longhands.
func Padding(p map[string]any) Edges {
	e := shorthand(p["padding"])
	longhand(p, "paddingTop", &e.Top)
	longhand(p, "paddingRight", &e.Right)
	longhand(p, "paddingBottom", &e.Bottom)
	longhand(p, "paddingLeft", &e.Left)
	return e
}

// Border resolves border widths from border, borderWidth and per-side
// longhands. Only pixel widths are understood.
func Border(p map[string]any) Edges {
	var e Edges
	if w, ok := firstPx(p["border"]); ok {
		e = Edges{w, w, w, w}
	}
	if v, ok := p["borderWidth"]; ok {
		e = shorthand(v)
	}
	for side, dst := range map[string]*float64{"Top": &e.Top, "Right": &e.Right, "Bottom": &e.Bottom, "Left": &e.Left} {
		if w, ok := firstPx(p["border"+side]); ok {
			*dst = w
		}
		longhand(p, "border"+side+"Width", dst)
	}
	return e
}

// MinSize is the smallest frame that still shows padding and border.
func MinSize(el *domain.Element, canvasWidth float64) (float64, float64) {
	p := el.Props.Effective(canvasWidth)
	pad, bor := Padding(p), Border(p)
	return pad.Horizontal() + bor.Horizontal(), pad.Vertical() + bor.Vertical()
}

// shorthand expands a 1-4 value CSS box shorthand.
func shorthand(v any) Edges {
	if f, ok := domain.PropPx(v); ok {
		return Edges{f, f, f, f}
	}
	s, _ := v.(string)
	parts := strings.Fields(s)
	vals := make([]float64, 0, 4)
	for _, part := range parts {
		f, ok := domain.PropPx(part)
		if !ok {
			f = 0
		}
		vals = append(vals, f)
	}
	switch len(vals) {
	case 1:
		return Edges{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		return Edges{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		return Edges{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		return Edges{vals[0], vals[1], vals[2], vals[3]}
	}
	return Edges{}
}

func longhand(p map[string]any, key string, dst *float64) {
	if f, ok := domain.PropPx(p[key]); ok {
		*dst = f
	}
}

// firstPx returns the first pixel token of a value like "2px solid red".
func firstPx(v any) (float64, bool) {
	if f, ok := domain.PropPx(v); ok {
		return f, true
	}
	s, _ := v.(string)
	for _, part := range strings.Fields(s) {
		if strings.HasSuffix(part, "px") {
			return domain.PropPx(part)
		}
	}
	return 0, false
}
