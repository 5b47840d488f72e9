/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout is the explicit layout model used in place of live box
// measurement: every element resolves to a parent-relative frame (from its
// left/top/width/height props) and an absolute document frame.
package layout

import (
	"math"
	"strings"
	"unicode/utf8"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// Intrinsic sizes used when an element carries no explicit width/height.
const (
	BoxFallback     = 100.0
	ImageFallbackW  = 150.0
	ImageFallbackH  = 100.0
	DefaultFontSize = 16.0
	charAdvance     = 0.6
	lineHeight      = 1.2
)

// Node is one element's resolved geometry.
type Node struct {
	ID     string
	Local  vector.Rect // relative to the parent's content origin
	Frame  vector.Rect // absolute document coordinates
	Depth  int         // 0 for the page root
	Hidden bool        // element or an ancestor is hidden
}

// Model holds resolved frames for one page in tree (paint) order.
type Model struct {
	PageID string
	nodes  map[string]*Node
	order  []string
	doc    *domain.Document
}

// Compute resolves every element reachable from the page root. Props are
// evaluated at the given canvas width so active @media blocks are honoured.
func Compute(doc *domain.Document, pageID string, canvasWidth float64) *Model {
	m := &Model{PageID: pageID, nodes: map[string]*Node{}, doc: doc}
	page, ok := doc.Page(pageID)
	if !ok {
		return m
	}
	root, ok := doc.Elements[page.RootElementID]
	if !ok {
		return m
	}
	rootFrame := vector.R(0, 0, doc.Canvas.Width, doc.Canvas.Height)
	m.add(root, rootFrame, rootFrame, 0, !root.IsVisible)
	m.walk(root, rootFrame, 1, !root.IsVisible, canvasWidth)
	return m
}

func (m *Model) add(el *domain.Element, local, frame vector.Rect, depth int, hidden bool) {
	m.nodes[el.ElementID] = &Node{ID: el.ElementID, Local: local, Frame: frame, Depth: depth, Hidden: hidden}
	m.order = append(m.order, el.ElementID)
}

func (m *Model) walk(parent *domain.Element, parentFrame vector.Rect, depth int, hidden bool, width float64) {
	for _, cid := range parent.Children {
		c, ok := m.doc.Elements[cid]
		if !ok {
			continue
		}
		if _, seen := m.nodes[cid]; seen {
			continue
		}
		local := LocalRect(c, width)
		frame := local.Translate(parentFrame.Min())
		h := hidden || !c.IsVisible
		m.add(c, local, frame, depth, h)
		m.walk(c, frame, depth+1, h, width)
	}
}

// Node returns the resolved geometry of an element.
func (m *Model) Node(id string) (*Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// Frame returns the absolute document frame of an element.
func (m *Model) Frame(id string) (vector.Rect, bool) {
	if n, ok := m.nodes[id]; ok {
		return n.Frame, true
	}
	return vector.Rect{}, false
}

// Order returns element ids in paint order (parents before children,
// siblings in children order).
func (m *Model) Order() []string { return m.order }

// SubtreeFrames returns the frames of id and all its resolved descendants.
func (m *Model) SubtreeFrames(id string) []vector.Rect {
	var out []vector.Rect
	var visit func(string)
	visit = func(cur string) {
		n, ok := m.nodes[cur]
		if !ok {
			return
		}
		out = append(out, n.Frame)
		if el, ok := m.doc.Elements[cur]; ok {
			for _, c := range el.Children {
				visit(c)
			}
		}
	}
	visit(id)
	return out
}

// SelectionBounds returns the union of the frames of ids.
func (m *Model) SelectionBounds(ids []string) (vector.Rect, bool) {
	var rs []vector.Rect
	for _, id := range ids {
		if f, ok := m.Frame(id); ok {
			rs = append(rs, f)
		}
	}
	return vector.UnionAll(rs)
}

// LocalRect resolves an element's parent-relative frame from its props.
func LocalRect(el *domain.Element, canvasWidth float64) vector.Rect {
	p := el.Props.Effective(canvasWidth)
	x, _ := domain.PropPx(p["left"])
	y, _ := domain.PropPx(p["top"])
	w, okW := domain.PropPx(p["width"])
	h, okH := domain.PropPx(p["height"])
	if !okW || !okH {
		iw, ih := Intrinsic(el, p)
		if !okW {
			w = iw
		}
		if !okH {
			h = ih
		}
	}
	return vector.R(x, y, w, h)
}

// Intrinsic estimates an element's content size when it is not set
// explicitly. Text uses a fixed advance per character and line.
func Intrinsic(el *domain.Element, p map[string]any) (float64, float64) {
	switch el.Type {
	case domain.TypeText:
		fs, ok := domain.PropPx(p["fontSize"])
		if !ok || fs <= 0 {
			fs = DefaultFontSize
		}
		text, _ := el.Props["text"].(string)
		lines := strings.Split(text, "\n")
		longest := 0
		for _, l := range lines {
			longest = max(longest, utf8.RuneCountInString(l))
		}
		w := math.Max(float64(longest)*fs*charAdvance, fs)
		return w, float64(len(lines)) * fs * lineHeight
	case domain.TypeImage:
		return ImageFallbackW, ImageFallbackH
	default:
		return BoxFallback, BoxFallback
	}
}
