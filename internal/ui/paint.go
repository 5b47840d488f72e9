/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"image/color"

	"pagecraft/internal/domain"
	"pagecraft/internal/export"
	"pagecraft/internal/layers"
	"pagecraft/internal/layout"
	"pagecraft/internal/vector"
)

// Shape is one element as the canvas paints it, in screen pixels.
type Shape struct {
	ID       string
	Type     domain.ElementType
	Rect     vector.Rect
	Fill     color.RGBA
	HasFill  bool
	Text     string
	FontSize float32
	Color    color.RGBA
	Selected bool
	Locked   bool
}

// Scene is a page reduced to paint instructions.
type Scene struct {
	Page       vector.Rect
	Background color.RGBA
	Shapes     []Shape
	// Breakpoints are the screen x positions of the breakpoint guides.
	Breakpoints []float64
}

// BuildScene lays out the page in view. Hidden elements and elements
// dimmed by an entered container are left out.
func BuildScene(doc *domain.Document, sel domain.Selection, pageID string, view vector.Viewport) Scene {
	width := doc.Canvas.Width
	sc := Scene{
		Page:       view.RectToScreen(vector.R(0, 0, width, doc.Canvas.Height)),
		Background: color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
	if c, ok := export.ParseColor(doc.Canvas.BackgroundColor); ok {
		sc.Background = c
	}
	for _, bp := range doc.Canvas.Breakpoints {
		if bp.Width > 0 && bp.Width < width {
			sc.Breakpoints = append(sc.Breakpoints, view.ToScreen(vector.Pt{X: bp.Width}).X)
		}
	}
	page, ok := doc.Page(pageID)
	if !ok {
		return sc
	}
	active := sel.ActiveContainerID
	focused := map[string]bool{page.RootElementID: active == ""}
	m := layout.Compute(doc, page.PageID, width)
	for _, id := range m.Order() {
		n, _ := m.Node(id)
		el, ok := doc.Elements[id]
		if !ok || n.Depth == 0 {
			continue
		}
		f := focused[el.ParentID] || id == active
		focused[id] = f
		if n.Hidden {
			continue
		}
		if active != "" && !f && !doc.IsAncestor(id, active) {
			continue
		}
		p := el.Props.Effective(width)
		sh := Shape{
			ID:       id,
			Type:     el.Type,
			Rect:     view.RectToScreen(n.Frame),
			Color:    color.RGBA{A: 255},
			Selected: sel.Has(id),
			Locked:   el.IsLocked,
		}
		if c, ok := export.ParseColor(fmt.Sprint(p["backgroundColor"])); ok {
			sh.Fill, sh.HasFill = c, true
		}
		if el.Type == domain.TypeText {
			sh.Text, _ = p["text"].(string)
			fs := float64(layout.DefaultFontSize)
			if v, ok := domain.PropPx(p["fontSize"]); ok && v > 0 {
				fs = v
			}
			sh.FontSize = float32(fs * zoomOf(view))
			if c, ok := export.ParseColor(fmt.Sprint(p["color"])); ok {
				sh.Color = c
			}
		}
		sc.Shapes = append(sc.Shapes, sh)
	}
	return sc
}

func zoomOf(v vector.Viewport) float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// rowAt returns the layer row under list coordinate y.
func rowAt(rows []layers.Row, y, rowHeight float64) (layers.Row, bool) {
	for _, r := range rows {
		if y >= r.Top && y < r.Top+rowHeight {
			return r, true
		}
	}
	return layers.Row{}, false
}
