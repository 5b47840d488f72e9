/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/vector"
)

// newPage appends a page with a fresh root Box to d.
func newPage(d *domain.Document, name string) domain.Page {
	return insertPage(d, NewPage{PageID: domain.NewID(), RootElementID: domain.NewID(), Name: name})
}

func insertPage(d *domain.Document, np NewPage) domain.Page {
	root := &domain.Element{
		ElementID: np.RootElementID,
		Type:      domain.TypeBox,
		Props: domain.Props{
			"position": "relative",
			"width":    domain.FormatPx(d.Canvas.Width),
			"height":   domain.FormatPx(d.Canvas.Height),
		},
		Children:   []string{},
		IsVisible:  true,
		IsExpanded: true,
	}
	d.Elements[root.ElementID] = root
	p := domain.Page{PageID: np.PageID, Name: np.Name, RootElementID: root.ElementID}
	d.Pages = append(d.Pages, p)
	return p
}

// AddPage creates a page with its own root Box and makes it active. A blank
// name becomes "Page N".
func (s *Store) AddPage(name string) domain.Page {
	np := NewPage{PageID: domain.NewID(), RootElementID: domain.NewID(), Name: strings.TrimSpace(name)}
	if np.Name == "" {
		s.mu.RLock()
		np.Name = fmt.Sprintf("Page %d", len(s.doc.Pages)+1)
		s.mu.RUnlock()
	}
	s.do(ActAddPage, np)
	return domain.Page{PageID: np.PageID, Name: np.Name, RootElementID: np.RootElementID}
}

func addPageLocked(d *domain.Document, sel *domain.Selection, np NewPage) Result {
	if np.PageID == "" || np.RootElementID == "" {
		return Result{Err: fmt.Errorf("add page: %w", ErrInvalidMove)}
	}
	if _, ok := d.Page(np.PageID); ok {
		return Result{Err: fmt.Errorf("add page %s: %w", np.PageID, ErrDuplicateID)}
	}
	if _, ok := d.Elements[np.RootElementID]; ok {
		return Result{Err: fmt.Errorf("add page root %s: %w", np.RootElementID, ErrDuplicateID)}
	}
	if np.Name == "" {
		np.Name = fmt.Sprintf("Page %d", len(d.Pages)+1)
	}
	p := insertPage(d, np)
	d.ActivePageID = p.PageID
	sel.SelectedIDs = nil
	sel.ActiveContainerID = ""
	return Result{Changed: true, IDs: []string{p.RootElementID}}
}

// RenamePage sets a page's display name; blank names are ignored.
func (s *Store) RenamePage(pageID, name string) {
	s.do(ActRenamePage, PageName{PageID: pageID, Name: name})
}

func renamePageLocked(d *domain.Document, p PageName) bool {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return false
	}
	for i := range d.Pages {
		if d.Pages[i].PageID == p.PageID && d.Pages[i].Name != name {
			d.Pages[i].Name = name
			return true
		}
	}
	return false
}

// DeletePage removes a page and its whole element tree. The last page
// cannot be deleted.
func (s *Store) DeletePage(pageID string) error {
	return s.do(ActDeletePage, PageRef{PageID: pageID}).Err
}

func deletePageLocked(d *domain.Document, sel *domain.Selection, pageID string) error {
	idx := -1
	for i, p := range d.Pages {
		if p.PageID == pageID {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if len(d.Pages) == 1 {
		return ErrLastPage
	}
	page := d.Pages[idx]
	for _, id := range deepSelection(d, []string{page.RootElementID}) {
		delete(d.Elements, id)
		sel.SelectedIDs = removeID(sel.SelectedIDs, id)
		if sel.ActiveContainerID == id {
			sel.ActiveContainerID = ""
		}
	}
	d.Pages = append(d.Pages[:idx], d.Pages[idx+1:]...)
	if d.ActivePageID == pageID {
		d.ActivePageID = d.Pages[0].PageID
		sel.SelectedIDs = nil
		sel.ActiveContainerID = ""
	}
	return nil
}

// SetActivePage switches pages, resetting selection and active container.
func (s *Store) SetActivePage(pageID string) {
	s.do(ActSetActivePage, PageRef{PageID: pageID})
}

func setActivePageLocked(d *domain.Document, sel *domain.Selection, pageID string) bool {
	if _, ok := d.Page(pageID); !ok || d.ActivePageID == pageID {
		return false
	}
	d.ActivePageID = pageID
	sel.SelectedIDs = nil
	sel.ActiveContainerID = ""
	return true
}

// SetZoom sets the zoom clamped to the configured range.
func (s *Store) SetZoom(z float64) {
	v := s.Viewport()
	v.Zoom = z
	s.SetViewport(v)
}

// SetScroll sets the pan offset in screen pixels.
func (s *Store) SetScroll(x, y float64) {
	v := s.Viewport()
	v.ScrollX, v.ScrollY = x, y
	s.SetViewport(v)
}

// SetViewport writes zoom and scroll in one mutation.
func (s *Store) SetViewport(v vector.Viewport) {
	s.do(ActSetViewport, v)
}

func (s *Store) setViewportLocked(d *domain.Document, v vector.Viewport) bool {
	z := vector.Clamp(v.Zoom, s.limits.MinZoom, s.limits.MaxZoom)
	c := &d.Canvas
	if c.Zoom == z && c.ScrollX == v.ScrollX && c.ScrollY == v.ScrollY {
		return false
	}
	c.Zoom, c.ScrollX, c.ScrollY = z, v.ScrollX, v.ScrollY
	return true
}

// Viewport returns the current zoom and scroll.
func (s *Store) Viewport() vector.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vector.Viewport{Zoom: s.doc.Canvas.Zoom, ScrollX: s.doc.Canvas.ScrollX, ScrollY: s.doc.Canvas.ScrollY}
}

// SetCanvasSize sets the authored document size; non-positive sizes are ignored.
func (s *Store) SetCanvasSize(w, h float64) {
	s.do(ActSetCanvasSize, Size{Width: w, Height: h})
}

func setCanvasSizeLocked(d *domain.Document, sz Size) bool {
	if sz.Width <= 0 || sz.Height <= 0 || (d.Canvas.Width == sz.Width && d.Canvas.Height == sz.Height) {
		return false
	}
	d.Canvas.Width, d.Canvas.Height = sz.Width, sz.Height
	return true
}

// SetBackground sets the canvas background color.
func (s *Store) SetBackground(color string) {
	s.do(ActSetBackground, Color{Color: color})
}

func setBackgroundLocked(d *domain.Document, color string) bool {
	color = strings.TrimSpace(color)
	if color == "" || d.Canvas.BackgroundColor == color {
		return false
	}
	d.Canvas.BackgroundColor = color
	return true
}

// AddBreakpoint adds or replaces a breakpoint by name. Presets without a
// name or a positive width are ignored.
func (s *Store) AddBreakpoint(bp domain.Breakpoint) {
	s.do(ActAddBreakpoint, bp)
}

func addBreakpointLocked(d *domain.Document, bp domain.Breakpoint) bool {
	bp.Name = strings.TrimSpace(bp.Name)
	if bp.Name == "" || bp.Width <= 0 {
		return false
	}
	for i := range d.Canvas.Breakpoints {
		if d.Canvas.Breakpoints[i].Name == bp.Name {
			if d.Canvas.Breakpoints[i] == bp {
				return false
			}
			d.Canvas.Breakpoints[i] = bp
			return true
		}
	}
	d.Canvas.Breakpoints = append(d.Canvas.Breakpoints, bp)
	return true
}

// RemoveBreakpoint drops a breakpoint by name.
func (s *Store) RemoveBreakpoint(name string) {
	s.do(ActRemoveBreakpoint, Name{Name: name})
}

func removeBreakpointLocked(d *domain.Document, name string) bool {
	for i, bp := range d.Canvas.Breakpoints {
		if bp.Name == name {
			d.Canvas.Breakpoints = append(d.Canvas.Breakpoints[:i], d.Canvas.Breakpoints[i+1:]...)
			return true
		}
	}
	return false
}

// AttachScript adds a script component to an element once.
func (s *Store) AttachScript(id, path string) {
	s.do(ActAttachScript, ScriptRef{ID: id, Path: path})
}

func attachScriptLocked(d *domain.Document, r ScriptRef) bool {
	el, ok := d.Elements[r.ID]
	if !ok || r.Path == "" || indexOf(el.Scripts, r.Path) >= 0 {
		return false
	}
	el.Scripts = append(el.Scripts, r.Path)
	return true
}

// DetachScript removes a script and its value overrides.
func (s *Store) DetachScript(id, path string) {
	s.do(ActDetachScript, ScriptRef{ID: id, Path: path})
}

func detachScriptLocked(d *domain.Document, r ScriptRef) bool {
	el, ok := d.Elements[r.ID]
	if !ok || indexOf(el.Scripts, r.Path) < 0 {
		return false
	}
	el.Scripts = removeID(el.Scripts, r.Path)
	delete(el.ScriptValues, r.Path)
	return true
}

// SetScriptValue overrides one script field; nil restores the default.
func (s *Store) SetScriptValue(id, path, field string, value any) {
	s.do(ActSetScriptValue, ScriptValue{ID: id, Path: path, Field: field, Value: value})
}

func setScriptValueLocked(d *domain.Document, v ScriptValue) bool {
	el, ok := d.Elements[v.ID]
	if !ok || indexOf(el.Scripts, v.Path) < 0 || v.Field == "" {
		return false
	}
	if v.Value == nil {
		if _, set := el.ScriptValues[v.Path][v.Field]; !set {
			return false
		}
		delete(el.ScriptValues[v.Path], v.Field)
		return true
	}
	if el.ScriptValues == nil {
		el.ScriptValues = map[string]map[string]any{}
	}
	if el.ScriptValues[v.Path] == nil {
		el.ScriptValues[v.Path] = map[string]any{}
	}
	el.ScriptValues[v.Path][v.Field] = v.Value
	return true
}

// AddFonts registers fonts, skipping ones already known by family and path.
func (s *Store) AddFonts(fonts []domain.Font) {
	s.do(ActAddFonts, Fonts{Fonts: fonts})
}

func addFontsLocked(d *domain.Document, fonts []domain.Font) bool {
	changed := false
	for _, f := range fonts {
		if strings.TrimSpace(f.FontFamily) == "" {
			continue
		}
		dup := false
		for _, have := range d.Fonts {
			if have.FontFamily == f.FontFamily && have.Path == f.Path {
				dup = true
				break
			}
		}
		if !dup {
			d.Fonts = append(d.Fonts, f)
			changed = true
		}
	}
	return changed
}

// RemoveFont drops every font entry of a family.
func (s *Store) RemoveFont(family string) {
	s.do(ActRemoveFont, Name{Name: family})
}

func removeFontLocked(d *domain.Document, family string) bool {
	out := d.Fonts[:0]
	for _, f := range d.Fonts {
		if f.FontFamily != family {
			out = append(out, f)
		}
	}
	changed := len(out) != len(d.Fonts)
	d.Fonts = out
	return changed
}
