/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the scene graph data model. The document serializes to a
// human-readable JSON file (page.json) and is also the initial-state snapshot
// handed to secondary windows.

// ElementType is the node kind. It only changes rendering and default props,
// never the tree structure.
type ElementType string

const (
	TypeBox   ElementType = "box"
	TypeText  ElementType = "text"
	TypeImage ElementType = "image"
)

// IsContainer reports whether elements of this type may own children.
func (t ElementType) IsContainer() bool { return t == TypeBox }

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case TypeBox, TypeText, TypeImage:
		return true
	}
	return false
}

// Element is a node in the scene tree.
type Element struct {
	ElementID    string                    `json:"elementId"`
	ID           string                    `json:"id,omitempty"`
	Type         ElementType               `json:"type"`
	Props        Props                     `json:"props"`
	Children     []string                  `json:"children"`
	ParentID     string                    `json:"parentId,omitempty"`
	Scripts      []string                  `json:"scripts,omitempty"`
	ScriptValues map[string]map[string]any `json:"scriptValues,omitempty"`
	ClassName    string                    `json:"className,omitempty"`
	IsVisible    bool                      `json:"isVisible"`
	IsLocked     bool                      `json:"isLocked"`
	IsExpanded   bool                      `json:"isExpanded"`
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	c := e
	c.Props = e.Props.Clone()
	c.Children = append([]string(nil), e.Children...)
	c.Scripts = append([]string(nil), e.Scripts...)
	if e.ScriptValues != nil {
		c.ScriptValues = make(map[string]map[string]any, len(e.ScriptValues))
		for k, v := range e.ScriptValues {
			c.ScriptValues[k] = Props(v).Clone()
		}
	}
	return c
}

// Page points to a distinct root element subtree.
type Page struct {
	PageID        string `json:"pageId"`
	Name          string `json:"name"`
	RootElementID string `json:"rootElementId"`
}

// Breakpoint is a named viewport preset. Width doubles as the source of
// "@media (max-width: Npx)" variant keys.
type Breakpoint struct {
	Name   string  `json:"name" yaml:"name" toml:"name"`
	Width  float64 `json:"width" yaml:"width" toml:"width"`
	Height float64 `json:"height" yaml:"height" toml:"height"`
}

// MediaKey returns the variant key targeting viewports up to this width.
func (b Breakpoint) MediaKey() string {
	return "@media (max-width: " + FormatPx(b.Width) + ")"
}

// CanvasSettings is the viewport model of the editor.
type CanvasSettings struct {
	Width           float64      `json:"width"`
	Height          float64      `json:"height"`
	BackgroundColor string       `json:"backgroundColor"`
	Zoom            float64      `json:"zoom"`
	ScrollX         float64      `json:"scrollX"`
	ScrollY         float64      `json:"scrollY"`
	Breakpoints     []Breakpoint `json:"breakpoints,omitempty"`
}

// Font describes a font resource available to pages. Local fonts carry a
// path below the project's fonts directory, CDN fonts only a family.
type Font struct {
	FileName   string `json:"fileName,omitempty"`
	FontFamily string `json:"fontFamily"`
	Path       string `json:"path,omitempty"`
	Format     string `json:"format,omitempty"`
	Source     string `json:"source,omitempty"` // "local" or a stylesheet URL
}

// Document is the persisted state of a project: element map, pages, canvas
// settings and fonts.
type Document struct {
	Elements     map[string]*Element `json:"elements"`
	Pages        []Page              `json:"pages"`
	ActivePageID string              `json:"activePageId"`
	Canvas       CanvasSettings      `json:"canvas"`
	Fonts        []Font              `json:"fonts,omitempty"`
}

// Page returns the page with the given id.
func (d *Document) Page(id string) (Page, bool) {
	for _, p := range d.Pages {
		if p.PageID == id {
			return p, true
		}
	}
	return Page{}, false
}

// ActivePage returns the active page, falling back to the first page.
func (d *Document) ActivePage() (Page, bool) {
	if p, ok := d.Page(d.ActivePageID); ok {
		return p, true
	}
	if len(d.Pages) > 0 {
		return d.Pages[0], true
	}
	return Page{}, false
}

// IsRoot reports whether id is the root element of any page.
func (d *Document) IsRoot(id string) bool {
	for _, p := range d.Pages {
		if p.RootElementID == id {
			return true
		}
	}
	return false
}

// PageOf returns the page whose tree contains the element.
func (d *Document) PageOf(id string) (Page, bool) {
	cur := id
	for depth := 0; cur != "" && depth <= len(d.Elements); depth++ {
		for _, p := range d.Pages {
			if p.RootElementID == cur {
				return p, true
			}
		}
		el, ok := d.Elements[cur]
		if !ok {
			break
		}
		cur = el.ParentID
	}
	return Page{}, false
}

// IsAncestor reports whether anc is a strict ancestor of id.
func (d *Document) IsAncestor(anc, id string) bool {
	el, ok := d.Elements[id]
	if !ok {
		return false
	}
	cur := el.ParentID
	for depth := 0; cur != "" && depth <= len(d.Elements); depth++ {
		if cur == anc {
			return true
		}
		p, ok := d.Elements[cur]
		if !ok {
			return false
		}
		cur = p.ParentID
	}
	return false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() Document {
	c := Document{
		Elements:     make(map[string]*Element, len(d.Elements)),
		Pages:        append([]Page(nil), d.Pages...),
		ActivePageID: d.ActivePageID,
		Canvas:       d.Canvas,
		Fonts:        append([]Font(nil), d.Fonts...),
	}
	c.Canvas.Breakpoints = append([]Breakpoint(nil), d.Canvas.Breakpoints...)
	for id, el := range d.Elements {
		cp := el.Clone()
		c.Elements[id] = &cp
	}
	return c
}

// Selection is the editor's selection state. SelectedIDs is an ordered set;
// the first entry is the primary selection.
type Selection struct {
	SelectedIDs       []string  `json:"selectedIds"`
	ActiveContainerID string    `json:"activeContainerId,omitempty"`
	Clipboard         []Element `json:"clipboard,omitempty"`
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	for _, x := range s.SelectedIDs {
		if x == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares nothing with s.
func (s Selection) Clone() Selection {
	c := Selection{
		SelectedIDs:       append([]string(nil), s.SelectedIDs...),
		ActiveContainerID: s.ActiveContainerID,
	}
	for _, el := range s.Clipboard {
		c.Clipboard = append(c.Clipboard, el.Clone())
	}
	return c
}
