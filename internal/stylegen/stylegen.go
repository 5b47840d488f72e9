/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stylegen projects a document into one stylesheet, either for the
// editor canvas (media queries simulated against the canvas width, pointer
// events gated to the active container) or for preview (real media queries,
// everything interactive).
package stylegen

import (
	"fmt"
	"math"
	"strings"

	"pagecraft/internal/domain"
	"pagecraft/internal/fonts"
	"pagecraft/internal/layout"
)

// Mode selects the rendering context.
type Mode string

const (
	ModeEdit    Mode = "edit"
	ModePreview Mode = "preview"
)

const (
	// maxDepth bounds selector path construction.
	maxDepth = 20
	// ActiveZIndex lifts the entered container above its siblings.
	ActiveZIndex = 1000
	// DefaultMinSize keeps empty boxes hittable.
	DefaultMinSize = 4.0
)

// Options is the addressing context of one projection.
type Options struct {
	Mode              Mode
	ActiveContainerID string
	CanvasWidth       float64
	// PageID defaults to the document's active page.
	PageID string
	// MinSize is the floor for the synthetic min-width/min-height; 0 means
	// DefaultMinSize.
	MinSize float64
	// FontBase prefixes local font paths in @font-face rules.
	FontBase string
}

// Selector is the element's own selector: #id when a user id is set,
// otherwise its data-id attribute.
func Selector(el *domain.Element) string {
	if id := strings.TrimSpace(el.ID); id != "" {
		return "#" + Ident(id)
	}
	return fmt.Sprintf(`[data-id=%q]`, el.ElementID)
}

// PageSelector addresses a page's root node. Page ids are UUIDs and often
// start with a digit, so the id is always escaped.
func PageSelector(pageID string) string { return "#" + Ident(pageID) }

// Ident escapes s for use as a CSS identifier, following CSS.escape.
func Ident(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\%x `, r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, `\%x `, r)
		case i == 1 && r >= '0' && r <= '9' && s[0] == '-':
			fmt.Fprintf(&b, `\%x `, r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Path builds the descendant selector from the page down to id. It fails
// when the chain does not reach the page root within maxDepth steps.
func Path(doc *domain.Document, pageID, id string) (string, bool) {
	page, ok := doc.Page(pageID)
	if !ok {
		return "", false
	}
	var parts []string
	cur := id
	for depth := 0; ; depth++ {
		if depth > maxDepth {
			return "", false
		}
		if cur == page.RootElementID {
			break
		}
		el, ok := doc.Elements[cur]
		if !ok {
			return "", false
		}
		parts = append(parts, Selector(el))
		cur = el.ParentID
	}
	var b strings.Builder
	b.WriteString(PageSelector(pageID))
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte(' ')
		b.WriteString(parts[i])
	}
	return b.String(), true
}

// Resolve applies a variant key to its parent selector: & is replaced by the
// parent, keys without & are appended directly (":hover", ".active").
func Resolve(parent, key string) string {
	key = strings.TrimSpace(key)
	if strings.Contains(key, "&") {
		return strings.ReplaceAll(key, "&", parent)
	}
	return parent + key
}

// decl is one CSS declaration.
type decl struct{ name, value string }

// Generate returns the full stylesheet for the page named by opts.
func Generate(doc *domain.Document, opts Options) string {
	if opts.Mode == "" {
		opts.Mode = ModeEdit
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = doc.Canvas.Width
	}
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	page, ok := doc.Page(opts.PageID)
	if !ok {
		if page, ok = doc.ActivePage(); !ok {
			return ""
		}
	}
	root, ok := doc.Elements[page.RootElementID]
	if !ok {
		return ""
	}
	active := opts.ActiveContainerID
	if active == root.ElementID || opts.Mode == ModePreview {
		active = ""
	}
	if _, ok := doc.Elements[active]; !ok {
		active = ""
	}

	var w sheet
	if faces := fonts.FaceRules(doc.Fonts, opts.FontBase); faces != "" {
		w.b.WriteString(faces)
	}
	w.pageRule(doc, page, root, opts)

	seen := map[string]bool{root.ElementID: true}
	var visit func(el *domain.Element)
	visit = func(el *domain.Element) {
		for _, cid := range el.Children {
			c, ok := doc.Elements[cid]
			if !ok || seen[cid] {
				continue
			}
			seen[cid] = true
			w.element(doc, page, c, root.ElementID, active, opts)
			visit(c)
		}
	}
	visit(root)
	return w.b.String()
}

type sheet struct{ b strings.Builder }

func (w *sheet) rule(sel string, decls []decl, indent string) {
	if len(decls) == 0 {
		return
	}
	w.b.WriteString(indent + sel + " {\n")
	for _, d := range decls {
		w.b.WriteString(indent + "  " + d.name + ": " + d.value + ";\n")
	}
	w.b.WriteString(indent + "}\n")
}

func (w *sheet) pageRule(doc *domain.Document, page domain.Page, root *domain.Element, opts Options) {
	base, _ := root.Props.Split()
	if opts.Mode == ModeEdit {
		base = root.Props.Effective(opts.CanvasWidth)
	}
	base["position"] = "relative"
	base["overflow"] = "hidden"
	if doc.Canvas.Width > 0 {
		base["width"] = domain.FormatPx(doc.Canvas.Width)
	}
	if doc.Canvas.Height > 0 {
		base["minHeight"] = domain.FormatPx(doc.Canvas.Height)
		delete(base, "height")
	}
	if bg := strings.TrimSpace(doc.Canvas.BackgroundColor); bg != "" {
		if _, set := base["backgroundColor"]; !set {
			base["backgroundColor"] = bg
		}
	}
	w.rule(PageSelector(page.PageID), declarations(base), "")
}

// element writes the base rule, pseudo rules and media blocks of el.
func (w *sheet) element(doc *domain.Document, page domain.Page, el *domain.Element, rootID, active string, opts Options) {
	sel, ok := Path(doc, page.PageID, el.ElementID)
	if !ok {
		return
	}
	base, variants := el.Props.Split()
	var flattened []map[string]any
	if opts.Mode == ModeEdit {
		for _, k := range domain.ActiveMediaKeys(variants, opts.CanvasWidth) {
			for dk, dv := range variants[k] {
				if _, nested := domain.AsMap(dv); nested {
					continue
				}
				base[dk] = dv
			}
			flattened = append(flattened, variants[k])
		}
	}

	decls := declarations(base)
	decls = append(decls, synthetic(el, base, opts)...)
	decls = append(decls, gating(el, rootID, active, base, opts)...)
	w.rule(sel, decls, "")

	for _, k := range domain.SortedKeys(variants) {
		if domain.IsMediaKey(k) {
			continue
		}
		w.block(Resolve(sel, k), variants[k], "")
	}
	if opts.Mode == ModeEdit {
		// pseudo blocks nested in active media follow the base pseudo rules
		for _, v := range flattened {
			for _, k := range domain.SortedKeys(v) {
				if m, ok := domain.AsMap(v[k]); ok {
					w.block(Resolve(sel, k), m, "")
				}
			}
		}
		return
	}
	for _, k := range domain.MediaKeys(variants) {
		w.b.WriteString(strings.TrimSpace(k) + " {\n")
		w.block(sel, variants[k], "  ")
		w.b.WriteString("}\n")
	}
}

// block writes the scalar declarations of m under sel, then each nested
// map as its own resolved rule.
func (w *sheet) block(sel string, m map[string]any, indent string) {
	scalars := map[string]any{}
	for k, v := range m {
		if _, nested := domain.AsMap(v); !nested {
			scalars[k] = v
		}
	}
	w.rule(sel, declarations(scalars), indent)
	for _, k := range domain.SortedKeys(m) {
		if sub, ok := domain.AsMap(m[k]); ok {
			w.block(Resolve(sel, k), sub, indent)
		}
	}
}

// declarations turns scalar props into sorted CSS declarations, skipping
// content keys and blank names or values.
func declarations(props map[string]any) []decl {
	out := make([]decl, 0, len(props))
	for _, k := range domain.SortedKeys(props) {
		if domain.IsContentKey(k) || strings.TrimSpace(k) == "" {
			continue
		}
		v := strings.TrimSpace(domain.FormatValue(props[k]))
		if v == "" {
			continue
		}
		out = append(out, decl{domain.KebabCase(k), v})
	}
	return out
}

// synthetic keeps elements hittable: min size from padding and border,
// never below the configured floor, unless the author set one.
func synthetic(el *domain.Element, base map[string]any, opts Options) []decl {
	mw, mh := layout.MinSize(el, opts.CanvasWidth)
	var out []decl
	if _, set := base["minWidth"]; !set {
		out = append(out, decl{"min-width", domain.FormatPx(math.Max(mw, opts.MinSize))})
	}
	if _, set := base["minHeight"]; !set {
		out = append(out, decl{"min-height", domain.FormatPx(math.Max(mh, opts.MinSize))})
	}
	return out
}

// gating decides pointer events. Preview leaves author values alone; in
// edit mode only the direct children of the active container (the page
// root in root mode) take pointer events, and the container itself lets
// clicks through.
func gating(el *domain.Element, rootID, active string, base map[string]any, opts Options) []decl {
	if opts.Mode == ModePreview {
		if _, set := base["pointerEvents"]; set {
			return nil
		}
		return []decl{{"pointer-events", "auto"}}
	}
	scope := active
	if scope == "" {
		scope = rootID
	}
	switch {
	case el.ElementID == active:
		return []decl{{"pointer-events", "none"}, {"z-index", fmt.Sprint(ActiveZIndex)}}
	case el.ParentID == scope:
		return []decl{{"pointer-events", "auto"}}
	default:
		return []decl{{"pointer-events", "none"}}
	}
}
