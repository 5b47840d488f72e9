/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a page of the scene tree into an HTML node tree:
// one positioned box per element, styled by the projected stylesheet, with
// edit-mode dimming and chrome suppression around the active container.
package render

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pagecraft/internal/domain"
	"pagecraft/internal/stylegen"
)

// ErrNoPage is returned when the requested page does not exist.
var ErrNoPage = errors.New("render: page not found")

// Options selects the page and rendering context.
type Options struct {
	Mode              stylegen.Mode
	ActiveContainerID string
	// PageID defaults to the document's active page.
	PageID string
	// AssetBase prefixes relative image sources.
	AssetBase string
	// FontBase prefixes local font paths; empty means AssetBase.
	FontBase string
}

func (o Options) fontBase() string {
	if o.FontBase != "" {
		return o.FontBase
	}
	return o.AssetBase
}

// States are the interaction states of one element relative to the active
// container.
type States struct {
	DirectChild     bool
	Ancestor        bool
	ActiveContainer bool
	Focused         bool
	Dimmed          bool
}

// Derive computes the states of el. parentFocused is the Focused state of
// its parent; active is the active container id, empty in root mode.
func Derive(doc *domain.Document, el *domain.Element, rootID, active string, parentFocused bool) States {
	var st States
	scope := active
	if scope == "" {
		scope = rootID
	}
	st.DirectChild = el.ParentID == scope
	st.ActiveContainer = active != "" && el.ElementID == active
	st.Ancestor = active != "" && doc.IsAncestor(el.ElementID, active)
	st.Focused = parentFocused || st.ActiveContainer
	st.Dimmed = active != "" && !st.Focused && !st.Ancestor
	return st
}

// Result is a rendered page.
type Result struct {
	PageID string
	Root   *html.Node
	Nodes  map[string]*html.Node
	// States holds the derived states per element id.
	States map[string]States
}

// Page renders the page named by opts. The root node is div#<pageId>.
func Page(doc *domain.Document, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = stylegen.ModeEdit
	}
	page, ok := doc.Page(opts.PageID)
	if !ok {
		if opts.PageID != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoPage, opts.PageID)
		}
		if page, ok = doc.ActivePage(); !ok {
			return nil, ErrNoPage
		}
	}
	root, ok := doc.Elements[page.RootElementID]
	if !ok {
		return nil, fmt.Errorf("%w: root %s missing", ErrNoPage, page.RootElementID)
	}
	active := opts.ActiveContainerID
	if opts.Mode == stylegen.ModePreview || active == root.ElementID {
		active = ""
	}
	if _, ok := doc.Elements[active]; !ok {
		active = ""
	}

	r := &renderer{doc: doc, opts: opts, rootID: root.ElementID, active: active,
		res: &Result{PageID: page.PageID, Nodes: map[string]*html.Node{}, States: map[string]States{}}}
	top := element(atom.Div, "div")
	setAttr(top, "id", page.PageID)
	setAttr(top, "data-id", root.ElementID)
	setAttr(top, "data-type", "page")
	if !root.IsVisible {
		setAttr(top, "style", "display: none")
	}
	r.res.Root = top
	r.res.Nodes[root.ElementID] = top
	r.seen = map[string]bool{root.ElementID: true}
	r.children(top, root, active == "")
	return r.res, nil
}

type renderer struct {
	doc    *domain.Document
	opts   Options
	rootID string
	active string
	res    *Result
	seen   map[string]bool
}

func (r *renderer) children(parent *html.Node, el *domain.Element, focused bool) {
	for _, cid := range el.Children {
		c, ok := r.doc.Elements[cid]
		if !ok || r.seen[cid] {
			continue
		}
		r.seen[cid] = true
		st := Derive(r.doc, c, r.rootID, r.active, focused)
		n := r.node(c, st)
		parent.AppendChild(n)
		r.res.Nodes[cid] = n
		r.res.States[cid] = st
		if c.Type.IsContainer() {
			r.children(n, c, st.Focused)
		}
	}
}

func (r *renderer) node(el *domain.Element, st States) *html.Node {
	var n *html.Node
	switch el.Type {
	case domain.TypeImage:
		n = element(atom.Img, "img")
		if src, _ := el.Props["src"].(string); strings.TrimSpace(src) != "" {
			setAttr(n, "src", r.assetURL(src))
		}
		alt, _ := el.Props["alt"].(string)
		setAttr(n, "alt", alt)
	case domain.TypeText:
		n = element(atom.Div, "div")
		text, _ := el.Props["text"].(string)
		lines := strings.Split(text, "\n")
		for i, l := range lines {
			if i > 0 {
				n.AppendChild(element(atom.Br, "br"))
			}
			if l != "" {
				n.AppendChild(&html.Node{Type: html.TextNode, Data: l})
			}
		}
	default:
		n = element(atom.Div, "div")
	}
	setAttr(n, "data-id", el.ElementID)
	setAttr(n, "data-type", string(el.Type))
	if id := strings.TrimSpace(el.ID); id != "" {
		setAttr(n, "id", id)
	}
	if cls := strings.TrimSpace(el.ClassName); cls != "" {
		setAttr(n, "class", cls)
	}
	if style := r.inline(el, st); style != "" {
		setAttr(n, "style", style)
	}
	return n
}

// inline returns the per-element inline style: hiding, and in edit mode the
// dimming and chrome suppression that follow the active container.
func (r *renderer) inline(el *domain.Element, st States) string {
	var parts []string
	if !el.IsVisible {
		parts = append(parts, "display: none")
	}
	if r.opts.Mode == stylegen.ModeEdit {
		if st.Dimmed {
			parts = append(parts, "opacity: 0")
		}
		if st.Ancestor || st.ActiveContainer {
			parts = append(parts, "background: transparent", "border-color: transparent", "box-shadow: none")
		}
	}
	return strings.Join(parts, "; ")
}

func (r *renderer) assetURL(src string) string {
	if u, err := url.Parse(src); err == nil && (u.IsAbs() || strings.HasPrefix(src, "/") || strings.HasPrefix(src, "data:")) {
		return src
	}
	if r.opts.AssetBase == "" {
		return src
	}
	if strings.Contains(r.opts.AssetBase, "://") {
		return strings.TrimRight(r.opts.AssetBase, "/") + "/" + strings.TrimLeft(src, "./")
	}
	return path.Join(r.opts.AssetBase, src)
}

func element(a atom.Atom, tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: tag}
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Document wraps a rendered page into a complete HTML document carrying css.
func Document(res *Result, title, css string) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	htm := element(atom.Html, "html")
	head := element(atom.Head, "head")
	meta := element(atom.Meta, "meta")
	setAttr(meta, "charset", "utf-8")
	head.AppendChild(meta)
	t := element(atom.Title, "title")
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(t)
	style := element(atom.Style, "style")
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	head.AppendChild(style)
	body := element(atom.Body, "body")
	setAttr(body, "style", "margin: 0")
	body.AppendChild(res.Root)
	htm.AppendChild(head)
	htm.AppendChild(body)
	doc.AppendChild(htm)
	return doc
}

// RenderDocument writes the page named by opts as a standalone HTML
// document with its stylesheet inlined.
func RenderDocument(w io.Writer, doc *domain.Document, opts Options) error {
	res, err := Page(doc, opts)
	if err != nil {
		return err
	}
	page, _ := doc.Page(res.PageID)
	css := stylegen.Generate(doc, stylegen.Options{
		Mode:              opts.Mode,
		ActiveContainerID: opts.ActiveContainerID,
		PageID:            page.PageID,
		FontBase:          opts.fontBase(),
	})
	title := page.Name
	if title == "" {
		title = page.PageID
	}
	return html.Render(w, Document(res, title, css))
}
