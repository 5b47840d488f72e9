/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"pagecraft/internal/domain"
	"pagecraft/internal/scene"
	"pagecraft/internal/scripts"
	"pagecraft/internal/stylegen"
)

// nested builds root > [outer > [inner > [leaf]], sibling, pic, hidden].
func nested(t *testing.T) (*scene.Store, string) {
	t.Helper()
	s := scene.New(scene.NewDocument(800, 600, "#eee", nil), scene.DefaultLimits())
	doc := s.Snapshot()
	page, _ := doc.ActivePage()
	root := page.RootElementID
	_, err := s.AddElements([]scene.AddPayload{
		{ElementID: "outer", Type: domain.TypeBox, ParentID: root, ClassName: "card"},
		{ElementID: "inner", Type: domain.TypeBox, ParentID: "outer", ID: "hero"},
		{ElementID: "leaf", Type: domain.TypeText, ParentID: "inner", Props: domain.Props{"text": "one\ntwo"}},
		{ElementID: "sibling", Type: domain.TypeBox, ParentID: root},
		{ElementID: "pic", Type: domain.TypeImage, ParentID: root, Props: domain.Props{"src": "img/cat.png", "alt": "cat"}},
		{ElementID: "hidden", Type: domain.TypeBox, ParentID: root, Hidden: true},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return s, page.PageID
}

func attr(n *html.Node, key string) string { return scripts.Attr(n, key) }

func TestPageStructure(t *testing.T) {
	s, pageID := nested(t)
	doc := s.Snapshot()
	res, err := Page(&doc, Options{Mode: stylegen.ModePreview, AssetBase: "/assets"})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if attr(res.Root, "id") != pageID || res.Root.Data != "div" {
		t.Fatalf("root = %s#%s", res.Root.Data, attr(res.Root, "id"))
	}
	inner := res.Nodes["inner"]
	if inner.Parent != res.Nodes["outer"] || attr(inner, "id") != "hero" || attr(inner, "data-type") != "box" {
		t.Fatalf("inner attrs = %v", inner.Attr)
	}
	if attr(res.Nodes["outer"], "class") != "card" {
		t.Fatalf("class missing")
	}
	leaf := res.Nodes["leaf"]
	if leaf.FirstChild == nil || leaf.FirstChild.Data != "one" || leaf.FirstChild.NextSibling.Data != "br" || leaf.LastChild.Data != "two" {
		t.Fatalf("text children wrong")
	}
	pic := res.Nodes["pic"]
	if pic.Data != "img" || attr(pic, "src") != "/assets/img/cat.png" || attr(pic, "alt") != "cat" {
		t.Fatalf("img = %v", pic.Attr)
	}
	if !strings.Contains(attr(res.Nodes["hidden"], "style"), "display: none") {
		t.Fatalf("hidden element displayed")
	}
	if st := attr(res.Nodes["sibling"], "style"); st != "" {
		t.Fatalf("preview styled sibling inline: %q", st)
	}
}

func TestEditModeStates(t *testing.T) {
	s, _ := nested(t)
	doc := s.Snapshot()
	res, err := Page(&doc, Options{Mode: stylegen.ModeEdit, ActiveContainerID: "inner"})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	cases := map[string]States{
		"outer":   {DirectChild: false, Ancestor: true},
		"inner":   {ActiveContainer: true, Focused: true},
		"leaf":    {DirectChild: true, Focused: true},
		"sibling": {Dimmed: true},
	}
	for id, want := range cases {
		if got := res.States[id]; got != want {
			t.Fatalf("%s states = %+v, want %+v", id, got, want)
		}
	}
	chrome := "background: transparent; border-color: transparent; box-shadow: none"
	if st := attr(res.Nodes["outer"], "style"); st != chrome {
		t.Fatalf("outer style = %q", st)
	}
	if st := attr(res.Nodes["inner"], "style"); st != chrome {
		t.Fatalf("inner style = %q", st)
	}
	if st := attr(res.Nodes["leaf"], "style"); st != "" {
		t.Fatalf("leaf style = %q", st)
	}
	if st := attr(res.Nodes["sibling"], "style"); st != "opacity: 0" {
		t.Fatalf("sibling style = %q", st)
	}
	if res.Nodes["sibling"].Parent != res.Root {
		t.Fatalf("dimmed element not kept in the tree")
	}

	preview, _ := Page(&doc, Options{Mode: stylegen.ModePreview, ActiveContainerID: "inner"})
	if st := attr(preview.Nodes["sibling"], "style"); st != "" {
		t.Fatalf("preview dimmed: %q", st)
	}
}

func TestRenderDocument(t *testing.T) {
	s, pageID := nested(t)
	doc := s.Snapshot()
	var buf bytes.Buffer
	if err := RenderDocument(&buf, &doc, Options{Mode: stylegen.ModePreview}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || !strings.Contains(out, "<title>Home</title>") {
		t.Fatalf("document head:\n%s", out)
	}
	if !strings.Contains(out, stylegen.PageSelector(pageID)+" {") || !strings.Contains(out, `<div id="`+pageID+`"`) {
		t.Fatalf("stylesheet or root missing:\n%s", out)
	}
	if _, err := html.Parse(strings.NewReader(out)); err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if err := RenderDocument(&buf, &doc, Options{PageID: "nope"}); err == nil {
		t.Fatalf("unknown page rendered")
	}
}

type starts struct{ n *int }

func (starts) Fields() scripts.Schema { return nil }
func (s starts) OnStart(in *scripts.Instance) {
	*s.n++
}
func (starts) OnUpdate(in *scripts.Instance, dt float64) {
	scripts.SetAttr(in.Node, "data-t", "ticked")
}
func (starts) OnDestroy(*scripts.Instance) {}

func TestSessionKeepsScriptsAcrossRenders(t *testing.T) {
	s, _ := nested(t)
	n := 0
	reg := scripts.NewRegistry()
	reg.Register("probe.js", func() scripts.Component { return starts{n: &n} })
	s.AttachScript("leaf", "probe.js")

	sess := NewSession(s, reg, Options{})
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Close()
	s.UpdateElementProps("sibling", map[string]any{"color": "red"})
	if n != 1 {
		t.Fatalf("script started %d times", n)
	}
	sess.Tick(0.016)
	node, ok := sess.Node("leaf")
	if !ok || attr(node, "data-t") != "ticked" {
		t.Fatalf("script not bound to the current node")
	}
	if !strings.Contains(sess.CSS(), "color: red;") {
		t.Fatalf("stylesheet not refreshed")
	}
	var buf bytes.Buffer
	if err := sess.WriteHTML(&buf, "p"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sess.WriteHTML(&buf, "p"); err != nil {
		t.Fatalf("second write: %v", err)
	}

	s.DetachScript("leaf", "probe.js")
	s.AttachScript("leaf", "probe.js")
	if n != 2 {
		t.Fatalf("reattach did not restart: %d", n)
	}
}
