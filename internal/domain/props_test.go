/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestPropsMergeTombstones(t *testing.T) {
	p := Props{
		"color":  "red",
		"width":  "10px",
		":hover": map[string]any{"color": "blue", "opacity": 0.5},
	}
	p.Merge(map[string]any{
		"color":  nil,
		"height": "20px",
		":hover": map[string]any{"opacity": nil, "cursor": "pointer"},
	})
	if _, ok := p["color"]; ok {
		t.Fatalf("color should have been deleted")
	}
	if p["height"] != "20px" || p["width"] != "10px" {
		t.Fatalf("unexpected scalars: %#v", p)
	}
	hv := p[":hover"].(map[string]any)
	if hv["color"] != "blue" || hv["cursor"] != "pointer" {
		t.Fatalf("nested merge lost values: %#v", hv)
	}
	if _, ok := hv["opacity"]; ok {
		t.Fatalf("nested tombstone not applied")
	}
}

func TestPropsMergeRemovesEmptiedVariant(t *testing.T) {
	p := Props{".active": map[string]any{"color": "red"}}
	p.Merge(map[string]any{".active": map[string]any{"color": nil}})
	if _, ok := p[".active"]; ok {
		t.Fatalf("empty variant block should disappear: %#v", p)
	}
}

func TestPropsCloneIsDeep(t *testing.T) {
	p := Props{"@media (max-width: 480px)": map[string]any{"color": "blue"}}
	c := p.Clone()
	c["@media (max-width: 480px)"].(map[string]any)["color"] = "green"
	if p["@media (max-width: 480px)"].(map[string]any)["color"] != "blue" {
		t.Fatalf("clone shares nested maps")
	}
}

func TestSplitFromJSON(t *testing.T) {
	var p Props
	if err := json.Unmarshal([]byte(`{"color":"red","@media (max-width: 480px)":{"color":"blue"},"zIndex":3}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	base, variants := p.Split()
	if len(base) != 2 || len(variants) != 1 {
		t.Fatalf("split mismatch base=%v variants=%v", base, variants)
	}
}

func TestKebabCase(t *testing.T) {
	cases := map[string]string{
		"backgroundColor": "background-color",
		"zIndex":          "z-index",
		"color":           "color",
		"--accent":        "--accent",
		"WebkitUserDrag":  "-webkit-user-drag",
		"border-radius":   "border-radius",
	}
	for in, want := range cases {
		if got := KebabCase(in); got != want {
			t.Fatalf("KebabCase(%q)=%q want %q", in, got, want)
		}
	}
}

func TestPropPxAndFormat(t *testing.T) {
	for in, want := range map[any]float64{"12px": 12, " 7.5px ": 7.5, 4.0: 4, 3: 3, "9": 9} {
		got, ok := PropPx(in)
		if !ok || got != want {
			t.Fatalf("PropPx(%v)=%v,%v want %v", in, got, ok, want)
		}
	}
	if _, ok := PropPx("50%"); ok {
		t.Fatalf("percent must not parse as px")
	}
	if got := FormatPx(10.0049); got != "10px" {
		t.Fatalf("FormatPx rounding: %s", got)
	}
	if got := FormatPx(33.333333); got != "33.33px" {
		t.Fatalf("FormatPx: %s", got)
	}
}

func TestParseMedia(t *testing.T) {
	conds, ok := ParseMedia("@media (max-width: 480px)")
	if !ok || len(conds) != 1 || !conds[0].Max || conds[0].Width != 480 {
		t.Fatalf("unexpected parse: %v %v", conds, ok)
	}
	if !MediaActive(conds, 400) || MediaActive(conds, 1920) || !MediaActive(conds, 480) {
		t.Fatalf("max-width activation wrong")
	}
	conds, ok = ParseMedia("@media (min-width: 768px) and (max-width: 1024px)")
	if !ok || len(conds) != 2 {
		t.Fatalf("range parse: %v", conds)
	}
	if MediaActive(conds, 700) || !MediaActive(conds, 800) || MediaActive(conds, 1100) {
		t.Fatalf("range activation wrong")
	}
	if _, ok := ParseMedia("@media print"); ok {
		t.Fatalf("print media has no width condition")
	}
}

func TestDocumentAncestry(t *testing.T) {
	d := Document{
		Elements: map[string]*Element{
			"root": {ElementID: "root", Type: TypeBox, Children: []string{"a"}},
			"a":    {ElementID: "a", Type: TypeBox, ParentID: "root", Children: []string{"b"}},
			"b":    {ElementID: "b", Type: TypeText, ParentID: "a"},
		},
		Pages:        []Page{{PageID: "p1", Name: "Home", RootElementID: "root"}},
		ActivePageID: "p1",
	}
	if !d.IsAncestor("root", "b") || !d.IsAncestor("a", "b") || d.IsAncestor("b", "a") {
		t.Fatalf("ancestry wrong")
	}
	if p, ok := d.PageOf("b"); !ok || p.PageID != "p1" {
		t.Fatalf("PageOf: %v %v", p, ok)
	}
	// a corrupted cycle must terminate
	d.Elements["root"].ParentID = "b"
	_ = d.IsAncestor("x", "b")
}

func TestEffectiveOrdersMediaBlocks(t *testing.T) {
	p := Props{
		"width":                     "300px",
		"@media (max-width: 1024px)": map[string]any{"width": "200px"},
		"@media (max-width: 480px)":  map[string]any{"width": "100px", ":hover": map[string]any{"color": "red"}},
	}
	if got := p.Effective(1920)["width"]; got != "300px" {
		t.Fatalf("desktop width: %v", got)
	}
	if got := p.Effective(800)["width"]; got != "200px" {
		t.Fatalf("tablet width: %v", got)
	}
	eff := p.Effective(400)
	if eff["width"] != "100px" {
		t.Fatalf("narrowest block must win: %v", eff["width"])
	}
	if _, ok := eff[":hover"]; ok {
		t.Fatalf("nested pseudo blocks are not scalar declarations")
	}
}
