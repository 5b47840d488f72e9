/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scripts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang.org/x/net/html"

	"pagecraft/internal/domain"
)

// probe records its lifecycle calls.
type probe struct {
	calls   *[]string
	panicOn string
}

func (p *probe) Fields() Schema {
	return Schema{"speed": {Type: FieldNumber, Default: 2.0}}
}

func (p *probe) hook(name string) {
	*p.calls = append(*p.calls, name)
	if p.panicOn == name {
		panic("boom")
	}
}

func (p *probe) OnStart(*Instance)           { p.hook("start") }
func (p *probe) OnUpdate(*Instance, float64) { p.hook("update") }
func (p *probe) OnDestroy(*Instance)         { p.hook("destroy") }

func TestResolveValues(t *testing.T) {
	schema := Schema{
		"speed": {Type: FieldNumber, Default: 2.0},
		"label": {Type: FieldString, Default: "hi"},
		"on":    {Type: FieldBoolean},
		"mode":  {Type: FieldSelect, Default: "a", Options: []string{"a", "b"}},
		"items": {Type: FieldArray},
	}
	got := ResolveValues(schema, map[string]any{
		"speed": json.Number("3.5"),
		"label": 7,
		"mode":  "c",
		"items": []string{"x"},
		"extra": true,
	})
	if got["speed"] != 3.5 || got["label"] != "hi" || got["on"] != false || got["mode"] != "a" {
		t.Fatalf("resolved = %#v", got)
	}
	if items, ok := got["items"].([]any); !ok || len(items) != 1 {
		t.Fatalf("items = %#v", got["items"])
	}
	if _, ok := got["extra"]; ok {
		t.Fatalf("unknown key kept")
	}
}

func TestSchemaValidate(t *testing.T) {
	schema := (&counter{}).Fields()
	msgs, err := schema.Validate(map[string]any{"start": 1, "format": "integer"})
	if err != nil || len(msgs) != 0 {
		t.Fatalf("valid values rejected: %v %v", msgs, err)
	}
	msgs, err = schema.Validate(map[string]any{"start": "one", "format": "roman", "bogus": 1})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("msgs = %v", msgs)
	}
}

func TestRunnerLifecycle(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register("./scripts\\probe.js", func() Component { return &probe{calls: &calls} })
	r := NewRunner(reg)
	el := domain.Element{ElementID: "e1", Scripts: []string{"/scripts/probe.js", "missing.js"}}

	if n := r.Mount(el, nil); n != 1 {
		t.Fatalf("mounted %d", n)
	}
	if n := r.Mount(el, nil); n != 0 {
		t.Fatalf("remount started %d", n)
	}
	r.Tick(0.016)
	r.Tick(0.016)
	r.Unmount("e1")
	r.Tick(0.016)
	want := []string{"start", "update", "update", "destroy"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v", calls)
		}
	}
}

func TestRunnerDropsPanickingComponent(t *testing.T) {
	var bad, good []string
	reg := NewRegistry()
	reg.Register("bad.js", func() Component { return &probe{calls: &bad, panicOn: "update"} })
	reg.Register("good.js", func() Component { return &probe{calls: &good} })
	r := NewRunner(reg)
	r.Mount(domain.Element{ElementID: "a", Scripts: []string{"bad.js"}}, nil)
	r.Mount(domain.Element{ElementID: "b", Scripts: []string{"good.js"}}, nil)
	r.Tick(0.1)
	r.Tick(0.1)
	if r.Mounted() != 1 {
		t.Fatalf("mounted = %d", r.Mounted())
	}
	if len(bad) != 3 || bad[2] != "destroy" {
		t.Fatalf("bad calls = %v", bad)
	}
	if len(good) != 3 {
		t.Fatalf("good calls = %v", good)
	}
}

func TestRefreshKeepsInstanceAndUpdatesValues(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	r := NewRunner(reg)
	node := &html.Node{Type: html.ElementNode, Data: "div"}
	el := domain.Element{
		ElementID:    "c",
		Scripts:      []string{CounterPath},
		ScriptValues: map[string]map[string]any{CounterPath: {"start": 10.0, "prefix": "#"}},
	}
	r.Mount(el, node)
	if node.FirstChild == nil || node.FirstChild.Data != "#10" {
		t.Fatalf("start text = %+v", node.FirstChild)
	}
	r.Tick(2)
	if node.FirstChild.Data != "#12" {
		t.Fatalf("after tick = %q", node.FirstChild.Data)
	}
	el.ScriptValues[CounterPath]["prefix"] = "n="
	r.Refresh(el, nil)
	r.Tick(1)
	if node.FirstChild.Data != "n=13" {
		t.Fatalf("after refresh = %q", node.FirstChild.Data)
	}
	el.Scripts = nil
	r.Refresh(el, nil)
	if r.Mounted() != 0 {
		t.Fatalf("detached script still mounted")
	}
}

func TestBlinkToggles(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	r := NewRunner(reg)
	node := &html.Node{Type: html.ElementNode, Data: "div"}
	r.Mount(domain.Element{ElementID: "b", Scripts: []string{BlinkPath}}, node)
	if Attr(node, "data-blink") != "on" {
		t.Fatalf("not on at start")
	}
	r.Tick(0.6)
	if Attr(node, "data-blink") != "off" {
		t.Fatalf("not toggled")
	}
	r.Tick(0.5)
	if Attr(node, "data-blink") != "on" {
		t.Fatalf("not toggled back")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register("p.js", func() Component { return &probe{calls: &calls} })
	r := NewRunner(reg)
	r.Mount(domain.Element{ElementID: "x", Scripts: []string{"p.js"}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx, 100); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run err = %v", err)
	}
	if r.Mounted() != 0 || calls[len(calls)-1] != "destroy" {
		t.Fatalf("not destroyed on cancel: %v", calls)
	}
	if err := r.Run(context.Background(), 0); err == nil {
		t.Fatalf("zero fps accepted")
	}
}
