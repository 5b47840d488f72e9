/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scripts

import (
	"math"
	"strconv"

	"golang.org/x/net/html"
)

// Built-in script paths.
const (
	BlinkPath   = "builtin/blink.js"
	CounterPath = "builtin/counter.js"
)

// RegisterBuiltins adds the stock components to r.
func RegisterBuiltins(r *Registry) {
	r.Register(BlinkPath, func() Component { return &blink{} })
	r.Register(CounterPath, func() Component { return &counter{} })
}

// SetAttr sets or replaces an attribute on n.
func SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Attr returns the value of an attribute on n.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func num(v any, def float64) float64 {
	if f, ok := v.(float64); ok && !math.IsNaN(f) {
		return f
	}
	return def
}

// blink toggles data-blink between "on" and "off" every interval seconds.
type blink struct {
	acc float64
	on  bool
}

func (b *blink) Fields() Schema {
	return Schema{"interval": {Type: FieldNumber, Label: "Interval (s)", Default: 0.5}}
}

func (b *blink) OnStart(in *Instance) {
	b.on = true
	SetAttr(in.Node, "data-blink", "on")
}

func (b *blink) OnUpdate(in *Instance, dt float64) {
	interval := num(in.Values["interval"], 0.5)
	if interval <= 0 {
		return
	}
	b.acc += dt
	for b.acc >= interval {
		b.acc -= interval
		b.on = !b.on
	}
	if b.on {
		SetAttr(in.Node, "data-blink", "on")
	} else {
		SetAttr(in.Node, "data-blink", "off")
	}
}

func (b *blink) OnDestroy(in *Instance) {
	SetAttr(in.Node, "data-blink", "")
}

// counter writes a number that grows by step per second into the element.
type counter struct{}

func (counter) Fields() Schema {
	return Schema{
		"start":  {Type: FieldNumber, Label: "Start", Default: 0.0},
		"step":   {Type: FieldNumber, Label: "Per second", Default: 1.0},
		"prefix": {Type: FieldString, Label: "Prefix"},
		"format": {Type: FieldSelect, Label: "Format", Default: "integer", Options: []string{"integer", "decimal"}},
	}
}

func (c counter) value(in *Instance) string {
	v := num(in.Values["start"], 0) + num(in.Values["step"], 1)*in.Elapsed
	prefix, _ := in.Values["prefix"].(string)
	if in.Values["format"] == "decimal" {
		return prefix + strconv.FormatFloat(v, 'f', 2, 64)
	}
	return prefix + strconv.FormatInt(int64(math.Floor(v)), 10)
}

func (c counter) OnStart(in *Instance) { SetText(in.Node, c.value(in)) }

func (c counter) OnUpdate(in *Instance, _ float64) { SetText(in.Node, c.value(in)) }

func (counter) OnDestroy(*Instance) {}
