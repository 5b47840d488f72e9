/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Props maps a style property (or a semantic key such as text/src) to either
// a scalar declaration value or a nested variant block (map[string]any).
type Props map[string]any

// Semantic keys that are element content, never CSS declarations.
var contentKeys = map[string]bool{"text": true, "src": true, "alt": true}

// IsContentKey reports whether k is element content rather than style.
func IsContentKey(k string) bool { return contentKeys[k] }

// Clone returns a deep copy; nested variant maps are copied too.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		if m, ok := asMap(v); ok {
			out[k] = map[string]any(Props(m).Clone())
			continue
		}
		out[k] = v
	}
	return out
}

// Merge applies a partial update in place. A nil value deletes the key; a map
// value merges recursively into an existing variant block.
func (p Props) Merge(partial map[string]any) {
	for k, v := range partial {
		if v == nil {
			delete(p, k)
			continue
		}
		if m, ok := asMap(v); ok {
			cur, _ := asMap(p[k])
			next := Props(cur).Clone()
			if next == nil {
				next = Props{}
			}
			next.Merge(m)
			if len(next) == 0 {
				delete(p, k)
			} else {
				p[k] = map[string]any(next)
			}
			continue
		}
		p[k] = v
	}
}

// Split separates scalar declarations from variant blocks.
func (p Props) Split() (base map[string]any, variants map[string]map[string]any) {
	base = map[string]any{}
	variants = map[string]map[string]any{}
	for k, v := range p {
		if m, ok := asMap(v); ok {
			variants[k] = m
			continue
		}
		base[k] = v
	}
	return base, variants
}

// At returns the nested container addressed by path (nil path = p itself).
func (p Props) At(path []string) (Props, bool) {
	cur := p
	for _, k := range path {
		m, ok := asMap(cur[k])
		if !ok {
			return nil, false
		}
		cur = Props(m)
	}
	return cur, true
}

// SortedKeys returns the keys in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Props:
		return map[string]any(m), true
	}
	return nil, false
}

// AsMap exposes the variant-map check to other packages.
func AsMap(v any) (map[string]any, bool) { return asMap(v) }

// IsMediaKey reports whether a variant key is a breakpoint block.
func IsMediaKey(k string) bool { return strings.HasPrefix(strings.TrimSpace(k), "@media") }

var mediaCond = regexp.MustCompile(`\(\s*(max|min)-width\s*:\s*([0-9]*\.?[0-9]+)\s*px\s*\)`)

// MediaCondition is a parsed width condition of an @media key.
type MediaCondition struct {
	Max   bool
	Width float64
}

// ParseMedia extracts the width conditions of an @media key. Keys without a
// recognizable width condition yield ok=false and are treated as inactive.
func ParseMedia(key string) (conds []MediaCondition, ok bool) {
	for _, m := range mediaCond.FindAllStringSubmatch(key, -1) {
		w, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, false
		}
		conds = append(conds, MediaCondition{Max: m[1] == "max", Width: w})
	}
	return conds, len(conds) > 0
}

// MediaActive evaluates a parsed key against a viewport width; all
// conditions must hold.
func MediaActive(conds []MediaCondition, width float64) bool {
	for _, c := range conds {
		if c.Max && width > c.Width {
			return false
		}
		if !c.Max && width < c.Width {
			return false
		}
	}
	return len(conds) > 0
}

// ActiveMediaKeys returns the @media variant keys active at width, ordered
// so that later keys override earlier ones: wider max-width blocks first,
// then narrower; among equal max-widths, smaller min-width first.
func ActiveMediaKeys(variants map[string]map[string]any, width float64) []string {
	return orderMedia(variants, func(conds []MediaCondition) bool { return MediaActive(conds, width) })
}

// MediaKeys returns every parseable @media key in cascade order (see
// ActiveMediaKeys). Keys without a width condition come last, by name.
func MediaKeys(variants map[string]map[string]any) []string {
	keys := orderMedia(variants, func([]MediaCondition) bool { return true })
	var rest []string
	for k := range variants {
		if _, ok := ParseMedia(k); IsMediaKey(k) && !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func orderMedia(variants map[string]map[string]any, keep func([]MediaCondition) bool) []string {
	type active struct {
		key      string
		max, min float64
	}
	var act []active
	for k := range variants {
		if !IsMediaKey(k) {
			continue
		}
		conds, ok := ParseMedia(k)
		if !ok || !keep(conds) {
			continue
		}
		a := active{key: k, max: math.Inf(1)}
		for _, c := range conds {
			if c.Max {
				a.max = math.Min(a.max, c.Width)
			} else {
				a.min = math.Max(a.min, c.Width)
			}
		}
		act = append(act, a)
	}
	sort.Slice(act, func(i, j int) bool {
		if act[i].max != act[j].max {
			return act[i].max > act[j].max
		}
		if act[i].min != act[j].min {
			return act[i].min < act[j].min
		}
		return act[i].key < act[j].key
	})
	keys := make([]string, len(act))
	for i, a := range act {
		keys[i] = a.key
	}
	return keys
}

// Effective returns the scalar declarations in force at the given canvas
// width: base values overlaid with every active @media block.
func (p Props) Effective(width float64) map[string]any {
	base, variants := p.Split()
	for _, k := range ActiveMediaKeys(variants, width) {
		for dk, dv := range variants[k] {
			if _, nested := asMap(dv); nested {
				continue
			}
			base[dk] = dv
		}
	}
	return base
}

// KebabCase converts a camelCase property name to its CSS spelling.
// Custom properties (--x) and already dashed names pass through.
func KebabCase(k string) string {
	if strings.HasPrefix(k, "--") {
		return k
	}
	var b strings.Builder
	for i, r := range k {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	// vendor prefixes written as WebkitX
	if strings.HasPrefix(out, "webkit-") || strings.HasPrefix(out, "moz-") || strings.HasPrefix(out, "ms-") {
		out = "-" + out
	}
	return out
}

// PropPx reads a pixel value stored either as a number or a "12px" string.
func PropPx(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimSuffix(s, "px")
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Px reads the pixel value of key k, returning def when absent or unparsable.
func (p Props) Px(k string, def float64) float64 {
	if f, ok := PropPx(p[k]); ok {
		return f
	}
	return def
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// FormatPx writes a pixel value rounded to two decimals ("12.5px").
func FormatPx(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', -1, 64) + "px"
}

// FormatValue renders a scalar prop value as CSS text. Bare numbers are
// written as-is so unitless properties (opacity, z-index) survive.
func FormatValue(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case bool:
		return strconv.FormatBool(n)
	}
	return ""
}

// NewID returns a fresh element or page identifier.
func NewID() string { return uuid.NewString() }

// DefaultProps returns the props a freshly added element of type t starts with.
func DefaultProps(t ElementType) Props {
	p := Props{"position": "absolute", "left": "0px", "top": "0px"}
	switch t {
	case TypeBox:
		p["width"] = "100px"
		p["height"] = "100px"
	case TypeText:
		p["text"] = "Text"
		p["fontSize"] = "16px"
	case TypeImage:
		p["width"] = "150px"
		p["height"] = "100px"
		p["src"] = ""
	}
	return p
}
