/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scripts is the contract for behaviour attached to elements in
// preview: a field schema edited per element and start/update/destroy hooks
// driven once per frame. Components are registered by script path; nothing
// is loaded dynamically.
package scripts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"golang.org/x/net/html"
)

// FieldType is the editor widget kind of a field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
	FieldArray   FieldType = "array"
)

// Field describes one editable value of a component.
type Field struct {
	Type    FieldType `json:"type"`
	Label   string    `json:"label,omitempty"`
	Default any       `json:"default,omitempty"`
	Options []string  `json:"options,omitempty"`
}

// Schema maps field names to their description.
type Schema map[string]Field

// Names returns the field names sorted.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Instance is one component mounted on one element.
type Instance struct {
	ElementID string
	Script    string
	// Node is the rendered element the component may modify.
	Node   *html.Node
	Props  map[string]any
	Values map[string]any
	// Elapsed is the total time in seconds the instance has been updated for.
	Elapsed float64
}

// Component is the behaviour behind a script path.
type Component interface {
	Fields() Schema
	OnStart(in *Instance)
	OnUpdate(in *Instance, dt float64)
	OnDestroy(in *Instance)
}

// Factory makes a fresh component for each mount.
type Factory func() Component

// Registry maps script paths to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// NormalizePath makes script keys independent of slash style and leading
// "./" or "/".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimLeft(p, "/")
}

// Register adds or replaces the factory for path.
func (r *Registry) Register(path string, f Factory) {
	r.mu.Lock()
	r.factories[NormalizePath(path)] = f
	r.mu.Unlock()
}

// Lookup returns the factory for path.
func (r *Registry) Lookup(path string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[NormalizePath(path)]
	return f, ok
}

// Paths lists registered script paths sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SchemaOf returns the field schema of the component behind path.
func (r *Registry) SchemaOf(path string) (Schema, bool) {
	f, ok := r.Lookup(path)
	if !ok {
		return nil, false
	}
	return f().Fields(), true
}

// ResolveValues merges per-element overrides over schema defaults. Values
// of the wrong type and keys the schema does not know are dropped.
func ResolveValues(schema Schema, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for name, f := range schema {
		if v, ok := overrides[name]; ok {
			if c, ok := coerce(f, v); ok {
				out[name] = c
				continue
			}
		}
		if f.Default != nil {
			out[name] = f.Default
		} else {
			out[name] = zero(f.Type)
		}
	}
	return out
}

func zero(t FieldType) any {
	switch t {
	case FieldNumber:
		return 0.0
	case FieldBoolean:
		return false
	case FieldArray:
		return []any{}
	}
	return ""
}

func coerce(f Field, v any) (any, bool) {
	switch f.Type {
	case FieldNumber:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			x, err := n.Float64()
			return x, err == nil
		}
	case FieldBoolean:
		b, ok := v.(bool)
		return b, ok
	case FieldSelect:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		if len(f.Options) == 0 {
			return s, true
		}
		for _, o := range f.Options {
			if o == s {
				return s, true
			}
		}
	case FieldArray:
		switch a := v.(type) {
		case []any:
			return a, true
		case []string:
			out := make([]any, len(a))
			for i, s := range a {
				out[i] = s
			}
			return out, true
		}
	default:
		s, ok := v.(string)
		return s, ok
	}
	return nil, false
}

// JSONSchema renders the field schema as a JSON Schema object, for editors
// and for validating stored overrides.
func (s Schema) JSONSchema() map[string]any {
	props := map[string]any{}
	for name, f := range s {
		p := map[string]any{}
		switch f.Type {
		case FieldNumber:
			p["type"] = "number"
		case FieldBoolean:
			p["type"] = "boolean"
		case FieldArray:
			p["type"] = "array"
		case FieldSelect:
			p["type"] = "string"
			if len(f.Options) > 0 {
				p["enum"] = f.Options
			}
		default:
			p["type"] = "string"
		}
		if f.Label != "" {
			p["title"] = f.Label
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[name] = p
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// Validate checks stored overrides against the schema and returns one
// message per violation.
func (s Schema) Validate(values map[string]any) ([]string, error) {
	if values == nil {
		values = map[string]any{}
	}
	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(s.JSONSchema()), gojsonschema.NewGoLoader(values))
	if err != nil {
		return nil, fmt.Errorf("validate script values: %w", err)
	}
	var msgs []string
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return msgs, nil
}
