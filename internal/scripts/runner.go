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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
)

type mounted struct {
	comp Component
	in   *Instance
}

// Runner owns the lifecycle of mounted components: each starts once,
// updates on every tick with the elapsed delta, and is destroyed on unmount.
// A component that panics is destroyed and dropped; the others keep running.
type Runner struct {
	reg *Registry
	log *slog.Logger

	mu      sync.Mutex
	mounted []*mounted
}

// NewRunner returns a runner resolving scripts through reg.
func NewRunner(reg *Registry) *Runner {
	return &Runner{reg: reg, log: applog.WithComponent("scripts")}
}

// Mount starts every attached script of el not yet running for it.
// Unknown scripts are logged and skipped. Returns the number started.
func (r *Runner) Mount(el domain.Element, node *html.Node) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	started := 0
	for _, path := range el.Scripts {
		path = NormalizePath(path)
		if r.find(el.ElementID, path) >= 0 {
			continue
		}
		f, ok := r.reg.Lookup(path)
		if !ok {
			r.log.Warn("script not registered", slog.String("element", el.ElementID), slog.String("script", path))
			continue
		}
		comp := f()
		in := &Instance{
			ElementID: el.ElementID,
			Script:    path,
			Node:      node,
			Props:     el.Props.Clone(),
			Values:    ResolveValues(comp.Fields(), scriptValues(el, path)),
		}
		m := &mounted{comp: comp, in: in}
		if !r.call(m, "start", func() { comp.OnStart(in) }) {
			continue
		}
		r.mounted = append(r.mounted, m)
		started++
	}
	return started
}

// scriptValues finds the overrides for path, tolerating keys stored with a
// different slash style.
func scriptValues(el domain.Element, path string) map[string]any {
	for k, v := range el.ScriptValues {
		if NormalizePath(k) == path {
			return v
		}
	}
	return nil
}

func (r *Runner) find(elementID, path string) int {
	for i, m := range r.mounted {
		if m.in.ElementID == elementID && m.in.Script == path {
			return i
		}
	}
	return -1
}

// Refresh hands new props and field values to the running instances of el
// without restarting them. A non-nil node replaces the one they modify.
// Scripts no longer attached are destroyed.
func (r *Runner) Refresh(el domain.Element, node *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attached := map[string]bool{}
	for _, p := range el.Scripts {
		attached[NormalizePath(p)] = true
	}
	kept := r.mounted[:0]
	for _, m := range r.mounted {
		if m.in.ElementID != el.ElementID {
			kept = append(kept, m)
			continue
		}
		if !attached[m.in.Script] {
			r.call(m, "destroy", func() { m.comp.OnDestroy(m.in) })
			continue
		}
		if node != nil {
			m.in.Node = node
		}
		m.in.Props = el.Props.Clone()
		m.in.Values = ResolveValues(m.comp.Fields(), scriptValues(el, m.in.Script))
		kept = append(kept, m)
	}
	r.mounted = kept
}

// Unmount destroys every instance mounted on elementID.
func (r *Runner) Unmount(elementID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.mounted[:0]
	for _, m := range r.mounted {
		if m.in.ElementID == elementID {
			r.call(m, "destroy", func() { m.comp.OnDestroy(m.in) })
			continue
		}
		kept = append(kept, m)
	}
	r.mounted = kept
}

// UnmountAll destroys every instance.
func (r *Runner) UnmountAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mounted {
		r.call(m, "destroy", func() { m.comp.OnDestroy(m.in) })
	}
	r.mounted = nil
}

// Mounted returns the number of running instances.
func (r *Runner) Mounted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounted)
}

// Tick updates every instance once with dt seconds.
func (r *Runner) Tick(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.mounted[:0]
	for _, m := range r.mounted {
		m.in.Elapsed += dt
		if !r.call(m, "update", func() { m.comp.OnUpdate(m.in, dt) }) {
			r.call(m, "destroy", func() { m.comp.OnDestroy(m.in) })
			continue
		}
		kept = append(kept, m)
	}
	r.mounted = kept
}

// Run ticks at fps frames per second until ctx is done, then destroys all
// instances.
func (r *Runner) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		return fmt.Errorf("scripts: invalid frame rate %d", fps)
	}
	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()
	defer r.UnmountAll()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			r.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// call runs one hook and reports whether it returned normally.
func (r *Runner) call(m *mounted, hook string, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("script panicked",
				slog.String("element", m.in.ElementID), slog.String("script", m.in.Script),
				slog.String("hook", hook), slog.Any("panic", rec))
			ok = false
		}
	}()
	fn()
	return true
}
