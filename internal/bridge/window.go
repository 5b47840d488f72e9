/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
)

// ErrClosed is returned by operations on a closed window.
var ErrClosed = errors.New("bridge: window closed")

// Transport carries locally made actions of a window to the hub.
type Transport interface {
	Send(ctx context.Context, windowID string, a scene.Action) error
}

// Resyncer is implemented by transports that can fetch the hub's current
// state for a replica that diverged.
type Resyncer interface {
	InitialState(ctx context.Context) (InitialState, error)
}

// HubTransport delivers to an in-process hub.
type HubTransport struct{ Hub *Hub }

// Send applies a on the hub on behalf of windowID.
func (t HubTransport) Send(_ context.Context, windowID string, a scene.Action) error {
	return t.Hub.Dispatch(windowID, a).Err
}

// InitialState returns the hub's document and seq.
func (t HubTransport) InitialState(context.Context) (InitialState, error) {
	return t.Hub.InitialState(), nil
}

// Window is a replica of the hub's document. Local edits go through Store()
// and are forwarded; events from the hub are queued with Deliver and applied
// by Flush or Run, marked remote so they are not forwarded again. When the
// hub rejects a local edit or a hub event does not apply, the replica is
// stale and the next Flush replaces it with the hub's state.
type Window struct {
	id    string
	store *scene.Store
	tr    Transport
	log   *slog.Logger

	mu      sync.Mutex
	inbox   []Event
	wake    chan struct{}
	lastSeq uint64
	remote  map[int]func(scene.Action)
	nextSub int
	stale   bool
	closed  bool
	stop    []func()
}

// NewWindow boots a replica from init.
func NewWindow(id string, init InitialState, tr Transport, limits scene.Limits) *Window {
	w := &Window{
		id:      id,
		store:   scene.New(init.Document, limits),
		tr:      tr,
		lastSeq: init.Seq,
		wake:    make(chan struct{}, 1),
		remote:  map[int]func(scene.Action){},
		log:     applog.WithComponent("bridge").With(slog.String("window", id)),
	}
	w.stop = append(w.stop, w.store.OnAction(w.forward))
	return w
}

// Connect opens a window on an in-process hub and subscribes it.
func Connect(h *Hub, id string) *Window {
	w := NewWindow(id, h.InitialState(), HubTransport{Hub: h}, h.Store().Limits())
	w.stop = append(w.stop, h.Subscribe(id, w.Deliver))
	return w
}

// ID returns the window id.
func (w *Window) ID() string { return w.id }

// Store returns the replica. Mutations made on it are sent to the hub.
func (w *Window) Store() *scene.Store { return w.store }

// Seq returns the sequence number of the last hub event applied.
func (w *Window) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}

func (w *Window) forward(a scene.Action, _ uint64) {
	if a.Remote {
		return
	}
	a.Origin = w.id
	if err := w.tr.Send(context.Background(), w.id, a); err != nil {
		w.log.Warn("send failed", slog.String("type", string(a.Type)), slog.Any("error", err))
		w.markStale()
	}
}

func (w *Window) markStale() {
	w.mu.Lock()
	w.stale = true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stale reports whether the replica is known to differ from the hub.
func (w *Window) Stale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stale
}

// Deliver queues a hub event. It never blocks on the replica.
func (w *Window) Deliver(ev Event) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.inbox = append(w.inbox, ev)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush applies the queued events in order and returns how many changed the
// replica. Events already covered by the replica's seq are skipped. A stale
// replica is resynced afterwards, which counts as one change.
func (w *Window) Flush() int {
	w.mu.Lock()
	queue := w.inbox
	w.inbox = nil
	w.mu.Unlock()
	applied := 0
	for _, ev := range queue {
		if w.apply(ev) {
			applied++
		}
	}
	if w.Stale() && w.catchUp() {
		applied++
	}
	return applied
}

// catchUp fetches the hub's state through the transport. Transports that
// cannot provide it leave the window stale until Resync is called.
func (w *Window) catchUp() bool {
	rs, ok := w.tr.(Resyncer)
	if !ok {
		return false
	}
	init, err := rs.InitialState(context.Background())
	if err != nil {
		w.log.Warn("resync failed", slog.Any("error", err))
		return false
	}
	w.log.Info("resyncing diverged replica", slog.Uint64("seq", init.Seq))
	w.Resync(init)
	return true
}

func (w *Window) apply(ev Event) bool {
	w.mu.Lock()
	if ev.Seq <= w.lastSeq || ev.Action.Origin == w.id {
		w.mu.Unlock()
		return false
	}
	w.lastSeq = ev.Seq
	w.mu.Unlock()

	a := ev.Action
	a.Remote = true
	res := w.store.Dispatch(a)
	if res.Err != nil {
		w.log.Warn("remote action failed", slog.Uint64("seq", ev.Seq), slog.String("type", string(a.Type)), slog.Any("error", res.Err))
		w.mu.Lock()
		w.stale = true
		w.mu.Unlock()
		return false
	}
	w.mu.Lock()
	fns := make([]func(scene.Action), 0, len(w.remote))
	for _, fn := range w.remote {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(a)
	}
	return res.Changed
}

// OnRemoteDispatch registers fn for every action applied from the hub.
func (w *Window) OnRemoteDispatch(fn func(scene.Action)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.remote[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.remote, id)
		w.mu.Unlock()
	}
}

// Resync replaces the replica with a fresh initial state, dropping queued
// events it already contains.
func (w *Window) Resync(init InitialState) {
	w.store.Dispatch(scene.Action{Type: scene.ActReplaceDocument, Payload: init.Document, Origin: HubID, Remote: true})
	w.mu.Lock()
	w.lastSeq = init.Seq
	w.stale = false
	w.mu.Unlock()
}

// Run applies delivered events as they arrive until ctx is done or the
// window is closed.
func (w *Window) Run(ctx context.Context) error {
	for {
		w.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.wake:
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return ErrClosed
			}
		}
	}
}

// Close unsubscribes the window. Queued events are discarded.
func (w *Window) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.inbox = nil
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()
	for _, fn := range stop {
		fn()
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
