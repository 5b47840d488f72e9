/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package bridge replicates store mutations between the editor and
// secondary windows. The Hub owns the authoritative store; every applied
// action is numbered and fanned out to all windows except the one it came
// from. Windows keep a replica and never send remote actions back.
package bridge

import (
	"log/slog"
	"sync"

	"pagecraft/internal/domain"
	applog "pagecraft/internal/log"
	"pagecraft/internal/scene"
)

// HubID is the origin of actions made directly on the hub's store.
const HubID = "editor"

// DefaultHistory is the number of events kept for polling windows.
const DefaultHistory = 1024

// Event is one applied action. Seq is the store version it produced.
type Event struct {
	Seq    uint64       `json:"seq"`
	Action scene.Action `json:"action"`
}

// InitialState is the snapshot a window boots from. Events with a Seq
// above it are not yet contained in the document.
type InitialState struct {
	Seq      uint64          `json:"seq"`
	Document domain.Document `json:"document"`
}

// Hub is the authoritative end of the channel.
type Hub struct {
	store *scene.Store
	log   *slog.Logger

	mu      sync.Mutex
	history []Event
	max     int
	subs    map[string]func(Event)
	stop    func()
}

// NewHub starts relaying the actions applied to s. history bounds the
// events kept for Since; 0 means DefaultHistory.
func NewHub(s *scene.Store, history int) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	h := &Hub{store: s, max: history, subs: map[string]func(Event){}, log: applog.WithComponent("bridge")}
	h.stop = s.OnAction(h.relay)
	return h
}

// Store returns the authoritative store.
func (h *Hub) Store() *scene.Store { return h.store }

// Close stops relaying.
func (h *Hub) Close() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.subs = map[string]func(Event){}
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (h *Hub) relay(a scene.Action, version uint64) {
	if a.Origin == "" {
		a.Origin = HubID
	}
	ev := Event{Seq: version, Action: a}
	h.mu.Lock()
	h.history = append(h.history, ev)
	if len(h.history) > h.max {
		h.history = append(h.history[:0:0], h.history[len(h.history)-h.max:]...)
	}
	targets := make([]func(Event), 0, len(h.subs))
	for id, fn := range h.subs {
		if id == a.Origin {
			continue
		}
		targets = append(targets, fn)
	}
	h.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}

// Dispatch applies an action sent by window origin. It is relayed to every
// other window, never back to origin.
func (h *Hub) Dispatch(origin string, a scene.Action) scene.Result {
	a.Origin = origin
	a.Remote = true
	res := h.store.Dispatch(a)
	if res.Err != nil {
		h.log.Warn("remote action rejected", slog.String("origin", origin), slog.String("type", string(a.Type)), slog.Any("error", res.Err))
	}
	return res
}

// Subscribe delivers every event not originating from windowID to fn, in
// order, synchronously with the mutation. fn must not block or dispatch.
// A second subscription with the same id replaces the first.
func (h *Hub) Subscribe(windowID string, fn func(Event)) func() {
	h.mu.Lock()
	h.subs[windowID] = fn
	h.mu.Unlock()
	h.log.Debug("window subscribed", slog.String("window", windowID))
	return func() {
		h.mu.Lock()
		delete(h.subs, windowID)
		h.mu.Unlock()
	}
}

// Since returns the events after seq that windowID did not send. ok is false
// when the history no longer reaches back to seq; the window must reload
// its initial state.
func (h *Hub) Since(windowID string, seq uint64) (events []Event, ok bool) {
	events, _, ok = h.Poll(windowID, seq)
	return events, ok
}

// Poll is Since that also reports the newest sequence number the history
// covers, own events included. A polling window continues from head.
func (h *Hub) Poll(windowID string, seq uint64) (events []Event, head uint64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	head = seq
	if len(h.history) > 0 && h.history[0].Seq > seq+1 {
		return nil, head, false
	}
	for _, ev := range h.history {
		if ev.Seq <= seq {
			continue
		}
		head = ev.Seq
		if ev.Action.Origin != windowID {
			events = append(events, ev)
		}
	}
	return events, head, true
}

// InitialState returns the current document and its version.
func (h *Hub) InitialState() InitialState {
	var st InitialState
	h.store.Read(func(doc *domain.Document, _ domain.Selection, version uint64) {
		st = InitialState{Seq: version, Document: doc.Clone()}
	})
	return st
}
