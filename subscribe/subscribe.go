// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package subscribe is the subscription hub of spec §4.8: an ordered list
// of subscribers invoked on each committed primitive, stopping at the
// first callback error.
package subscribe

import (
	"sync"

	"github.com/erigontech/graphd/primitive"
)

// Subscriber is notified of every committed primitive, in registration
// order. Truncation is signalled by a call to OnTruncate, on which
// subscribers must reset any private caches.
type Subscriber interface {
	Name() string
	OnCommit(rec *primitive.Record) error
	OnTruncate() error
}

// Hub is the ordered, append-only subscriber list. Lifetime equals the
// database's.
type Hub struct {
	mu   sync.RWMutex
	subs []Subscriber
}

func NewHub() *Hub { return &Hub{} }

// Register appends sub to the subscriber list. Subscribers are
// append-only (spec §4.8); there is no Unregister.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, sub)
}

// Dispatch invokes each subscriber's OnCommit in registration order,
// stopping at the first error (spec §4.8, §9 "Subscription hub error
// semantics": "stops dispatch on the first callback error. This leaves
// the record half-indexed; recovery relies on checkpoint_rollback").
func (h *Hub) Dispatch(rec *primitive.Record) error {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()
	for _, s := range subs {
		if err := s.OnCommit(rec); err != nil {
			return err
		}
	}
	return nil
}

// DispatchTruncate calls OnTruncate on every subscriber, in registration
// order, also stopping at the first error.
func (h *Hub) DispatchTruncate() error {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()
	for _, s := range subs {
		if err := s.OnTruncate(); err != nil {
			return err
		}
	}
	return nil
}

// Subscribers returns the current subscriber list, in registration
// order, for callers (e.g. checkpoint.CheckpointSynchronize's replay
// step) that need to address indexers individually.
func (h *Hub) Subscribers() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Subscriber, len(h.subs))
	copy(out, h.subs)
	return out
}
