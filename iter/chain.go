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

package iter

import "sync"

// Chain is the global "unsuspended set" of spec §4.6.4: every live
// iterator that currently holds a page-pointer-shaped handle subscribes
// here so a writer can invoke SuspendAll before any write that might
// shift storage.
type Chain struct {
	mu          sync.Mutex
	unsuspended map[Iterator]struct{}
	suspended   map[Iterator]struct{}
}

// NewChain constructs an empty chain. One Chain is shared by an entire
// open database.
func NewChain() *Chain {
	return &Chain{
		unsuspended: make(map[Iterator]struct{}),
		suspended:   make(map[Iterator]struct{}),
	}
}

// Register adds it to the unsuspended set. Kinds that never hold live
// page pointers (Null, a Prefix sitting purely in cache) need not call
// this.
func (c *Chain) Register(it Iterator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsuspended[it] = struct{}{}
}

// Unregister removes it from whichever set it is in, typically on Finish.
func (c *Chain) Unregister(it Iterator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.unsuspended, it)
	delete(c.suspended, it)
}

// SuspendAll calls Suspend on every currently-unsuspended iterator and
// moves it to the suspended set. Invoked by the writer before any write
// that may shift storage (spec §4.6.4).
func (c *Chain) SuspendAll() {
	c.mu.Lock()
	victims := make([]Iterator, 0, len(c.unsuspended))
	for it := range c.unsuspended {
		victims = append(victims, it)
	}
	c.mu.Unlock()
	for _, it := range victims {
		it.Suspend()
	}
	c.mu.Lock()
	for _, it := range victims {
		delete(c.unsuspended, it)
		c.suspended[it] = struct{}{}
	}
	c.mu.Unlock()
}

// Resume moves it back to the unsuspended set after a successful
// Unsuspend call; individual iterators resume lazily on their next read,
// so callers typically invoke this right after Iterator.Unsuspend
// succeeds.
func (c *Chain) Resume(it Iterator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.suspended, it)
	c.unsuspended[it] = struct{}{}
}
