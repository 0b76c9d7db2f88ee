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

// Cell is the indirection substitute/refresh operate through (spec
// §4.6.5): callers hold a *Cell rather than an Iterator directly, so
// in-place substitution is visible to every holder without them having
// to be individually notified.
type Cell struct {
	mu  sync.RWMutex
	it  Iterator
	gen uint64
}

// NewCell wraps it as the initial occupant of a fresh cell.
func NewCell(it Iterator) *Cell { return &Cell{it: it} }

// Get returns the cell's current iterator and the generation it was
// observed at, for later comparison by Refresh.
func (c *Cell) Get() (Iterator, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.it, c.gen
}

// Substitute replaces the cell's occupant with source, preserving the
// cell identity itself (any clone holding a reference to this *Cell
// transparently sees the new kind on its next Get). If source has
// outstanding external references beyond this call, the caller should
// pass source.Clone() instead so the original table's bookkeeping is not
// disturbed.
func (c *Cell) Substitute(source Iterator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.it
	c.it = source
	c.gen++
	if old != nil && old != source {
		old.Finish()
	}
}

// Refresh compares a clone's remembered generation against the cell's
// current one; if they differ, it clones the cell's current occupant and
// returns that clone along with the cell's current generation. Callers
// replace their own stale iterator with the returned clone and retry.
func Refresh(c *Cell, cloneGen uint64) (Iterator, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cloneGen == c.gen {
		return nil, cloneGen, false
	}
	return c.it.Clone(), c.gen, true
}
