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

import (
	"sync"

	"github.com/erigontech/graphd/primitive"
)

// shared is the refcounted state an original and all of its clones point
// at (spec §4.6.2): the refcount, statistics, a snapshot id, and the
// kind-specific teardown. Nothing in this package advances snapshotID;
// substitution is tracked by Cell's generation (see Refresh).
type shared struct {
	mu         sync.Mutex
	refcount   int
	snapshotID uint64
	stats      Stats
	finish     func() // kind-specific teardown, called once refcount hits 0
}

func newShared(finish func()) *shared {
	return &shared{refcount: 1, finish: finish}
}

func (s *shared) retain() {
	s.mu.Lock()
	s.refcount++
	s.mu.Unlock()
}

func (s *shared) release() {
	s.mu.Lock()
	s.refcount--
	done := s.refcount <= 0
	s.mu.Unlock()
	if done && s.finish != nil {
		s.finish()
	}
}

// Base provides the bookkeeping every concrete iterator embeds: its
// shared ancestor, its direction, and Beyond/RangeEstimate defaults for
// kinds that don't narrow themselves further. Position is kept by each
// kind itself.
type Base struct {
	sh  *shared
	dir Direction
}

// NewOriginal creates a fresh shared ancestor. finish is called exactly
// once, when the last clone (including the original itself) is Finished.
func NewOriginal(dir Direction, finish func()) Base {
	return Base{sh: newShared(finish), dir: dir}
}

// CloneBase produces the Base for a new clone of the same shared ancestor.
func (b Base) CloneBase() Base {
	b.sh.retain()
	return Base{sh: b.sh, dir: b.dir}
}

// Finish releases this handle's share of the ancestor.
func (b Base) Finish() { b.sh.release() }

// SnapshotID returns the shared ancestor's snapshot id. It stays at its
// initial zero value: no code in this package changes it, and Refresh
// compares Cell generations instead.
func (b Base) SnapshotID() uint64 { return b.sh.snapshotID }

// Direction reports the sort order this iterator was constructed with.
func (b Base) Direction() Direction { return b.dir }

// DefaultRangeEstimate reports "no information beyond full id space",
// the safe default for kinds that do not track position precision.
func (b Base) DefaultRangeEstimate() RangeEstimate {
	return RangeEstimate{Low: 0, High: primitive.MaxID, NMax: -1, NExact: false}
}

// DefaultBeyond is conservative: nothing is ever "beyond" unless a kind
// overrides it with real position knowledge.
func (b Base) DefaultBeyond(primitive.ID) bool { return false }

// DefaultRestrict is the identity restriction: most kinds have no
// narrowing rule and return themselves unchanged. Concrete kinds that
// understand PrimitiveSummary override this on their outer type, not via
// embedding, since Go method promotion can't let an outer type's Restrict
// call back into itself through Base.
func DefaultRestrict(self Iterator, _ PrimitiveSummary) Iterator { return self }
