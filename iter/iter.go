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

// Package iter is the polymorphic, budget-driven iterator framework of
// spec §4.6: a single dispatch contract (Iterator) shared by every index
// representation and every composite (and/or/prefix/null), with
// suspend/resume around writes, clone/original refcounting, freeze/thaw
// to a textual cursor, and a statistics protocol.
package iter

import (
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// Direction is the enumeration order an iterator reports itself sorted by.
type Direction int8

const (
	Forward Direction = iota
	Backward
)

// Budget is the mutable cost allowance threaded through every
// potentially long-running call (spec §4.6.1). Callers decrement it
// implicitly: iterators subtract their own estimated cost as they work.
type Budget struct {
	Remaining int64
}

// Spend deducts cost from the budget and reports whether it is now
// negative (meaning the caller must suspend).
func (b *Budget) Spend(cost int64) bool {
	b.Remaining -= cost
	return b.Remaining < 0
}

// CallState is the iterator-owned continuation a suspended call stashes
// itself in. It is one struct shared by all kinds; each kind uses the
// subset of its fields it needs. Next/Find/Check take a pointer to one of
// these per caller so re-entry resumes exactly where it left off.
type CallState struct {
	// Kind-specific resumption fields. Leaf iterators use Offset/Target;
	// composite iterators additionally use Child/Inner.
	Offset int
	Target primitive.ID
	Phase  int
	Inner  *CallState
	Child  int
}

// Stats answers the four quantities spec §4.6.3 names.
type Stats struct {
	N          int64 // estimated result count
	CheckCost  int64
	NextCost   int64
	FindCost   int64
	Sorted     bool
	Direction  Direction
	Done       bool // statistics-done latch; once true, Statistics is a no-op
}

// RangeEstimate summarizes where an iterator currently stands (spec
// §4.6.9).
type RangeEstimate struct {
	Low, High        primitive.ID
	NMax             int64
	NExact           bool
	LowRising        bool
	HighFalling      bool
}

// PrimitiveSummary is the set of linkage-identifier constraints Restrict
// accepts: every acceptable result must carry these already-resolved
// linkages (NoID meaning "unconstrained").
type PrimitiveSummary struct {
	TypeID, RightID, LeftID, ScopeID primitive.ID
}

// Iterator is the dispatch contract of spec §4.6: "finish, reset, clone,
// freeze, to-string, next, find, check, statistics, idarray,
// primitive-summary, beyond, range-estimate, restrict, suspend,
// unsuspend." Not every kind implements every method meaningfully; kinds
// that have nothing useful to do for a given call return
// errs.NoSuchSource or simply a degenerate default, documented per kind.
type Iterator interface {
	// Kind identifies the dispatch-table entry this iterator belongs to,
	// used by Freeze and by composite iterators deciding how to combine
	// children.
	Kind() string

	// Next advances to, and returns, the next result in direction order.
	// Returns errs.NoMore at end of enumeration, errs.Suspend if budget
	// ran out (state is preserved in cs for re-entry), errs.Again if the
	// iterator mutated into a different kind underneath the caller (via
	// Substitute) and must be Refreshed before retrying.
	Next(budget *Budget, cs *CallState) (primitive.ID, error)

	// Find advances to the first result >= target (Forward) or <= target
	// (Backward), or errs.NoMore if none remains.
	Find(budget *Budget, cs *CallState, target primitive.ID) (primitive.ID, error)

	// Check tests membership without disturbing position.
	Check(budget *Budget, cs *CallState, id primitive.ID) error

	// Statistics computes Stats, idempotently (spec §4.6.3).
	Statistics(budget *Budget) (Stats, error)

	// Reset rewinds enumeration to the beginning.
	Reset()

	// Clone returns a new Iterator sharing this one's expensive handles
	// but advancing independently (spec §4.6.2).
	Clone() Iterator

	// Finish releases resources. Callers invoke it once per
	// Clone/original obtained; the underlying handle is only actually
	// released when the refcount reaches zero.
	Finish()

	// Freeze serializes the iterator to the three-part textual cursor
	// (spec §4.6.6).
	Freeze() (string, error)

	// String renders a short human-readable description (to-string).
	String() string

	// Suspend releases any live page-pointer-holding handles ahead of a
	// write that may shift storage (spec §4.6.4). Iterators with nothing
	// to release (null, cache-only prefix positions) implement this as a
	// no-op.
	Suspend()

	// Unsuspend reopens whatever Suspend released. If the underlying
	// source changed representation kind, Unsuspend may itself trigger a
	// Substitute; callers should treat a subsequent errs.Again from Next
	// as the signal to Refresh.
	Unsuspend() error

	// RangeEstimate summarizes current position (spec §4.6.9).
	RangeEstimate() RangeEstimate

	// Beyond reports whether no remaining result can satisfy value given
	// direction (spec §4.6.9).
	Beyond(value primitive.ID) bool

	// Restrict narrows the iterator given a primitive-summary constraint,
	// returning either itself or a replacement (spec §4.6.9).
	Restrict(summary PrimitiveSummary) Iterator
}

// errNotImplemented is an alias of errs.NoMore for operations a kind does
// not meaningfully support. Base defines no methods that return it, and no
// kind in this package currently returns it.
var errNotImplemented = errs.NoMore
