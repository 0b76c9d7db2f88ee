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
	"fmt"
	"sort"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/primitive"
)

// Reopener reacquires a fresh idx.Source handle after a Suspend/Unsuspend
// cycle, or after the backing source changed representation (the SIM->BM
// transition of spec §4.4). It is supplied by whoever constructs the
// iterator (graphdb's LinkageIterator and HashIterator), since only the
// caller knows where the handle came from.
type Reopener func() (idx.Source, error)

// Array is the leaf iterator shared by SIM and HM (spec §4.3, §4.5: "the
// BM iterator [is] otherwise structurally equivalent to a SIM iterator").
// A promoted BM source is iterated by this same Array through bm's
// idx.Source handle; there is no separate bm iterator type. Cursor
// recovery across a SIM->BM promotion is RecoverBitmapCursor in thaw.go.
// Array tolerates its handle becoming nil across suspend/resume.
type Array struct {
	Base
	kindName string
	reopen   Reopener

	src   idx.Source // nil while suspended
	pos   int        // next position to return, in Base.Direction() order
	eof   bool
	low, high primitive.ID // intrinsic bounds; NoID means unbounded
}

// NewArray constructs an original array iterator over src (already
// bounded to the caller's [low, high) window).
func NewArray(kindName string, src idx.Source, dir Direction, reopen Reopener) *Array {
	return &Array{
		Base:     NewOriginal(dir, nil),
		kindName: kindName,
		reopen:   reopen,
		src:      src,
		low:      primitive.NoID,
		high:     primitive.NoID,
	}
}

func (a *Array) Kind() string { return a.kindName }

func (a *Array) ensure() error {
	if a.src != nil {
		return nil
	}
	if a.reopen == nil {
		return errs.Corrupt
	}
	src, err := a.reopen()
	if err != nil {
		return err
	}
	a.src = src
	return nil
}

func (a *Array) Next(budget *Budget, cs *CallState) (primitive.ID, error) {
	if a.eof {
		return primitive.NoID, errs.NoMore
	}
	if err := a.ensure(); err != nil {
		return primitive.NoID, err
	}
	if budget.Spend(1) {
		cs.Offset = a.pos
		return primitive.NoID, errs.Suspend
	}
	lo, hi := a.src.Bounds()
	cur := a.pos
	if a.Direction() == Forward {
		if cur >= hi {
			a.eof = true
			return primitive.NoID, errs.NoMore
		}
		id, ok := a.src.At(cur)
		if !ok {
			a.eof = true
			return primitive.NoID, errs.NoMore
		}
		a.pos++
		cs.Offset = 0
		return id, nil
	}
	if cur < lo {
		a.eof = true
		return primitive.NoID, errs.NoMore
	}
	id, ok := a.src.At(cur)
	if !ok {
		a.eof = true
		return primitive.NoID, errs.NoMore
	}
	a.pos--
	return id, nil
}

func (a *Array) Find(budget *Budget, cs *CallState, target primitive.ID) (primitive.ID, error) {
	if err := a.ensure(); err != nil {
		return primitive.NoID, err
	}
	cost := int64(1)
	if budget.Spend(cost) {
		cs.Target = target
		return primitive.NoID, errs.Suspend
	}
	lo, hi := a.src.Bounds()
	if a.Direction() == Forward {
		i := sort.Search(hi-lo, func(i int) bool {
			id, _ := a.src.At(lo + i)
			return id >= target
		}) + lo
		if i >= hi {
			a.eof = true
			return primitive.NoID, errs.NoMore
		}
		id, _ := a.src.At(i)
		a.pos = i + 1
		return id, nil
	}
	i := sort.Search(hi-lo, func(i int) bool {
		id, _ := a.src.At(lo + i)
		return id > target
	}) + lo - 1
	if i < lo {
		a.eof = true
		return primitive.NoID, errs.NoMore
	}
	id, _ := a.src.At(i)
	a.pos = i - 1
	return id, nil
}

func (a *Array) Check(budget *Budget, cs *CallState, id primitive.ID) error {
	if err := a.ensure(); err != nil {
		return err
	}
	if budget.Spend(1) {
		cs.Target = id
		return errs.Suspend
	}
	if a.src.Contains(id) {
		return nil
	}
	return errs.NoMore
}

func (a *Array) Statistics(budget *Budget) (Stats, error) {
	if err := a.ensure(); err != nil {
		return Stats{}, err
	}
	n := int64(a.src.Len())
	return Stats{
		N:         n,
		CheckCost: 1,
		NextCost:  1,
		FindCost:  log2Cost(n),
		Sorted:    true,
		Direction: a.Direction(),
		Done:      true,
	}, nil
}

func log2Cost(n int64) int64 {
	c := int64(1)
	for n > 1 {
		n >>= 1
		c++
	}
	return c
}

func (a *Array) Reset() {
	if a.Direction() == Forward {
		a.pos = 0
	} else if a.src != nil {
		_, hi := a.src.Bounds()
		a.pos = hi - 1
	}
	a.eof = false
}

func (a *Array) Clone() Iterator {
	return &Array{
		Base:     a.Base.CloneBase(),
		kindName: a.kindName,
		reopen:   a.reopen,
		src:      a.src,
		pos:      a.pos,
		eof:      a.eof,
		low:      a.low,
		high:     a.high,
	}
}

func (a *Array) Freeze() (string, error) {
	pos := "eof"
	if !a.eof {
		pos = fmt.Sprintf("%d", a.pos)
	}
	return fmt.Sprintf("%s/%d-%d/%s", a.kindName, a.low, a.high, pos), nil
}

func (a *Array) String() string {
	return fmt.Sprintf("%s(pos=%d,eof=%v)", a.kindName, a.pos, a.eof)
}

// Suspend releases the live handle (spec §4.6.4). The next read call's
// ensure() reopens it via reopen.
func (a *Array) Suspend() { a.src = nil }

// Unsuspend reopens the handle eagerly rather than lazily, so a caller
// that wants to eagerly validate liveness can do so.
func (a *Array) Unsuspend() error { return a.ensure() }

func (a *Array) RangeEstimate() RangeEstimate {
	lo, hi := a.low, a.high
	if a.Direction() == Forward {
		return RangeEstimate{Low: lo, High: hi, NMax: -1, LowRising: true}
	}
	return RangeEstimate{Low: lo, High: hi, NMax: -1, HighFalling: true}
}

func (a *Array) Beyond(value primitive.ID) bool {
	if a.eof {
		return true
	}
	if a.Direction() == Forward {
		return a.high != primitive.NoID && a.high <= value
	}
	return a.low != primitive.NoID && value < a.low
}

func (a *Array) Restrict(summary PrimitiveSummary) Iterator { return a }
