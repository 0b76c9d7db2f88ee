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
	"strconv"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/primitive"
)

// ThawArray rebuilds an Array iterator from the cursor text Array.Freeze
// produced: kindName/low-high/position. A numeric position is restored
// directly as the array offset; no seek is performed and the offset is not
// checked against the reopened source. "eof" restores an exhausted
// iterator.
func ThawArray(text string, reopen Reopener, dir Direction) (*Array, error) {
	c := newCursorReader(text)
	kindName, ok := c.takeUntil('/')
	if !ok {
		return nil, errs.Syntax
	}
	lo, hi, err := c.LowHigh()
	if err != nil {
		return nil, err
	}
	posTok := c.rest
	c.rest = ""

	src, err := reopen()
	if err != nil {
		return nil, err
	}
	a := &Array{
		Base:     NewOriginal(dir, nil),
		kindName: kindName,
		reopen:   reopen,
		src:      src,
		low:      lo,
		high:     hi,
	}
	if posTok == "eof" {
		a.eof = true
		return a, nil
	}
	offset, err := strconv.Atoi(posTok)
	if err != nil {
		return nil, errs.Syntax
	}
	a.pos = offset
	return a, nil
}

// RecoverBitmapCursor implements spec §4.4's cursor-recovery protocol: a
// position frozen while the source was a SIM array names a sorted-map
// offset, which does not directly name a bit once the source has been
// promoted to a bitmap. The recovery state walks the bitmap from the
// start, counting set bits, until it has counted `offset` of them,
// budget-charged per bit tested; it can suspend and resume across budget
// exhaustion via cs.Offset holding the walk position and cs.Target
// holding the running count.
func RecoverBitmapCursor(budget *Budget, cs *CallState, src idx.Source, offset int) (pos int, done bool, err error) {
	lo, hi := src.Bounds()
	walk := cs.Offset
	if walk == 0 && cs.Phase == 0 {
		walk = lo
	}
	count := int(cs.Target)
	for walk < hi {
		if budget.Spend(1) {
			cs.Offset = walk
			cs.Target = primitive.ID(count)
			cs.Phase = 1
			return 0, false, errs.Suspend
		}
		if count == offset {
			return walk, true, nil
		}
		count++
		walk++
	}
	return 0, false, errs.NotFound
}
