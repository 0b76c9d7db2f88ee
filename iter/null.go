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

import "github.com/erigontech/graphd/errs"
import "github.com/erigontech/graphd/primitive"

// Null is the identity for union and the zero for intersection (spec
// §4.6.8): next/find/check always report errs.NoMore. It never holds a
// live handle, so it does not subscribe to the suspend chain.
type Null struct{ Base }

// NewNull constructs a Null iterator.
func NewNull() *Null { return &Null{Base: NewOriginal(Forward, nil)} }

func (n *Null) Kind() string { return "null" }

func (n *Null) Next(*Budget, *CallState) (primitive.ID, error) { return primitive.NoID, errs.NoMore }

func (n *Null) Find(*Budget, *CallState, primitive.ID) (primitive.ID, error) {
	return primitive.NoID, errs.NoMore
}

func (n *Null) Check(*Budget, *CallState, primitive.ID) error { return errs.NoMore }

func (n *Null) Statistics(*Budget) (Stats, error) {
	return Stats{N: 0, Sorted: true, Direction: Forward, Done: true}, nil
}

func (n *Null) Reset() {}

func (n *Null) Clone() Iterator { return &Null{Base: n.Base.CloneBase()} }

func (n *Null) Freeze() (string, error) { return "null//", nil }

func (n *Null) String() string { return "null()" }

func (n *Null) Suspend() {}

func (n *Null) Unsuspend() error { return nil }

func (n *Null) RangeEstimate() RangeEstimate {
	return RangeEstimate{Low: primitive.NoID, High: primitive.NoID, NMax: 0, NExact: true}
}

func (n *Null) Beyond(primitive.ID) bool { return true }

func (n *Null) Restrict(PrimitiveSummary) Iterator { return n }
