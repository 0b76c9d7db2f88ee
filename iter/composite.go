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
	"strings"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// Or merges children in ascending (or descending, per Direction) id
// order, deduplicating. Used both directly and as the assembled result
// of the prefix iterator's make_or (spec §4.6.7).
type Or struct {
	Base
	children []Iterator
	front    []primitive.ID // one lookahead id per child, NoID if exhausted
	primed   bool
}

func NewOr(dir Direction, children ...Iterator) *Or {
	return &Or{Base: NewOriginal(dir, nil), children: children}
}

func (o *Or) Kind() string { return "or" }

func (o *Or) prime(budget *Budget) error {
	if o.primed {
		return nil
	}
	o.front = make([]primitive.ID, len(o.children))
	for i, c := range o.children {
		id, err := c.Next(budget, &CallState{})
		if err != nil && err != errs.NoMore {
			return err
		}
		if err == errs.NoMore {
			o.front[i] = primitive.NoID
		} else {
			o.front[i] = id
		}
	}
	o.primed = true
	return nil
}

func (o *Or) best() (int, primitive.ID) {
	bestI := -1
	var best primitive.ID
	for i, id := range o.front {
		if id == primitive.NoID {
			continue
		}
		if bestI == -1 {
			bestI, best = i, id
			continue
		}
		if o.Direction() == Forward {
			if id < best {
				bestI, best = i, id
			}
		} else if id > best {
			bestI, best = i, id
		}
	}
	return bestI, best
}

func (o *Or) Next(budget *Budget, cs *CallState) (primitive.ID, error) {
	if err := o.prime(budget); err != nil {
		return primitive.NoID, err
	}
	i, id := o.best()
	if i == -1 {
		return primitive.NoID, errs.NoMore
	}
	// advance every child currently sitting on id (dedup across children)
	for j, fid := range o.front {
		if fid != id {
			continue
		}
		next, err := o.children[j].Next(budget, &CallState{})
		if err == errs.NoMore {
			o.front[j] = primitive.NoID
		} else if err != nil {
			return primitive.NoID, err
		} else {
			o.front[j] = next
		}
	}
	return id, nil
}

func (o *Or) Find(budget *Budget, cs *CallState, target primitive.ID) (primitive.ID, error) {
	if err := o.prime(budget); err != nil {
		return primitive.NoID, err
	}
	for j, c := range o.children {
		if o.front[j] == primitive.NoID {
			continue
		}
		cmp := o.front[j]
		needsSeek := (o.Direction() == Forward && cmp < target) || (o.Direction() == Backward && cmp > target)
		if !needsSeek {
			continue
		}
		id, err := c.Find(budget, &CallState{}, target)
		if err == errs.NoMore {
			o.front[j] = primitive.NoID
		} else if err != nil {
			return primitive.NoID, err
		} else {
			o.front[j] = id
		}
	}
	return o.Next(budget, cs)
}

func (o *Or) Check(budget *Budget, cs *CallState, id primitive.ID) error {
	for _, c := range o.children {
		if err := c.Check(budget, &CallState{}, id); err == nil {
			return nil
		} else if err != errs.NoMore {
			return err
		}
	}
	return errs.NoMore
}

func (o *Or) Statistics(budget *Budget) (Stats, error) {
	var n int64
	for _, c := range o.children {
		s, err := c.Statistics(budget)
		if err != nil {
			return Stats{}, err
		}
		n += s.N
	}
	return Stats{N: n, CheckCost: int64(len(o.children)), NextCost: int64(len(o.children)), Sorted: true, Direction: o.Direction(), Done: true}, nil
}

func (o *Or) Reset() {
	for _, c := range o.children {
		c.Reset()
	}
	o.primed = false
}

func (o *Or) Clone() Iterator {
	clones := make([]Iterator, len(o.children))
	for i, c := range o.children {
		clones[i] = c.Clone()
	}
	return &Or{Base: o.Base.CloneBase(), children: clones}
}

func (o *Or) Finish() {
	for _, c := range o.children {
		c.Finish()
	}
	o.Base.Finish()
}

func (o *Or) Freeze() (string, error) {
	parts := make([]string, len(o.children))
	for i, c := range o.children {
		s, err := c.Freeze()
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "or/" + strings.Join(parts, "|") + "/", nil
}

func (o *Or) String() string { return fmt.Sprintf("or(%d children)", len(o.children)) }

func (o *Or) Suspend() {
	for _, c := range o.children {
		c.Suspend()
	}
}

func (o *Or) Unsuspend() error {
	for _, c := range o.children {
		if err := c.Unsuspend(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Or) RangeEstimate() RangeEstimate { return o.Base.DefaultRangeEstimate() }

func (o *Or) Beyond(value primitive.ID) bool {
	for _, c := range o.children {
		if !c.Beyond(value) {
			return false
		}
	}
	return true
}

func (o *Or) Restrict(summary PrimitiveSummary) Iterator {
	for i, c := range o.children {
		o.children[i] = c.Restrict(summary)
	}
	return o
}

// And is the ordered intersection of its children; spec §4.4's
// intersect(A,B,...) fast path for a SIM/BM pair is the direct,
// allocation-light version of this for exactly two children.
type And struct {
	Base
	children []Iterator
}

func NewAnd(dir Direction, children ...Iterator) *And {
	return &And{Base: NewOriginal(dir, nil), children: children}
}

func (a *And) Kind() string { return "and" }

func (a *And) Next(budget *Budget, cs *CallState) (primitive.ID, error) {
	if len(a.children) == 0 {
		return primitive.NoID, errs.NoMore
	}
	id, err := a.children[0].Next(budget, &CallState{})
	if err != nil {
		return primitive.NoID, err
	}
	for {
		agree := true
		for _, c := range a.children[1:] {
			found, err := c.Find(budget, &CallState{}, id)
			if err == errs.NoMore {
				return primitive.NoID, errs.NoMore
			}
			if err != nil {
				return primitive.NoID, err
			}
			if found != id {
				agree = false
				id = found
				break
			}
		}
		if agree {
			return id, nil
		}
		var err error
		id, err = a.children[0].Find(budget, &CallState{}, id)
		if err != nil {
			return primitive.NoID, err
		}
	}
}

func (a *And) Find(budget *Budget, cs *CallState, target primitive.ID) (primitive.ID, error) {
	id := target
	for {
		agree := true
		for _, c := range a.children {
			found, err := c.Find(budget, &CallState{}, id)
			if err != nil {
				return primitive.NoID, err
			}
			if found != id {
				agree = false
				id = found
			}
		}
		if agree {
			return id, nil
		}
	}
}

func (a *And) Check(budget *Budget, cs *CallState, id primitive.ID) error {
	for _, c := range a.children {
		if err := c.Check(budget, &CallState{}, id); err != nil {
			return err
		}
	}
	return nil
}

func (a *And) Statistics(budget *Budget) (Stats, error) {
	var min int64 = -1
	for _, c := range a.children {
		s, err := c.Statistics(budget)
		if err != nil {
			return Stats{}, err
		}
		if min == -1 || s.N < min {
			min = s.N
		}
	}
	return Stats{N: min, CheckCost: int64(len(a.children)), NextCost: int64(len(a.children)), Sorted: true, Done: true}, nil
}

func (a *And) Reset() {
	for _, c := range a.children {
		c.Reset()
	}
}

func (a *And) Clone() Iterator {
	clones := make([]Iterator, len(a.children))
	for i, c := range a.children {
		clones[i] = c.Clone()
	}
	return &And{Base: a.Base.CloneBase(), children: clones}
}

func (a *And) Finish() {
	for _, c := range a.children {
		c.Finish()
	}
	a.Base.Finish()
}

func (a *And) Freeze() (string, error) {
	parts := make([]string, len(a.children))
	for i, c := range a.children {
		s, err := c.Freeze()
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "and/" + strings.Join(parts, "|") + "/", nil
}

func (a *And) String() string { return fmt.Sprintf("and(%d children)", len(a.children)) }

func (a *And) Suspend() {
	for _, c := range a.children {
		c.Suspend()
	}
}

func (a *And) Unsuspend() error {
	for _, c := range a.children {
		if err := c.Unsuspend(); err != nil {
			return err
		}
	}
	return nil
}

func (a *And) RangeEstimate() RangeEstimate { return a.Base.DefaultRangeEstimate() }

func (a *And) Beyond(value primitive.ID) bool {
	for _, c := range a.children {
		if c.Beyond(value) {
			return true
		}
	}
	return false
}

func (a *And) Restrict(summary PrimitiveSummary) Iterator {
	for i, c := range a.children {
		a.children[i] = c.Restrict(summary)
	}
	return a
}
