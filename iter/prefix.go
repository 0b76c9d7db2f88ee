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

	arc "github.com/hashicorp/golang-lru/arc/v2"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// prefixCacheSize is the original-only cache bound of spec §4.6.7
// ("bounded at ~1,048,576 entries").
const prefixCacheSize = 1 << 20

// PrefixState is the per-clone state machine of spec §4.6.7.
type PrefixState int

const (
	PrefixNone PrefixState = iota
	PrefixCache
	PrefixOr
	PrefixEOF
)

// CompletionSource enumerates every prefix completion's own iterator; the
// word index (an external collaborator for long prefixes) and the
// per-completion HM iterators both satisfy this via a plain slice.
type CompletionSource func() ([]Iterator, error)

// Prefix represents "values beginning with prefix S" for short S (spec
// §4.6.7). Construction assembles an Or of the per-completion iterators;
// the original caches (offset -> id) so clones can answer purely from
// memory until the cache is exhausted.
type Prefix struct {
	Base
	prefix string

	// shared fields, handed to every clone. Any Prefix, original or clone,
	// that reads past the cached range through its own or-clone adds the
	// ids it computes to cache.
	cache     *arc.ARCCache[int, primitive.ID]
	or        Iterator
	completed bool

	state  PrefixState
	offset int
	orClone Iterator
}

// NewPrefix begins assembling a prefix iterator. Construction finishes
// with a GrowOr call that reports done; until then Next, Check and
// Statistics return errs.Suspend.
func NewPrefix(prefix string) (*Prefix, error) {
	cache, err := arc.NewARC[int, primitive.ID](prefixCacheSize)
	if err != nil {
		return nil, err
	}
	return &Prefix{
		Base:   NewOriginal(Forward, nil),
		prefix: prefix,
		cache:  cache,
	}, nil
}

// GrowOr charges len(completions) against budget. If that exhausts the
// budget it builds nothing and returns false; otherwise it builds the
// shared Or over all completions in one step and returns true. If exactly
// one completion existed, the Prefix substitutes itself with that child
// (spec §4.6.7: "if it collapsed to a single child, substitutes itself
// with the child") — represented here by Collapsed returning non-nil.
func (p *Prefix) GrowOr(budget *Budget, completions []Iterator) (done bool) {
	if budget.Spend(int64(len(completions))) {
		return false
	}
	if len(completions) == 1 {
		p.or = completions[0]
	} else {
		p.or = NewOr(Forward, completions...)
	}
	p.completed = true
	return true
}

// Collapsed reports the single child this Prefix substituted itself with,
// if construction found exactly one completion.
func (p *Prefix) Collapsed() (Iterator, bool) {
	if !p.completed {
		return nil, false
	}
	if _, ok := p.or.(*Or); ok {
		return nil, false
	}
	return p.or, true
}

func (p *Prefix) Kind() string { return "prefix" }

func (p *Prefix) Next(budget *Budget, cs *CallState) (primitive.ID, error) {
	if !p.completed {
		return primitive.NoID, errs.Suspend
	}
	switch p.state {
	case PrefixNone, PrefixCache:
		if id, ok := p.cache.Get(p.offset); ok {
			p.state = PrefixCache
			p.offset++
			return id, nil
		}
		p.state = PrefixOr
		if p.orClone == nil {
			p.orClone = p.or.Clone()
			// Skip the entries this Prefix already served from the cache.
			for i := 0; i < p.offset; i++ {
				if _, err := p.orClone.Next(budget, &CallState{}); err != nil {
					p.orClone.Finish()
					p.orClone = nil
					p.state = PrefixNone
					if err == errs.NoMore {
						p.state = PrefixEOF
					}
					return primitive.NoID, err
				}
			}
		}
		fallthrough
	case PrefixOr:
		id, err := p.orClone.Next(budget, &CallState{})
		if err == errs.NoMore {
			p.state = PrefixEOF
			return primitive.NoID, errs.NoMore
		}
		if err != nil {
			return primitive.NoID, err
		}
		p.cache.Add(p.offset, id)
		p.offset++
		return id, nil
	default:
		return primitive.NoID, errs.NoMore
	}
}

func (p *Prefix) Find(budget *Budget, cs *CallState, target primitive.ID) (primitive.ID, error) {
	// Enumeration follows the or's ascending id order; Find does not seek
	// within it but scans forward via Next until it reaches an id >= target.
	for {
		id, err := p.Next(budget, cs)
		if err != nil {
			return primitive.NoID, err
		}
		if id >= target {
			return id, nil
		}
	}
}

func (p *Prefix) Check(budget *Budget, cs *CallState, id primitive.ID) error {
	if !p.completed {
		return errs.Suspend
	}
	return p.or.Check(budget, &CallState{}, id)
}

func (p *Prefix) Statistics(budget *Budget) (Stats, error) {
	if !p.completed {
		return Stats{}, errs.Suspend
	}
	return p.or.Statistics(budget)
}

func (p *Prefix) Reset() {
	p.state = PrefixNone
	p.offset = 0
	p.orClone = nil
}

func (p *Prefix) Clone() Iterator {
	return &Prefix{
		Base:   p.Base.CloneBase(),
		prefix: p.prefix,
		cache:  p.cache,
		or:     p.or,
		completed: p.completed,
		state:  PrefixNone,
	}
}

func (p *Prefix) Finish() {
	if p.orClone != nil {
		p.orClone.Finish()
	}
	p.Base.Finish()
}

func (p *Prefix) Freeze() (string, error) {
	return fmt.Sprintf("prefix/%s/%d", p.prefix, p.offset), nil
}

func (p *Prefix) String() string { return fmt.Sprintf("prefix(%q)", p.prefix) }

// Suspend/Unsuspend: the cache holds plain ids, not live handles, so only
// the lazily-cloned or-iterator (when present) needs to participate in
// the suspend chain (spec §4.6.4: "prefix-at-cache do not subscribe").
func (p *Prefix) Suspend() {
	if p.orClone != nil {
		p.orClone.Suspend()
	}
}

func (p *Prefix) Unsuspend() error {
	if p.orClone != nil {
		return p.orClone.Unsuspend()
	}
	return nil
}

func (p *Prefix) RangeEstimate() RangeEstimate { return p.Base.DefaultRangeEstimate() }

func (p *Prefix) Beyond(primitive.ID) bool { return p.state == PrefixEOF }

func (p *Prefix) Restrict(summary PrimitiveSummary) Iterator { return p }
