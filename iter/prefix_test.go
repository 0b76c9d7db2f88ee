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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

func TestPrefixNextBeforeGrowOrSuspends(t *testing.T) {
	p, err := NewPrefix("ca")
	require.NoError(t, err)
	_, err = p.Next(&Budget{Remaining: 1000}, &CallState{})
	require.ErrorIs(t, err, errs.Suspend)
}

func TestPrefixGrowOrThenDrains(t *testing.T) {
	p, err := NewPrefix("ca")
	require.NoError(t, err)
	a := newFixedArray([]primitive.ID{1, 3}, Forward)
	b := newFixedArray([]primitive.ID{2}, Forward)

	budget := &Budget{Remaining: 1000}
	require.True(t, p.GrowOr(budget, []Iterator{a, b}))

	cs := &CallState{}
	var out []primitive.ID
	for {
		id, err := p.Next(budget, cs)
		if err == errs.NoMore {
			break
		}
		require.NoError(t, err)
		out = append(out, id)
	}
	require.Equal(t, []primitive.ID{1, 2, 3}, out)
}

func TestPrefixCollapsesToSingleChild(t *testing.T) {
	p, err := NewPrefix("cat")
	require.NoError(t, err)
	only := newFixedArray([]primitive.ID{1, 2}, Forward)

	budget := &Budget{Remaining: 1000}
	require.True(t, p.GrowOr(budget, []Iterator{only}))

	child, ok := p.Collapsed()
	require.True(t, ok)
	require.Same(t, Iterator(only), child)
}

func TestPrefixNoCollapseWithMultipleChildren(t *testing.T) {
	p, err := NewPrefix("cat")
	require.NoError(t, err)
	a := newFixedArray([]primitive.ID{1}, Forward)
	b := newFixedArray([]primitive.ID{2}, Forward)

	budget := &Budget{Remaining: 1000}
	require.True(t, p.GrowOr(budget, []Iterator{a, b}))

	_, ok := p.Collapsed()
	require.False(t, ok)
}

func TestPrefixCachesResultsForClone(t *testing.T) {
	p, err := NewPrefix("ca")
	require.NoError(t, err)
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	budget := &Budget{Remaining: 1000}
	require.True(t, p.GrowOr(budget, []Iterator{a}))

	// Drain the original so the cache is fully populated.
	cs := &CallState{}
	for {
		if _, err := p.Next(budget, cs); err == errs.NoMore {
			break
		}
	}

	clone := p.Clone().(*Prefix)
	id, err := clone.Next(budget, &CallState{})
	require.NoError(t, err)
	require.Equal(t, primitive.ID(1), id)
}
