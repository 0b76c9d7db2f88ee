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
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/primitive"
)

// fixedSource is a minimal idx.Source over a fixed ascending slice, used
// to exercise Array without depending on idx/sim or idx/hm.
type fixedSource struct {
	ids []primitive.ID
}

func (f *fixedSource) Kind() idx.Kind { return idx.KindSIM }
func (f *fixedSource) Len() int       { return len(f.ids) }
func (f *fixedSource) Bounds() (int, int) { return 0, len(f.ids) }
func (f *fixedSource) At(i int) (primitive.ID, bool) {
	if i < 0 || i >= len(f.ids) {
		return primitive.NoID, false
	}
	return f.ids[i], true
}
func (f *fixedSource) Contains(id primitive.ID) bool {
	for _, x := range f.ids {
		if x == id {
			return true
		}
	}
	return false
}

func newFixedArray(ids []primitive.ID, dir Direction) *Array {
	src := &fixedSource{ids: ids}
	reopen := func() (idx.Source, error) { return src, nil }
	a := NewArray("sim", src, dir, reopen)
	if dir == Backward {
		a.Reset()
	}
	return a
}

func drain(t *testing.T, a *Array) []primitive.ID {
	t.Helper()
	budget := &Budget{Remaining: 1_000_000}
	cs := &CallState{}
	var out []primitive.ID
	for {
		id, err := a.Next(budget, cs)
		if err == errs.NoMore {
			break
		}
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func TestArrayNextForward(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 3, 5, 7}, Forward)
	require.Equal(t, []primitive.ID{1, 3, 5, 7}, drain(t, a))
}

func TestArrayNextBackward(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 3, 5, 7}, Backward)
	require.Equal(t, []primitive.ID{7, 5, 3, 1}, drain(t, a))
}

func TestArrayNextSuspendsWhenBudgetExhausted(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	budget := &Budget{Remaining: 0}
	cs := &CallState{}
	_, err := a.Next(budget, cs)
	require.ErrorIs(t, err, errs.Suspend)
}

func TestArrayFindForward(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 3, 5, 7}, Forward)
	budget := &Budget{Remaining: 1000}
	id, err := a.Find(budget, &CallState{}, 4)
	require.NoError(t, err)
	require.Equal(t, primitive.ID(5), id)
}

func TestArrayFindPastEndReturnsNoMore(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 3, 5}, Forward)
	budget := &Budget{Remaining: 1000}
	_, err := a.Find(budget, &CallState{}, 100)
	require.ErrorIs(t, err, errs.NoMore)
}

func TestArrayCheck(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 3, 5}, Forward)
	budget := &Budget{Remaining: 1000}
	require.NoError(t, a.Check(budget, &CallState{}, 3))
	require.ErrorIs(t, a.Check(budget, &CallState{}, 4), errs.NoMore)
}

func TestArrayStatistics(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3, 4}, Forward)
	stats, err := a.Statistics(&Budget{Remaining: 1000})
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.N)
	require.True(t, stats.Sorted)
	require.True(t, stats.Done)
}

func TestArrayResetRewinds(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	budget := &Budget{Remaining: 1000}
	_, err := a.Next(budget, &CallState{})
	require.NoError(t, err)
	a.Reset()
	require.Equal(t, []primitive.ID{1, 2, 3}, drain(t, a))
}

func TestArraySuspendUnsuspendReopensHandle(t *testing.T) {
	calls := 0
	src := &fixedSource{ids: []primitive.ID{1, 2, 3}}
	reopen := func() (idx.Source, error) {
		calls++
		return src, nil
	}
	a := NewArray("sim", src, Forward, reopen)
	a.Suspend()
	require.NoError(t, a.Unsuspend())
	require.Equal(t, 1, calls)
	require.Equal(t, []primitive.ID{1, 2, 3}, drain(t, a))
}

func TestArrayCloneAdvancesIndependently(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	budget := &Budget{Remaining: 1000}
	_, err := a.Next(budget, &CallState{})
	require.NoError(t, err)

	clone := a.Clone().(*Array)
	_, err = clone.Next(budget, &CallState{})
	require.NoError(t, err)
	_, err = clone.Next(budget, &CallState{})
	require.NoError(t, err)

	id, err := a.Next(budget, &CallState{})
	require.NoError(t, err)
	require.Equal(t, primitive.ID(2), id)
}

func TestArrayFreezeEncodesPositionAndBounds(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	s, err := a.Freeze()
	require.NoError(t, err)
	require.Contains(t, s, "sim/")
}

func TestArrayBeyondIsTrueOnceExhausted(t *testing.T) {
	a := newFixedArray([]primitive.ID{1, 2, 3}, Forward)
	drain(t, a)
	require.True(t, a.Beyond(100))
}
