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

func TestThawArrayResumesAtFrozenPosition(t *testing.T) {
	ids := []primitive.ID{10, 20, 30, 40}
	src := &fixedSource{ids: ids}
	reopen := func() (idx.Source, error) { return src, nil }
	a := NewArray("sim", src, Forward, reopen)

	budget := &Budget{Remaining: 1000}
	_, err := a.Next(budget, &CallState{})
	require.NoError(t, err)
	_, err = a.Next(budget, &CallState{})
	require.NoError(t, err)

	text, err := a.Freeze()
	require.NoError(t, err)

	thawed, err := ThawArray(text, reopen, Forward)
	require.NoError(t, err)
	id, err := thawed.Next(budget, &CallState{})
	require.NoError(t, err)
	require.Equal(t, primitive.ID(30), id)
}

func TestThawArrayAtEOF(t *testing.T) {
	ids := []primitive.ID{1, 2}
	src := &fixedSource{ids: ids}
	reopen := func() (idx.Source, error) { return src, nil }
	a := NewArray("sim", src, Forward, reopen)
	budget := &Budget{Remaining: 1000}
	for {
		if _, err := a.Next(budget, &CallState{}); err == errs.NoMore {
			break
		}
	}
	text, err := a.Freeze()
	require.NoError(t, err)

	thawed, err := ThawArray(text, reopen, Forward)
	require.NoError(t, err)
	_, err = thawed.Next(budget, &CallState{})
	require.ErrorIs(t, err, errs.NoMore)
}

func TestThawArrayRejectsMalformedText(t *testing.T) {
	src := &fixedSource{ids: []primitive.ID{1}}
	reopen := func() (idx.Source, error) { return src, nil }
	_, err := ThawArray("sim/not-a-bound/0", reopen, Forward)
	require.Error(t, err)
}

func TestRecoverBitmapCursorCountsSetBits(t *testing.T) {
	src := &fixedSource{ids: []primitive.ID{5, 9, 12, 20}}
	budget := &Budget{Remaining: 1_000_000}
	cs := &CallState{}
	pos, done, err := RecoverBitmapCursor(budget, cs, src, 2)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 2, pos)
}

func TestRecoverBitmapCursorSuspendsAndResumes(t *testing.T) {
	src := &fixedSource{ids: []primitive.ID{1, 2, 3, 4, 5}}
	cs := &CallState{}
	budget := &Budget{Remaining: 2}
	_, done, err := RecoverBitmapCursor(budget, cs, src, 4)
	require.ErrorIs(t, err, errs.Suspend)
	require.False(t, done)

	budget = &Budget{Remaining: 1_000_000}
	pos, done, err := RecoverBitmapCursor(budget, cs, src, 4)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 4, pos)
}

func TestRecoverBitmapCursorNotFoundPastEnd(t *testing.T) {
	src := &fixedSource{ids: []primitive.ID{1, 2}}
	budget := &Budget{Remaining: 1_000_000}
	cs := &CallState{}
	_, _, err := RecoverBitmapCursor(budget, cs, src, 99)
	require.ErrorIs(t, err, errs.NotFound)
}
