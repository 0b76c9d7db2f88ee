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

package bm

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/primitive"
	"github.com/erigontech/graphd/tile"
)

func newTestMap(t *testing.T) (*Map, afero.Fs, *tile.MemAllocator) {
	t.Helper()
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(4096)
	m, err := Open(alloc, fs, "/db", "left")
	require.NoError(t, err)
	return m, fs, alloc
}

func TestMapAddRequiresPriorPromotion(t *testing.T) {
	m, _, _ := newTestMap(t)
	err := m.Add(10, 1)
	require.ErrorIs(t, err, errs.NoSuchSource)
}

func TestPromoteFromSeedsBitmap(t *testing.T) {
	m, _, _ := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1, 2, 3})
	h, err := m.Handle(10)
	require.NoError(t, err)
	require.Equal(t, idx.KindBM, h.Kind())
	require.Equal(t, 3, h.Len())
	require.True(t, h.Contains(2))
	require.False(t, h.Contains(99))
}

func TestMapAddAfterPromotion(t *testing.T) {
	m, _, _ := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1, 2})
	require.NoError(t, m.Add(10, 3))
	h, err := m.Handle(10)
	require.NoError(t, err)
	require.True(t, h.Contains(3))
}

func TestMapAddRejectsDuplicate(t *testing.T) {
	m, _, _ := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1})
	err := m.Add(10, 1)
	require.ErrorIs(t, err, errs.Exists)
}

func TestMapRemove(t *testing.T) {
	m, _, _ := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1, 2})
	require.NoError(t, m.Remove(10, 1))
	h, err := m.Handle(10)
	require.NoError(t, err)
	require.False(t, h.Contains(1))
	require.Equal(t, 1, h.Len())
}

func TestMapRemoveUnknownTargetFails(t *testing.T) {
	m, _, _ := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1})
	err := m.Remove(10, 2)
	require.ErrorIs(t, err, errs.NotFound)
}

func TestMapFlushPersistsAcrossReopen(t *testing.T) {
	m, fs, alloc := newTestMap(t)
	m.PromoteFrom(10, []primitive.ID{1, 2, 3})
	require.NoError(t, m.Flush())

	reopened, err := Open(alloc, fs, "/db", "left")
	require.NoError(t, err)
	h, err := reopened.Handle(10)
	require.NoError(t, err)
	require.Equal(t, 3, h.Len())
	require.True(t, h.Contains(2))
}

func TestIntersectSortedMatchesBitmapMembership(t *testing.T) {
	a := []primitive.ID{1, 2, 3, 4, 5}
	b := roaring.New()
	b.AddMany([]uint32{2, 4, 6})

	out := make([]primitive.ID, 10)
	got, err := IntersectSorted(a, b, out)
	require.NoError(t, err)
	require.Equal(t, []primitive.ID{2, 4}, got)
}

func TestIntersectSortedReportsTooMany(t *testing.T) {
	a := []primitive.ID{1, 2, 3}
	b := roaring.New()
	b.AddMany([]uint32{1, 2, 3})

	out := make([]primitive.ID, 1)
	_, err := IntersectSorted(a, b, out)
	require.ErrorIs(t, err, errs.TooMany)
}
