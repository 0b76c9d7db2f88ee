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

package indexer

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/bm"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/idx/sim"
	"github.com/erigontech/graphd/primitive"
	"github.com/erigontech/graphd/tile"
)

func newTestLinkage(t *testing.T, name string) (*Linkage, *sim.Map, *bm.Map) {
	t.Helper()
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(4096)
	arrays, err := sim.Open(alloc, fs, "/db", name)
	require.NoError(t, err)
	bitmaps, err := bm.Open(alloc, fs, "/db", name)
	require.NoError(t, err)
	pick := func(rec *primitive.Record) (primitive.ID, primitive.ID, bool) {
		if rec.RightID == primitive.NoID {
			return 0, 0, false
		}
		return rec.RightID, rec.ID, true
	}
	return NewLinkage(name, arrays, bitmaps, pick), arrays, bitmaps
}

func TestLinkageStaysSIMBelowThreshold(t *testing.T) {
	l, arrays, bitmaps := newTestLinkage(t, "right")

	for i := 0; i < 10; i++ {
		rec := &primitive.Record{ID: primitive.ID(i + 1), RightID: 99}
		require.NoError(t, l.OnCommit(rec))
	}
	arr, err := arrays.ArrayOf(99)
	require.NoError(t, err)
	require.Len(t, arr, 10)
	_, err = bitmaps.Handle(99)
	require.Error(t, err)
}

func TestLinkageWithVIPObservesFanout(t *testing.T) {
	l, _, _ := newTestLinkage(t, "right")
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(4096)
	h, err := hm.Open(alloc, fs, "/db", "hmap")
	require.NoError(t, err)

	v := NewVIP("right", h)
	l.WithVIP(v)

	for i := 0; i < VIPFanoutThreshold; i++ {
		rec := &primitive.Record{ID: primitive.ID(i + 1), RightID: 7, TypeID: 3}
		require.NoError(t, l.OnCommit(rec))
	}
	require.True(t, v.IsPromoted(7, 3))
}

func TestGenerationChainAndLastN(t *testing.T) {
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(4096)
	h, err := hm.Open(alloc, fs, "/db", "hmap")
	require.NoError(t, err)

	g := NewGeneration(h)
	lineage := primitive.ID(1)
	require.NoError(t, g.OnCommit(&primitive.Record{ID: 1, LineageID: lineage}))
	require.NoError(t, g.OnCommit(&primitive.Record{ID: 2, LineageID: lineage}))
	require.NoError(t, g.OnCommit(&primitive.Record{ID: 3, LineageID: lineage}))

	last, n, err := g.LastN(lineage)
	require.NoError(t, err)
	require.Equal(t, primitive.ID(3), last)
	require.Equal(t, 3, n)

	nth, err := g.NthGeneration(lineage, 0)
	require.NoError(t, err)
	require.Equal(t, primitive.ID(1), nth)
}

func TestDeadMarksImmediatePredecessor(t *testing.T) {
	fs := afero.NewMemMapFs()
	d, err := NewDeadFile(fs, "/db/dead")
	require.NoError(t, err)

	lineage := primitive.ID(1)
	require.NoError(t, d.OnCommit(&primitive.Record{ID: 1, LineageID: lineage}))
	require.False(t, d.IsDead(1))
	require.NoError(t, d.OnCommit(&primitive.Record{ID: 2, LineageID: lineage}))
	require.True(t, d.IsDead(1))
	require.False(t, d.IsDead(2))
}

func TestBinSuppressesExactBoundaryMatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(4096)
	h, err := hm.Open(alloc, fs, "/db", "hmap")
	require.NoError(t, err)

	b := NewBin(h)
	// "m" is one of stringBinBoundaries itself, so the exact-boundary rule
	// suppresses indexing and no bin array is ever created for it.
	require.NoError(t, b.OnCommit(&primitive.Record{ID: 1, Value: []byte("m")}))
	_, err = h.ArrayOf(hm.Key{Tag: hm.TagBin, Bytes: append([]byte{'s'}, []byte("m")...)})
	require.ErrorIs(t, err, errs.NoSuchSource)

	// A value strictly inside a bin (not equal to its lower boundary) is
	// indexed normally.
	require.NoError(t, b.OnCommit(&primitive.Record{ID: 2, Value: []byte("hello")}))
	arr, err := h.ArrayOf(hm.Key{Tag: hm.TagBin, Bytes: append([]byte{'s'}, stringBinKey([]byte("hello"))...)})
	require.NoError(t, err)
	require.Equal(t, []primitive.ID{2}, arr)
}
