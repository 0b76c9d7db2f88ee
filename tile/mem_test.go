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

package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemAllocatorExtendAssignsSequentialIndices(t *testing.T) {
	m := NewMemAllocator(4096)
	idx0, err := m.Extend("primitive")
	require.NoError(t, err)
	idx1, err := m.Extend("primitive")
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx0)
	require.Equal(t, uint64(1), idx1)
}

func TestMemAllocatorOpenGrowsExtentOnDemand(t *testing.T) {
	m := NewMemAllocator(4096)
	tl, err := m.Open("left", 2)
	require.NoError(t, err)
	require.Len(t, tl.Bytes(), 4096)
}

func TestMemAllocatorWriteAtThenReadAtRoundTrips(t *testing.T) {
	m := NewMemAllocator(64)
	tl, err := m.Open("hmap/0", 0)
	require.NoError(t, err)

	n, err := tl.WriteAt([]byte("hello"), 8)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = tl.ReadAt(buf, 8)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestMemAllocatorWriteAtRejectsOverflow(t *testing.T) {
	m := NewMemAllocator(8)
	tl, err := m.Open("primitive", 0)
	require.NoError(t, err)
	_, err = tl.WriteAt([]byte("too long for tile"), 0)
	require.Error(t, err)
}

func TestMemAllocatorReadAtRejectsOutOfRangeOffset(t *testing.T) {
	m := NewMemAllocator(8)
	tl, err := m.Open("primitive", 0)
	require.NoError(t, err)
	_, err = tl.ReadAt(make([]byte, 1), 100)
	require.Error(t, err)
}

func TestMemAllocatorTruncateDropsExtent(t *testing.T) {
	m := NewMemAllocator(16)
	tl, err := m.Open("left", 0)
	require.NoError(t, err)
	_, err = tl.WriteAt([]byte("data"), 0)
	require.NoError(t, err)

	require.NoError(t, m.Truncate("left"))

	reopened, err := m.Open("left", 0)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), reopened.Bytes())
}

func TestMemAllocatorDefaultsTileSizeWhenNonPositive(t *testing.T) {
	m := NewMemAllocator(0)
	require.Equal(t, DefaultTileSize, m.TileSize())
}

func TestMemAllocatorTilesAreIndependentAcrossExtents(t *testing.T) {
	m := NewMemAllocator(8)
	a, err := m.Open("a", 0)
	require.NoError(t, err)
	b, err := m.Open("b", 0)
	require.NoError(t, err)

	_, err = a.WriteAt([]byte("aaaa"), 0)
	require.NoError(t, err)

	require.Equal(t, make([]byte, 8), b.Bytes())
}
