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

package hm

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
	"github.com/erigontech/graphd/tile"
)

func newTestMap(t *testing.T) *Map {
	t.Helper()
	fs := afero.NewMemMapFs()
	alloc := tile.NewMemAllocator(65536)
	m, err := Open(alloc, fs, "/db", "hmap")
	require.NoError(t, err)
	return m
}

func TestMapAddAndArrayOf(t *testing.T) {
	m := newTestMap(t)
	key := Key{Tag: TagName, Bytes: []byte("alice")}
	_, err := m.Add(key, 1)
	require.NoError(t, err)
	_, err = m.Add(key, 2)
	require.NoError(t, err)

	arr, err := m.ArrayOf(key)
	require.NoError(t, err)
	require.Equal(t, []primitive.ID{1, 2}, arr)
}

func TestMapKeysDifferingOnlyInTagKeepSeparateArrays(t *testing.T) {
	m := newTestMap(t)
	a := Key{Tag: TagName, Bytes: []byte("alice")}
	b := Key{Tag: TagValue, Bytes: []byte("alice")}
	_, err := m.Add(a, 1)
	require.NoError(t, err)
	_, err = m.Add(b, 2)
	require.NoError(t, err)

	arrA, err := m.ArrayOf(a)
	require.NoError(t, err)
	arrB, err := m.ArrayOf(b)
	require.NoError(t, err)
	require.Equal(t, []primitive.ID{1}, arrA)
	require.Equal(t, []primitive.ID{2}, arrB)
}

func TestMapRemove(t *testing.T) {
	m := newTestMap(t)
	key := Key{Tag: TagWord, Bytes: []byte("hello")}
	_, err := m.Add(key, 7)
	require.NoError(t, err)
	require.NoError(t, m.Remove(key, 7))

	arr, err := m.ArrayOf(key)
	require.NoError(t, err)
	require.Empty(t, arr)
}

func TestMapHandleUnknownKeyFails(t *testing.T) {
	m := newTestMap(t)
	_, err := m.Handle(Key{Tag: TagName, Bytes: []byte("nobody")})
	require.ErrorIs(t, err, errs.NoSuchSource)
}

func TestKeysWithTagFiltersByTag(t *testing.T) {
	m := newTestMap(t)
	_, err := m.Add(Key{Tag: TagWord, Bytes: []byte("cat")}, 1)
	require.NoError(t, err)
	_, err = m.Add(Key{Tag: TagWord, Bytes: []byte("car")}, 2)
	require.NoError(t, err)
	_, err = m.Add(Key{Tag: TagName, Bytes: []byte("cat")}, 3)
	require.NoError(t, err)

	keys := m.KeysWithTag(TagWord)
	require.Len(t, keys, 2)
	for _, k := range keys {
		require.Equal(t, TagWord, k.Tag)
	}
}

func TestGenerationKeyRoundTripsThroughNthAndIndex(t *testing.T) {
	m := newTestMap(t)
	lineage := primitive.ID(5)
	ids := []primitive.ID{5, 9, 12}
	for _, id := range ids {
		_, err := m.Add(GenerationKey(lineage), id)
		require.NoError(t, err)
	}

	got, err := m.NthGeneration(lineage, 1)
	require.NoError(t, err)
	require.Equal(t, primitive.ID(9), got)

	idx, err := m.GenerationIndex(lineage, 12)
	require.NoError(t, err)
	require.Equal(t, 2, idx)

	_, err = m.GenerationIndex(lineage, 999)
	require.ErrorIs(t, err, errs.NotFound)
}

func TestNthGenerationOutOfRangeFails(t *testing.T) {
	m := newTestMap(t)
	_, err := m.Add(GenerationKey(1), 1)
	require.NoError(t, err)
	_, err = m.NthGeneration(1, 5)
	require.ErrorIs(t, err, errs.NotFound)
}

func TestMapFlush(t *testing.T) {
	m := newTestMap(t)
	_, err := m.Add(Key{Tag: TagName, Bytes: []byte("x")}, 1)
	require.NoError(t, err)
	require.NoError(t, m.Flush())
}
