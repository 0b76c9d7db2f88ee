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

	"github.com/erigontech/graphd/primitive"
)

func TestCellGetReturnsCurrentOccupant(t *testing.T) {
	a := newFixedArray([]primitive.ID{1}, Forward)
	cell := NewCell(a)
	it, gen := cell.Get()
	require.Same(t, Iterator(a), it)
	require.Equal(t, uint64(0), gen)
}

func TestCellSubstituteBumpsGeneration(t *testing.T) {
	a := newFixedArray([]primitive.ID{1}, Forward)
	b := newFixedArray([]primitive.ID{2}, Forward)
	cell := NewCell(a)
	cell.Substitute(b)

	it, gen := cell.Get()
	require.Same(t, Iterator(b), it)
	require.Equal(t, uint64(1), gen)
}

func TestRefreshReturnsFalseWhenGenerationUnchanged(t *testing.T) {
	a := newFixedArray([]primitive.ID{1}, Forward)
	cell := NewCell(a)
	_, gen := cell.Get()

	_, _, changed := Refresh(cell, gen)
	require.False(t, changed)
}

func TestRefreshReturnsClonedIteratorOnGenerationChange(t *testing.T) {
	a := newFixedArray([]primitive.ID{1}, Forward)
	b := newFixedArray([]primitive.ID{2}, Forward)
	cell := NewCell(a)
	_, staleGen := cell.Get()
	cell.Substitute(b)

	refreshed, newGen, changed := Refresh(cell, staleGen)
	require.True(t, changed)
	require.NotEqual(t, staleGen, newGen)
	require.NotSame(t, Iterator(b), refreshed)
}
