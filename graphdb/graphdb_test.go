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

package graphdb

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/config"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/iter"
	"github.com/erigontech/graphd/primitive"
	"github.com/erigontech/graphd/tile"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := config.Defaults()
	cfg.DatabasePath = "/db"
	fs := afero.NewMemMapFs()
	istore := tile.NewMemAllocator(4096)
	gmap := tile.NewMemAllocator(4096)
	db, err := OpenForTest(cfg, nil, fs, istore, gmap, nil)
	require.NoError(t, err)
	return db
}

func TestCommitReadRoundTrip(t *testing.T) {
	db := newTestDB(t)

	rec, err := db.Commit(primitive.Attrs{
		Live:      true,
		ValueType: 1,
		Name:      []byte("alice"),
		Value:     []byte("bob"),
		RightID:   primitive.NoID,
	})
	require.NoError(t, err)
	require.Equal(t, primitive.ID(0), rec.ID)
	require.Equal(t, primitive.ForLocal(db.dbID, rec.ID), rec.ExternalGUID)

	got, err := db.Read(0)
	require.NoError(t, err)
	require.Equal(t, []byte("alice"), got.Name)
	require.Equal(t, []byte("bob"), got.Value)
	require.Equal(t, primitive.ForLocal(db.dbID, got.ID), got.ExternalGUID)
}

func TestLinkageIteratorSeesCommittedEdges(t *testing.T) {
	db := newTestDB(t)

	typeRec, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("edge-type")})
	require.NoError(t, err)
	typeID := typeRec.ID
	for i := 0; i < 5; i++ {
		_, err := db.Commit(primitive.Attrs{Live: true, TypeID: typeID})
		require.NoError(t, err)
	}

	it, err := db.LinkageIterator("type", typeID, iter.Forward)
	require.NoError(t, err)
	budget := &iter.Budget{Remaining: 1_000_000}
	cs := &iter.CallState{}
	var seen []primitive.ID
	for {
		id, err := it.Next(budget, cs)
		if err == errs.NoMore {
			break
		}
		require.NoError(t, err)
		seen = append(seen, id)
	}
	require.Len(t, seen, 5)
}

func TestCheckpointAdvancesHorizon(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Commit(primitive.Attrs{Live: true})
	require.NoError(t, err)

	require.NoError(t, db.CheckpointOptional(context.Background(), time.Time{}))
	require.Equal(t, db.store.NextID(), db.store.Horizon())
}

func TestGenerationChainEndToEnd(t *testing.T) {
	db := newTestDB(t)

	first, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("v1")})
	require.NoError(t, err)
	second, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("v2"), PreviousID: first.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.LineageID)
	require.Equal(t, uint64(1), second.Generation)

	third, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("v3"), PreviousID: second.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, third.LineageID)
	require.Equal(t, uint64(2), third.Generation)

	last, n, err := db.LastN(first.ID)
	require.NoError(t, err)
	require.Equal(t, third.ID, last)
	require.Equal(t, 3, n)
	require.True(t, db.IsDead(first.ID))
	require.True(t, db.IsDead(second.ID))
	require.False(t, db.IsDead(third.ID))
}

func TestCommitRejectsDanglingLink(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Commit(primitive.Attrs{Live: true, TypeID: primitive.ID(42)})
	require.ErrorIs(t, err, errs.DanglingLink)
}

func TestCommitRejectsDanglingPreviousID(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Commit(primitive.Attrs{Live: true, PreviousID: primitive.ID(7)})
	require.ErrorIs(t, err, errs.DanglingLink)
}

func TestValidateContinuityRejectsNonDecreasingLineage(t *testing.T) {
	require.NoError(t, validateContinuity(primitive.ID(3), primitive.ID(5)))
	require.ErrorIs(t, validateContinuity(primitive.ID(5), primitive.ID(5)), errs.ContinuityError)
	require.ErrorIs(t, validateContinuity(primitive.ID(6), primitive.ID(5)), errs.ContinuityError)
}

func TestHashIteratorFindsNamedRecord(t *testing.T) {
	db := newTestDB(t)
	rec, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("hello")})
	require.NoError(t, err)

	it, err := db.HashIterator(hm.Key{Tag: hm.TagName, Bytes: []byte("hello")}, iter.Forward)
	require.NoError(t, err)
	budget := &iter.Budget{Remaining: 1000}
	id, err := it.Next(budget, &iter.CallState{})
	require.NoError(t, err)
	require.Equal(t, rec.ID, id)
}

