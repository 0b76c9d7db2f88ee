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

package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/graphd/dbstats"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// fakeStore is a minimal in-memory RecordStore for exercising the engine
// without a real tile allocator.
type fakeStore struct {
	nextID       primitive.ID
	horizon      primitive.ID
	checkpointed int
	rolledBackTo primitive.ID
}

func (s *fakeStore) NextID() primitive.ID { return s.nextID }
func (s *fakeStore) Horizon() primitive.ID { return s.horizon }
func (s *fakeStore) SetHorizon(id primitive.ID) {
	if id > s.horizon {
		s.horizon = id
	}
}
func (s *fakeStore) Checkpoint(sync, block bool) error {
	s.checkpointed++
	return nil
}
func (s *fakeStore) Rollback(horizon primitive.ID) error {
	s.rolledBackTo = horizon
	s.nextID = horizon
	return nil
}

// fakeIndex records every stage it was driven through, for assertions
// about ordering and resumption.
type fakeIndex struct {
	name       string
	stages     []Stage
	failAt     Stage
	failErr    error
	horizon    primitive.ID
	rolledBack primitive.ID
}

func (f *fakeIndex) Name() string { return f.name }
func (f *fakeIndex) Horizon() primitive.ID { return f.horizon }
func (f *fakeIndex) Rollback(horizon primitive.ID) error {
	f.rolledBack = horizon
	f.horizon = horizon
	return nil
}
func (f *fakeIndex) RunStage(ctx context.Context, stage Stage, target primitive.ID) error {
	f.stages = append(f.stages, stage)
	if stage == f.failAt {
		return f.failErr
	}
	if stage == StageStartMarker {
		f.horizon = target
	}
	return nil
}

func TestCheckpointOptionalDrivesAllStagesInOrder(t *testing.T) {
	store := &fakeStore{nextID: 10}
	idxA := &fakeIndex{name: "a"}
	idxB := &fakeIndex{name: "b"}
	e := New(store, []Index{idxA, idxB}, dbstats.New(nil), nil)

	require.NoError(t, e.CheckpointOptional(context.Background(), time.Time{}))
	require.Equal(t, []Stage{
		StageStart, StageFinishBackup, StageSyncBackup, StageSyncDirectory,
		StageStartWrites, StageFinishWrites, StageStartMarker, StageFinishMarker,
		StageRemoveBackup, StageDone,
	}, idxA.stages)
	require.Equal(t, primitive.ID(10), store.Horizon())
}

func TestCheckpointOptionalNoopWhenAtHorizon(t *testing.T) {
	store := &fakeStore{nextID: 5, horizon: 5}
	idx := &fakeIndex{name: "a"}
	e := New(store, []Index{idx}, dbstats.New(nil), nil)

	require.NoError(t, e.CheckpointOptional(context.Background(), time.Time{}))
	require.Empty(t, idx.stages)
}

func TestCheckpointOptionalPropagatesIndexFailure(t *testing.T) {
	store := &fakeStore{nextID: 10}
	failing := &fakeIndex{name: "a", failAt: StageSyncBackup, failErr: errs.Fatal}
	e := New(store, []Index{failing}, dbstats.New(nil), nil)

	err := e.CheckpointOptional(context.Background(), time.Time{})
	require.ErrorIs(t, err, errs.Fatal)
}

func TestCheckpointOptionalRejectsConcurrentRun(t *testing.T) {
	store := &fakeStore{nextID: 10}
	e := New(store, nil, dbstats.New(nil), nil)
	e.running = true

	err := e.CheckpointOptional(context.Background(), time.Time{})
	require.ErrorIs(t, err, errs.IoBlocked)
}

func TestCheckpointMandatorySkipsEmptyStore(t *testing.T) {
	store := &fakeStore{}
	e := New(store, nil, dbstats.New(nil), nil)
	require.NoError(t, e.CheckpointMandatory(true))
	require.Equal(t, 0, store.checkpointed)
}

func TestCheckpointMandatoryFlushesNonEmptyStore(t *testing.T) {
	store := &fakeStore{nextID: 3}
	e := New(store, nil, dbstats.New(nil), nil)
	require.NoError(t, e.CheckpointMandatory(true))
	require.Equal(t, 1, store.checkpointed)
}

func TestCheckpointRollbackDiscardsStoreAndIndices(t *testing.T) {
	store := &fakeStore{nextID: 10}
	idx := &fakeIndex{name: "a"}
	e := New(store, []Index{idx}, dbstats.New(nil), nil)

	require.NoError(t, e.CheckpointRollback(4))
	require.Equal(t, primitive.ID(4), store.rolledBackTo)
	require.Equal(t, primitive.ID(4), idx.rolledBack)
}

func TestDeficitIsNextIDMinusHorizon(t *testing.T) {
	store := &fakeStore{nextID: 100, horizon: 40}
	e := New(store, nil, dbstats.New(nil), nil)
	require.Equal(t, int64(60), e.Deficit())
}
