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

// Package checkpoint drives the nine-stage engine of spec §4.7: moving
// every registered index from a consistent horizon to a new one, with
// backpressure thresholds, stall logging, and crash-safe marker updates.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/erigontech/graphd/dbstats"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// Stage is one of the nine ordered micro-steps.
type Stage int

const (
	StageStart Stage = iota
	StageFinishBackup
	StageSyncBackup
	StageSyncDirectory
	StageStartWrites
	StageFinishWrites
	StageStartMarker
	StageFinishMarker
	StageRemoveBackup
	StageDone
)

func (s Stage) String() string {
	names := [...]string{
		"START", "FINISH_BACKUP", "SYNC_BACKUP", "SYNC_DIRECTORY",
		"START_WRITES", "FINISH_WRITES", "START_MARKER", "FINISH_MARKER",
		"REMOVE_BACKUP", "DONE",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// Index is the per-index callback contract the engine drives in lockstep
// (spec §4.7: "each index implements each stage as an optional
// callback"). A stage that an index has nothing to do for simply returns
// nil immediately.
type Index interface {
	Name() string
	RunStage(ctx context.Context, stage Stage, targetHorizon primitive.ID) error
	Horizon() primitive.ID
	Rollback(horizon primitive.ID) error
}

// Deficit thresholds (spec §4.7 "Backpressure").
const (
	DeficitUrgent  = 100_000
	DeficitIgnoreDeadline = 500_000
)

// Stall thresholds (spec §4.7 "Stall detection").
const (
	StallSlow     = 60 * time.Second
	StallStalled  = 600 * time.Second
)

// RecordStore is the subset of primitive.Store the engine needs.
type RecordStore interface {
	NextID() primitive.ID
	Horizon() primitive.ID
	SetHorizon(primitive.ID)
	Checkpoint(sync, block bool) error
	Rollback(primitive.ID) error
}

// Engine coordinates the checkpoint pipeline for one open database.
type Engine struct {
	store   RecordStore
	indices []Index
	stats   *dbstats.Stats
	log     *zap.Logger

	mu            sync.Mutex
	running       bool
	startedAt     time.Time
	stageOf       map[string]Stage // per-index resume point
	diskUnavailable bool
	diskCooldown  *backoff.ExponentialBackOff
	lastDiskWarn  time.Time
}

// New constructs an Engine over store and the given indices, in the
// order their stages should be driven.
func New(store RecordStore, indices []Index, stats *dbstats.Stats, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return &Engine{
		store:   store,
		indices: indices,
		stats:   stats,
		log:     log.Named("checkpoint"),
		stageOf: make(map[string]Stage),
		diskCooldown: b,
	}
}

// Deficit is record_store.next_id - record_store.horizon.
func (e *Engine) Deficit() int64 {
	return int64(e.store.NextID()) - int64(e.store.Horizon())
}

// CheckpointMandatory flushes the record store's own marker only (spec
// §4.7). Always safe to skip on an empty store.
func (e *Engine) CheckpointMandatory(block bool) error {
	if e.store.NextID() == 0 {
		return nil
	}
	if err := e.store.Checkpoint(true, block); err != nil {
		if err == errs.WouldBlock {
			return err
		}
		e.noteDiskFailure(err)
		return err
	}
	e.clearDiskFailure()
	return nil
}

func (e *Engine) noteDiskFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diskUnavailable = true
	if time.Since(e.lastDiskWarn) > time.Minute {
		e.log.Warn("disk unavailable, writes suppressed", zap.Error(err))
		e.lastDiskWarn = time.Now()
	}
}

func (e *Engine) clearDiskFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.diskUnavailable {
		e.log.Info("disk available again, resuming writes")
	}
	e.diskUnavailable = false
	e.diskCooldown.Reset()
}

// DiskUnavailable reports the global "disk unavailable" flag (spec §7).
func (e *Engine) DiskUnavailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.diskUnavailable
}

// CheckpointOptional advances the index pipeline as far as possible
// before deadline, returning errs.NeedsMore if it could not finish.
// Past DeficitIgnoreDeadline the caller-supplied deadline is ignored and
// the pipeline runs to completion (spec §4.7 "Backpressure").
func (e *Engine) CheckpointOptional(ctx context.Context, deadline time.Time) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errs.IoBlocked
	}
	e.running = true
	e.startedAt = time.Now()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	deficit := e.Deficit()
	if deficit > DeficitUrgent {
		e.log.Warn("checkpoint urgent", zap.Int64("deficit", deficit))
	}
	ignoreDeadline := deficit > DeficitIgnoreDeadline

	target := e.store.NextID()
	if target == e.store.Horizon() {
		return nil
	}

	stages := []Stage{
		StageStart, StageFinishBackup, StageSyncBackup, StageSyncDirectory,
		StageStartWrites, StageFinishWrites, StageStartMarker, StageFinishMarker,
		StageRemoveBackup, StageDone,
	}
	for _, stage := range stages {
		if !ignoreDeadline && !deadline.IsZero() && time.Now().After(deadline) {
			return errs.NeedsMore
		}
		e.checkStall()
		for _, idx := range e.indices {
			if e.stageOf[idx.Name()] > stage {
				continue
			}
			if err := idx.RunStage(ctx, stage, target); err != nil {
				if err == errs.NeedsMore || err == errs.IoBlocked {
					return errs.NeedsMore
				}
				e.noteDiskFailure(err)
				return err
			}
			e.stageOf[idx.Name()] = stage
			if stage == StageStartMarker {
				// "after this, a crash recovers to X even if later stages failed"
				e.store.SetHorizon(target)
			}
		}
	}
	e.clearDiskFailure()
	for k := range e.stageOf {
		delete(e.stageOf, k)
	}
	return nil
}

func (e *Engine) checkStall() {
	elapsed := time.Since(e.startedAt)
	if elapsed > StallStalled {
		e.log.Error("checkpoint stalled", zap.Duration("elapsed", elapsed))
	} else if elapsed > StallSlow {
		e.log.Warn("checkpoint slow", zap.Duration("elapsed", elapsed))
	}
}

// CheckpointSynchronize replays records committed since each index's
// last-seen horizon through the supplied replay function, then drives
// CheckpointOptional until every index catches up (spec §4.7).
func (e *Engine) CheckpointSynchronize(ctx context.Context, replay func(from, to primitive.ID) error) error {
	from := e.store.Horizon()
	to := e.store.NextID()
	if from < to {
		if err := replay(from, to); err != nil {
			return err
		}
	}
	for {
		err := e.CheckpointOptional(ctx, time.Time{})
		if err == nil {
			return nil
		}
		if err != errs.NeedsMore {
			return err
		}
	}
}

// CheckpointRollback discards record-store content with id >= horizon
// and rolls every index back to its own stored horizon (spec §4.7, used
// by Scenario F).
func (e *Engine) CheckpointRollback(horizon primitive.ID) error {
	if err := e.store.Rollback(horizon); err != nil {
		return err
	}
	for _, idx := range e.indices {
		if err := idx.Rollback(horizon); err != nil {
			return err
		}
	}
	return nil
}
