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
	"context"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/primitive"
)

const deadFileName = "dead.bitmap"

// Dead is the versioned bitmap indexer of spec §4.8: each time a record
// carries previous-version linkage, its predecessor's id is marked
// obsolete in a single roaring bitmap (the `<dir>/dead/` extent). Unlike
// the linkage SIM/BM pair this bitmap is never promoted from a SIM —
// membership alone is the signal, so roaring's own dense/sparse
// internal layout already gives it the same asymptotics.
type Dead struct {
	mu        sync.Mutex
	bitmap    *roaring.Bitmap
	lastOfLineage map[primitive.ID]primitive.ID
	horizon   primitive.ID
	dirty     bool

	persist func(*roaring.Bitmap) error
	load    func() (*roaring.Bitmap, error)
}

// NewDead constructs a Dead indexer. persist/load back the bitmap onto
// the `<dir>/dead/` extent file; either may be nil for a pure in-memory
// instance (tests).
func NewDead(load func() (*roaring.Bitmap, error), persist func(*roaring.Bitmap) error) (*Dead, error) {
	d := &Dead{bitmap: roaring.New(), lastOfLineage: make(map[primitive.ID]primitive.ID), load: load, persist: persist}
	if load != nil {
		bmp, err := load()
		if err != nil {
			return nil, err
		}
		if bmp != nil {
			d.bitmap = bmp
		}
	}
	return d, nil
}

// NewDeadFile constructs a Dead indexer backed by the `<dir>/dead/`
// extent file, written with the same write-temp-then-rename discipline
// the other extents use.
func NewDeadFile(fs afero.Fs, dir string) (*Dead, error) {
	path := filepath.Join(dir, deadFileName)
	load := func() (*roaring.Bitmap, error) {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return nil, errors.Wrapf(err, "dead: stat %s", path)
		}
		if !exists {
			return nil, nil
		}
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.Wrapf(err, "dead: read %s", path)
		}
		bmp := roaring.New()
		if err := bmp.UnmarshalBinary(raw); err != nil {
			return nil, errors.Wrapf(err, "dead: decode %s", path)
		}
		return bmp, nil
	}
	persist := func(bmp *roaring.Bitmap) error {
		raw, err := bmp.ToBytes()
		if err != nil {
			return errors.Wrap(err, "dead: encode")
		}
		tmp := path + ".tmp"
		if err := afero.WriteFile(fs, tmp, raw, 0o644); err != nil {
			return errors.Wrapf(err, "dead: write %s", tmp)
		}
		return errors.Wrapf(fs.Rename(tmp, path), "dead: rename %s -> %s", tmp, path)
	}
	return NewDead(load, persist)
}

func (d *Dead) Name() string { return "dead" }

// OnCommit marks rec's predecessor within the same lineage obsolete.
// The predecessor is whichever id this indexer last saw for
// rec.LineageID — the generation indexer registers alongside this one
// and keeps the durable chain; this indexer only needs "what came
// immediately before" to compute the bitmap.
func (d *Dead) OnCommit(rec *primitive.Record) error {
	if rec.LineageID == primitive.NoID {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.lastOfLineage[rec.LineageID]; ok {
		d.bitmap.Add(uint32(prev))
		d.dirty = true
	}
	d.lastOfLineage[rec.LineageID] = rec.ID
	return nil
}

// IsDead reports whether id has been superseded by a later generation.
func (d *Dead) IsDead(id primitive.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bitmap.Contains(uint32(id))
}

func (d *Dead) OnTruncate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bitmap = roaring.New()
	d.lastOfLineage = make(map[primitive.ID]primitive.ID)
	d.horizon = 0
	d.dirty = true
	return nil
}

func (d *Dead) Horizon() primitive.ID { return d.horizon }

// Rollback cannot selectively un-mark individual predecessors without a
// full history log, which the bitmap does not keep (it records only
// current membership, not when each bit was set); a rollback therefore
// reloads the on-disk bitmap as of the last checkpoint that is <=
// horizon, discarding bits set since. Without a persist/load pair
// (in-memory mode) this is a no-op, matching the record store's own
// in-memory rollback contract.
func (d *Dead) Rollback(horizon primitive.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.load != nil {
		bmp, err := d.load()
		if err != nil {
			return err
		}
		if bmp != nil {
			d.bitmap = bmp
		}
	}
	// lastOfLineage cannot be precisely restored without replaying the
	// record store back to horizon; clearing it only means the next
	// commit in an open lineage will not mark its immediate predecessor
	// dead a second time, which is harmless (the bitmap already holds it
	// from before the rollback).
	d.lastOfLineage = make(map[primitive.ID]primitive.ID)
	d.horizon = horizon
	d.dirty = false
	return nil
}

func (d *Dead) RunStage(ctx context.Context, stage checkpoint.Stage, target primitive.ID) error {
	switch stage {
	case checkpoint.StageFinishWrites:
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.dirty || d.persist == nil {
			return nil
		}
		if err := d.persist(d.bitmap); err != nil {
			return err
		}
		d.dirty = false
	case checkpoint.StageStartMarker:
		d.horizon = target
	}
	return nil
}
