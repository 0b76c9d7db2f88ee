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
	"time"

	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// Commit performs spec §4.2's full allocate/commit workflow: resolve and
// validate every linkage identifier (step 3), derive lineage/generation
// from any declared previous version (step 6), reserve and write the
// encoded record, confirm it, suspend every live iterator before the
// indexers touch storage (spec §4.6.4), then dispatch it through the
// subscription hub so every indexer observes it before Commit returns.
// A hub error leaves the record half-indexed; recovery is via
// CheckpointRollback, matching the subscription hub's stop-on-first-error
// semantics (spec §4.8, §9 "Subscription hub error semantics").
func (d *Database) Commit(attrs primitive.Attrs) (*primitive.Record, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if err := d.resolveLinkages(attrs); err != nil {
		return nil, err
	}
	if err := d.deriveLineage(&attrs); err != nil {
		return nil, err
	}

	scratch, err := d.store.AllocateRecord(attrs)
	if err != nil {
		return nil, err
	}
	rec, err := d.store.Commit(scratch, scratch.ID)
	if err != nil {
		d.store.Abandon(scratch)
		return nil, err
	}
	// A record with no previous version is the root of its own lineage
	// (glossary: "lineage — the local id of the earliest primitive in a
	// version chain"); the wire encoding only carries a lineage id when
	// has_previous is set, since a root's lineage id equals its own id
	// and storing it would be redundant, so the indexers see it filled
	// in here instead of on every root record's bytes.
	if rec.LineageID == primitive.NoID {
		rec.LineageID = rec.ID
	}
	d.normalizeExternalGUID(rec)
	d.stats.AddPrimitivesWritten(1)
	d.chain.SuspendAll()
	if err := d.hub.Dispatch(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// resolveLinkages implements spec §4.2 step 3's dangling-link check: every
// non-absent linkage identifier must already name a committed record.
func (d *Database) resolveLinkages(attrs primitive.Attrs) error {
	for _, id := range [...]primitive.ID{attrs.TypeID, attrs.RightID, attrs.LeftID, attrs.ScopeID} {
		if id == primitive.NoID {
			continue
		}
		if _, err := d.store.Read(id); err != nil {
			return errors.Wrapf(errs.DanglingLink, "linkage id %s: %v", id, err)
		}
	}
	return nil
}

// deriveLineage implements spec §4.2 step 6: when attrs names a previous
// version, look up that record's lineage id (falling back to its own id if
// it was itself a lineage root) and generation, validate continuity, and
// fill in the wire-level fields Encode serializes.
func (d *Database) deriveLineage(attrs *primitive.Attrs) error {
	if attrs.PreviousID == primitive.NoID {
		return nil
	}
	prevHandle, err := d.store.Read(attrs.PreviousID)
	if err != nil {
		return errors.Wrapf(errs.DanglingLink, "previous version id %s: %v", attrs.PreviousID, err)
	}
	prev := prevHandle.Record
	lineage := prev.LineageID
	if lineage == primitive.NoID {
		lineage = prev.ID
	}
	if err := validateContinuity(lineage, d.store.NextID()); err != nil {
		return err
	}
	attrs.HasPrevious = true
	attrs.LineageID = lineage
	attrs.Generation = prev.Generation + 1
	return nil
}

// validateContinuity is spec §4.2 step 6's consistency guard: a lineage id
// must always be strictly older than the new record it anchors.
func validateContinuity(lineage, newID primitive.ID) error {
	if lineage >= newID {
		return errors.Wrapf(errs.ContinuityError, "lineage %s is not older than new id %s", lineage, newID)
	}
	return nil
}

// normalizeExternalGUID fills in the synthesized (local_db_id, local_id)
// external identifier (spec §8 Scenario A) when the caller supplied no
// override; the tiled encoding never stores this pair for a purely local
// record, so every read path derives it on the fly.
func (d *Database) normalizeExternalGUID(rec *primitive.Record) *primitive.Record {
	if rec.ExternalGUID.IsNil() {
		rec.ExternalGUID = primitive.ForLocal(d.dbID, rec.ID)
	}
	return rec
}

// Read returns the record at id, accounting it against the runtime
// statistics (spec §6 "primitives_read").
func (d *Database) Read(id primitive.ID) (*primitive.Record, error) {
	h, err := d.store.Read(id)
	if err != nil {
		return nil, err
	}
	d.stats.AddPrimitivesRead(1)
	return d.normalizeExternalGUID(h.Record), nil
}

// Truncate empties the store and every registered indexer (spec §4.8's
// truncation sentinel).
func (d *Database) Truncate() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.store.Truncate(); err != nil {
		return err
	}
	return d.hub.DispatchTruncate()
}

// CheckpointMandatory flushes the record store's own marker only.
func (d *Database) CheckpointMandatory(block bool) error {
	return d.engine.CheckpointMandatory(block)
}

// CheckpointOptional advances the index pipeline toward the record
// store's current next_id before deadline.
func (d *Database) CheckpointOptional(ctx context.Context, deadline time.Time) error {
	return d.engine.CheckpointOptional(ctx, deadline)
}

// Rollback discards everything at or after horizon, across the record
// store and every registered index.
func (d *Database) Rollback(horizon primitive.ID) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.engine.CheckpointRollback(horizon)
}
