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
	"sync"

	"github.com/tidwall/btree"

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/primitive"
)

// generationEntry is one row of the in-memory lineage -> ordered
// generation list, mirrored into the hm.Map generation namespace for
// durability (spec §4.5 "Generation index").
type generationEntry struct {
	Lineage primitive.ID
	Chain   []primitive.ID // ascending by generation
}

func (e *generationEntry) Less(than *generationEntry) bool { return e.Lineage < than.Lineage }

// Generation records lineage/version relationships and answers
// generation_nth / generation_index (spec §4.8, §8 Scenario B).
type Generation struct {
	hm *hm.Map

	mu      sync.Mutex
	byLineage *btree.BTreeG[*generationEntry]
	horizon primitive.ID
}

func NewGeneration(h *hm.Map) *Generation {
	return &Generation{
		hm:        h,
		byLineage: btree.NewBTreeG[*generationEntry]((*generationEntry).Less),
	}
}

func (g *Generation) Name() string { return "generation" }

// OnCommit appends rec to its lineage's chain whenever rec.LineageID is
// set. That includes lineage roots, whose LineageID the database handle
// fills with their own id before dispatch. A record already recorded
// under its lineage (errs.Exists from the HM) is skipped without error.
func (g *Generation) OnCommit(rec *primitive.Record) error {
	if rec.LineageID == primitive.NoID {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.hm.Add(hm.GenerationKey(rec.LineageID), rec.ID); err != nil {
		if err == errs.Exists {
			return nil
		}
		return err
	}
	entry, ok := g.byLineage.Get(&generationEntry{Lineage: rec.LineageID})
	if !ok {
		entry = &generationEntry{Lineage: rec.LineageID}
		g.byLineage.Set(entry)
	}
	entry.Chain = append(entry.Chain, rec.ID)
	return nil
}

func (g *Generation) OnTruncate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byLineage = btree.NewBTreeG[*generationEntry]((*generationEntry).Less)
	g.horizon = 0
	return nil
}

func (g *Generation) Horizon() primitive.ID { return g.horizon }

func (g *Generation) Rollback(horizon primitive.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byLineage.Scan(func(e *generationEntry) bool {
		i := 0
		for i < len(e.Chain) && e.Chain[i] < horizon {
			i++
		}
		e.Chain = e.Chain[:i]
		return true
	})
	g.horizon = horizon
	return nil
}

func (g *Generation) RunStage(ctx context.Context, stage checkpoint.Stage, target primitive.ID) error {
	switch stage {
	case checkpoint.StageFinishWrites:
		return g.hm.Flush()
	case checkpoint.StageStartMarker:
		g.horizon = target
	}
	return nil
}

// NthGeneration returns the id of the nth (0-indexed, oldest-first)
// version in lineage's chain.
func (g *Generation) NthGeneration(lineage primitive.ID, n int) (primitive.ID, error) {
	return g.hm.NthGeneration(lineage, n)
}

// GenerationIndex returns id's 0-indexed position within lineage's chain.
func (g *Generation) GenerationIndex(lineage, id primitive.ID) (int, error) {
	return g.hm.GenerationIndex(lineage, id)
}

// LastN returns the newest id and total chain length for lineage (spec
// §8 Scenario B: "last_n(identifier_of(1)) -> (last=2, n=3)").
func (g *Generation) LastN(lineage primitive.ID) (last primitive.ID, n int, err error) {
	arr, err := g.hm.ArrayOf(hm.GenerationKey(lineage))
	if err != nil {
		return primitive.NoID, 0, err
	}
	if len(arr) == 0 {
		return primitive.NoID, 0, nil
	}
	return arr[len(arr)-1], len(arr), nil
}
