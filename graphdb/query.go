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
	"bytes"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/iter"
	"github.com/erigontech/graphd/primitive"
)

// handleFor resolves source's current representation within a linkage
// extent, whichever of the SIM or BM map currently holds it (spec §4.4's
// in-place SIM->BM promotion is invisible above this layer).
func (d *Database) handleFor(linkage string, source primitive.ID) (idx.Source, error) {
	arrays, bitmaps := d.arrays[linkage], d.bitmaps[linkage]
	if arrays == nil || bitmaps == nil {
		return nil, errs.NoSuchSource
	}
	h, err := arrays.Handle(source)
	if err == nil {
		return h, nil
	}
	if err != errs.NoSuchSource {
		return nil, err
	}
	return bitmaps.Handle(source)
}

// LinkageIterator constructs an original iterator over one linkage
// extent's entries for source (spec §4.3/§4.4), transparently reopening
// across suspend/resume or a SIM->BM promotion in between.
func (d *Database) LinkageIterator(linkage string, source primitive.ID, dir iter.Direction) (*iter.Array, error) {
	h, err := d.handleFor(linkage, source)
	if err != nil {
		return nil, err
	}
	reopen := func() (idx.Source, error) { return d.handleFor(linkage, source) }
	it := iter.NewArray(linkage, h, dir, reopen)
	d.chain.Register(it)
	return it, nil
}

// HashIterator constructs an original iterator over one hmap key's
// entries (spec §4.5).
func (d *Database) HashIterator(key hm.Key, dir iter.Direction) (*iter.Array, error) {
	h, err := d.hmap.Handle(key)
	if err != nil {
		return nil, err
	}
	reopen := func() (idx.Source, error) { return d.hmap.Handle(key) }
	it := iter.NewArray("hm", h, dir, reopen)
	d.chain.Register(it)
	return it, nil
}

// NthGeneration returns the nth (0-indexed, oldest-first) version of
// lineage (spec §4.5 "Generation index").
func (d *Database) NthGeneration(lineage primitive.ID, n int) (primitive.ID, error) {
	return d.gen.NthGeneration(lineage, n)
}

// GenerationIndex returns id's 0-indexed position within lineage's chain.
func (d *Database) GenerationIndex(lineage, id primitive.ID) (int, error) {
	return d.gen.GenerationIndex(lineage, id)
}

// LastN returns lineage's newest id and total chain length (spec §8
// Scenario B's `last_n`).
func (d *Database) LastN(lineage primitive.ID) (last primitive.ID, n int, err error) {
	return d.gen.LastN(lineage)
}

// IsDead reports whether id has been superseded by a later generation
// (spec §4.8 versioned bitmap indexer).
func (d *Database) IsDead(id primitive.ID) bool {
	return d.dead.IsDead(id)
}

// PrefixIterator assembles the prefix iterator of spec §4.6.7 over the
// word-hash namespace: every word-index key starting with prefix becomes
// one completion iterator, folded into the Prefix's internal Or by a
// single GrowOr call. If budget does not cover that call, the unfinished
// Prefix is returned together with errs.Suspend.
func (d *Database) PrefixIterator(budget *iter.Budget, prefix string) (*iter.Prefix, error) {
	p, err := iter.NewPrefix(prefix)
	if err != nil {
		return nil, err
	}
	var completions []iter.Iterator
	for _, key := range d.hmap.KeysWithTag(hm.TagWord) {
		if !bytes.HasPrefix(key.Bytes, []byte(prefix)) {
			continue
		}
		it, err := d.HashIterator(key, iter.Forward)
		if err != nil {
			if err == errs.NoSuchSource {
				continue
			}
			return nil, err
		}
		completions = append(completions, it)
	}
	if !p.GrowOr(budget, completions) {
		return p, errs.Suspend
	}
	return p, nil
}
