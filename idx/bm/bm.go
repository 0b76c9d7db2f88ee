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

// Package bm implements the bitmap id-array map (spec §4.4): the
// representation sim.Map promotes a source into once its array grows past
// idx.PromoteThreshold. Same abstract contract as sim, backed by a
// roaring bitmap instead of a packed array.
package bm

import (
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/external"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/primitive"
)

// Map is one named BM instance, sibling to a sim.Map of the same extent
// name: a source lives in exactly one of the two at a time.
type Map struct {
	alloc  external.TileAllocator
	fs     afero.Fs
	dir    string
	extent string

	mu      sync.RWMutex
	bitmaps map[primitive.ID]*roaring.Bitmap
	dirty   map[primitive.ID]bool
}

func Open(alloc external.TileAllocator, fs afero.Fs, dir, extent string) (*Map, error) {
	m := &Map{
		alloc:   alloc,
		fs:      fs,
		dir:     dir,
		extent:  extent,
		bitmaps: make(map[primitive.ID]*roaring.Bitmap),
		dirty:   make(map[primitive.ID]bool),
	}
	path := m.bitmapFilePath()
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "bm %s: stat %s", extent, path)
	}
	if !exists {
		return m, nil
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "bm %s: read %s", extent, path)
	}
	entries, err := decodeBitmapFile(b)
	if err != nil {
		return nil, errors.Wrapf(err, "bm %s: decode %s", extent, path)
	}
	m.bitmaps = entries
	return m, nil
}

func (m *Map) bitmapFilePath() string {
	return filepath.Join(m.dir, filepath.FromSlash(m.extent)+".bitmaps")
}

func (m *Map) Kind() idx.Kind { return idx.KindBM }

// PromoteFrom replaces source's sim.Map representation with a bitmap
// seeded from the given sorted array. Called once a SIM array crosses
// idx.PromoteThreshold.
func (m *Map) PromoteFrom(source primitive.ID, sortedIDs []primitive.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bmp := roaring.New()
	for _, id := range sortedIDs {
		bmp.Add(uint32(id))
	}
	m.bitmaps[source] = bmp
	m.dirty[source] = true
}

// Add inserts target into source's bitmap. Returns errs.Exists if already
// present, errs.NoSuchSource if source has no bitmap (i.e. was never
// promoted).
func (m *Map) Add(source, target primitive.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bmp, ok := m.bitmaps[source]
	if !ok {
		return errs.NoSuchSource
	}
	if bmp.Contains(uint32(target)) {
		return errs.Exists
	}
	bmp.Add(uint32(target))
	m.dirty[source] = true
	return nil
}

// Remove deletes target from source's bitmap.
func (m *Map) Remove(source, target primitive.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bmp, ok := m.bitmaps[source]
	if !ok {
		return errs.NoSuchSource
	}
	if !bmp.Contains(uint32(target)) {
		return errs.NotFound
	}
	bmp.Remove(uint32(target))
	m.dirty[source] = true
	return nil
}

// bitmapHandle is the idx.Source view over one source's bitmap.
type bitmapHandle struct {
	bmp    *roaring.Bitmap
	it     []uint32 // materialized ascending, as roaring has no cheap random-access by ordinal
	lo, hi int
}

func (h *bitmapHandle) Kind() idx.Kind         { return idx.KindBM }
func (h *bitmapHandle) Len() int               { return h.hi - h.lo }
func (h *bitmapHandle) Bounds() (int, int)     { return h.lo, h.hi }

func (h *bitmapHandle) At(i int) (primitive.ID, bool) {
	if i < h.lo || i >= h.hi {
		return primitive.NoID, false
	}
	return primitive.ID(h.it[i]), true
}

func (h *bitmapHandle) Contains(id primitive.ID) bool {
	return h.bmp.Contains(uint32(id))
}

// Handle returns a bounded idx.Source over source's bitmap.
func (m *Map) Handle(source primitive.ID) (idx.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bmp, ok := m.bitmaps[source]
	if !ok {
		return nil, errs.NoSuchSource
	}
	all := bmp.ToArray()
	ids := make([]uint32, len(all))
	copy(ids, all)
	return &bitmapHandle{bmp: bmp, it: ids, lo: 0, hi: len(ids)}, nil
}

// IntersectSorted implements the SIM/BM intersection fast path of spec
// §4.4: given the ascending array belonging to a SIM iterator A and this
// bitmap B, write ids present in both to out (capped at len(out) entries),
// returning errs.TooMany if the cap would be exceeded.
func IntersectSorted(a []primitive.ID, b *roaring.Bitmap, out []primitive.ID) ([]primitive.ID, error) {
	n := 0
	for _, id := range a {
		if b.Contains(uint32(id)) {
			if n >= len(out) {
				return out[:n], errs.TooMany
			}
			out[n] = id
			n++
		}
	}
	return out[:n], nil
}

// Flush persists every bitmap to the single bitmaps file for this extent.
// Roaring bitmaps are small once RLE-compressed, so one file per extent
// (rather than one tile per source, as sim.Map does) keeps the common
// case of "a handful of very dense sources" cheap to rewrite.
func (m *Map) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := encodeBitmapFile(m.bitmaps)
	if err != nil {
		return errors.Wrap(err, "bm: encode")
	}
	path := m.bitmapFilePath()
	tmp := path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "bm: write %s", tmp)
	}
	if err := m.fs.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "bm: rename %s", tmp)
	}
	m.dirty = make(map[primitive.ID]bool)
	return nil
}
