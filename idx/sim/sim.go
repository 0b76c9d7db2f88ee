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

// Package sim implements the sorted id-array map (spec §4.3): the primary
// index for "outgoing edge of kind X from node Y". Each source's array is
// kept resident in memory (the working set graphd's tile cache is meant
// to keep warm) and durably mirrored one source per tile, so a cold open
// only pays for what Flush last wrote.
package sim

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/external"
	"github.com/erigontech/graphd/primitive"
)

// Map is one named SIM instance (e.g. the "left" or "typeguid" index).
type Map struct {
	alloc  external.TileAllocator
	fs     afero.Fs
	dir    string
	extent string

	mu      sync.RWMutex
	ids     map[primitive.ID][]primitive.ID // source -> ascending targets
	tileOf  map[primitive.ID]uint64
	dirty   map[primitive.ID]bool
	nextTile uint64
}

// Open attaches a Map to extent, loading its directory and tile contents.
func Open(alloc external.TileAllocator, fs afero.Fs, dir, extent string) (*Map, error) {
	m := &Map{
		alloc:  alloc,
		fs:     fs,
		dir:    dir,
		extent: extent,
		ids:    make(map[primitive.ID][]primitive.ID),
		tileOf: make(map[primitive.ID]uint64),
		dirty:  make(map[primitive.ID]bool),
	}
	entries, err := loadDirectory(fs, m.dirPath())
	if err != nil {
		return nil, err
	}
	for source, tileIdx := range entries {
		t, err := alloc.Open(extent, tileIdx)
		if err != nil {
			return nil, errors.Wrapf(err, "sim %s: open tile for source %s", extent, source)
		}
		list, err := decodeArray(t.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "sim %s: decode source %s", extent, source)
		}
		m.ids[source] = list
		m.tileOf[source] = tileIdx
		if tileIdx >= m.nextTile {
			m.nextTile = tileIdx + 1
		}
	}
	return m, nil
}

func (m *Map) dirPath() string {
	return filepath.Join(m.dir, filepath.FromSlash(m.extent)+".directory.json")
}

func loadDirectory(fs afero.Fs, path string) (map[primitive.ID]uint64, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if isNotExist(err) {
			return map[primitive.ID]uint64{}, nil
		}
		return nil, errors.Wrapf(err, "sim: read directory %s", path)
	}
	var raw map[string]uint64
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "sim: parse directory %s", path)
	}
	out := make(map[primitive.ID]uint64, len(raw))
	for k, v := range raw {
		var id uint64
		if _, err := parseSourceKey(k, &id); err != nil {
			return nil, errors.Wrapf(errs.Corrupt, "sim: bad directory key %q", k)
		}
		out[primitive.ID(id)] = v
	}
	return out, nil
}

// Kind reports the representation this map stores, which is always
// KindSIM.
func (m *Map) Kind() idx.Kind { return idx.KindSIM }

// ArrayOf returns the ascending target array for source. Returns
// errs.NoSuchSource if source has never been written.
func (m *Map) ArrayOf(source primitive.ID) ([]primitive.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.ids[source]
	if !ok {
		return nil, errs.NoSuchSource
	}
	return list, nil
}

// Add inserts target into source's array, keeping it sorted and
// duplicate-free. Returns errs.Exists if target is already present.
// promote is true whenever source's array now holds more than
// idx.PromoteThreshold entries, i.e. it is due to be handed to
// bm.PromoteFrom.
func (m *Map) Add(source, target primitive.ID) (promote bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ids[source]
	i := sort.Search(len(list), func(i int) bool { return list[i] >= target })
	if i < len(list) && list[i] == target {
		return false, errs.Exists
	}
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = target
	m.ids[source] = list
	m.dirty[source] = true
	return len(list) > idx.PromoteThreshold, nil
}

// Remove deletes target from source's array. Returns errs.NotFound if it
// was absent.
func (m *Map) Remove(source, target primitive.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ids[source]
	i := sort.Search(len(list), func(i int) bool { return list[i] >= target })
	if i >= len(list) || list[i] != target {
		return errs.NotFound
	}
	list = append(list[:i], list[i+1:]...)
	m.ids[source] = list
	m.dirty[source] = true
	return nil
}

// DeleteSource drops source's array entirely (used when bm.PromoteFrom
// takes over the representation for it).
func (m *Map) DeleteSource(source primitive.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, source)
	delete(m.tileOf, source)
	m.dirty[source] = true
}

// Flush serializes every dirty source's array to its tile and rewrites
// the directory. Call before checkpoint.
func (m *Map) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for source := range m.dirty {
		list, live := m.ids[source]
		if !live {
			continue // deleted; directory entry just gets dropped below
		}
		tileIdx, ok := m.tileOf[source]
		if !ok {
			var err error
			tileIdx, err = m.alloc.Extend(m.extent)
			if err != nil {
				return errors.Wrapf(err, "sim %s: extend for source %s", m.extent, source)
			}
			m.tileOf[source] = tileIdx
		}
		t, err := m.alloc.Open(m.extent, tileIdx)
		if err != nil {
			return errors.Wrapf(err, "sim %s: open tile for source %s", m.extent, source)
		}
		enc, err := encodeArray(list, m.alloc.TileSize())
		if err != nil {
			return err
		}
		if _, err := t.WriteAt(enc, 0); err != nil {
			return errors.Wrapf(err, "sim %s: write source %s", m.extent, source)
		}
	}
	m.dirty = make(map[primitive.ID]bool)

	raw := make(map[string]uint64, len(m.tileOf))
	for source, tileIdx := range m.tileOf {
		if _, live := m.ids[source]; !live {
			continue
		}
		raw[formatSourceKey(uint64(source))] = tileIdx
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "sim: marshal directory")
	}
	path := m.dirPath()
	tmp := path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "sim: write %s", tmp)
	}
	return m.fs.Rename(tmp, path)
}

// arrayHandle is the idx.Source view over one source's array, bounded to
// [lo, hi) (spec §4.3: "returns a handle with bounds [0, n)").
type arrayHandle struct {
	ids    []primitive.ID
	lo, hi int
}

func (h *arrayHandle) Kind() idx.Kind { return idx.KindSIM }
func (h *arrayHandle) Len() int       { return h.hi - h.lo }
func (h *arrayHandle) Bounds() (int, int) { return h.lo, h.hi }

func (h *arrayHandle) At(i int) (primitive.ID, bool) {
	if i < h.lo || i >= h.hi {
		return primitive.NoID, false
	}
	return h.ids[i], true
}

func (h *arrayHandle) Contains(id primitive.ID) bool {
	lo, hi := h.lo, h.hi
	i := sort.Search(hi-lo, func(i int) bool { return h.ids[lo+i] >= id }) + lo
	return i < hi && h.ids[i] == id
}

// Handle returns a bounded idx.Source over source's array, or
// errs.NoSuchSource if it has no entries.
func (m *Map) Handle(source primitive.ID) (idx.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.ids[source]
	if !ok {
		return nil, errs.NoSuchSource
	}
	return &arrayHandle{ids: list, lo: 0, hi: len(list)}, nil
}
