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

package tile

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/erigontech/graphd/external"
)

// MemAllocator is a pure in-memory external.TileAllocator, used by tests
// that want the record store / index format exercised without touching a
// filesystem at all.
type MemAllocator struct {
	tileSize int
	mu       sync.Mutex
	extents  map[string][][]byte
}

func NewMemAllocator(tileSize int) *MemAllocator {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &MemAllocator{tileSize: tileSize, extents: make(map[string][][]byte)}
}

func (m *MemAllocator) TileSize() int { return m.tileSize }

func (m *MemAllocator) Extend(extent string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extents[extent] = append(m.extents[extent], make([]byte, m.tileSize))
	return uint64(len(m.extents[extent]) - 1), nil
}

func (m *MemAllocator) Open(extent string, tileIndex uint64) (external.Tile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uint64(len(m.extents[extent])) <= tileIndex {
		m.extents[extent] = append(m.extents[extent], make([]byte, m.tileSize))
	}
	return &memTile{owner: m, extent: extent, index: tileIndex}, nil
}

func (m *MemAllocator) Truncate(extent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.extents, extent)
	return nil
}

func (m *MemAllocator) Close() error { return nil }

type memTile struct {
	owner  *MemAllocator
	extent string
	index  uint64
}

func (t *memTile) Bytes() []byte {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.extents[t.extent][t.index]
}

func (t *memTile) ReadAt(p []byte, off int64) (int, error) {
	b := t.Bytes()
	if int(off) >= len(b) {
		return 0, errors.New("tile: read offset out of range")
	}
	return copy(p, b[off:]), nil
}

func (t *memTile) WriteAt(p []byte, off int64) (int, error) {
	b := t.Bytes()
	if int(off)+len(p) > len(b) {
		return 0, errors.New("tile: write exceeds tile size")
	}
	return copy(b[off:], p), nil
}

func (t *memTile) Sync() error { return nil }
