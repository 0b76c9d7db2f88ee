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

// Package tile is the default concrete implementation of
// external.TileAllocator: one memory-mapped file per named extent, grown
// one tile at a time, with a bounded LRU of open mappings shared across
// extents (spec §5, "each index's tile cache").
package tile

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erigontech/graphd/external"
)

// DefaultTileSize is used when a caller's config does not request a
// specific size. NewAllocator rounds every tile size up to a power of two.
const DefaultTileSize = 64 << 10

// Allocator is a mmap-backed external.TileAllocator rooted at one
// directory; each named extent ("primitive", "left", "hmap/3", ...) is one
// growable file beneath that directory.
type Allocator struct {
	dir      string
	tileSize int
	sync     bool
	log      *zap.Logger

	mu      sync.Mutex
	extents map[string]*extentFile

	cacheMu sync.Mutex
	cache   *lru.Cache[cacheKey, *mappedTile]
	group   singleflight.Group
}

type cacheKey struct {
	extent string
	index  uint64
}

type extentFile struct {
	mu    sync.Mutex
	f     *os.File
	mm    mmap.MMap
	tiles uint64
}

// NewAllocator opens (creating if necessary) a tile allocator rooted at
// dir. cacheTiles bounds the number of distinct tiles kept mapped/warm at
// once across all extents.
func NewAllocator(dir string, tileSize, cacheTiles int, sync bool, log *zap.Logger) (*Allocator, error) {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	tileSize = nextPowerOfTwo(tileSize)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "tile: mkdir %s", dir)
	}
	cache, err := lru.New[cacheKey, *mappedTile](maxInt(cacheTiles, 16))
	if err != nil {
		return nil, errors.Wrap(err, "tile: new LRU")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{
		dir:      dir,
		tileSize: tileSize,
		sync:     sync,
		log:      log.Named("tile"),
		extents:  make(map[string]*extentFile),
		cache:    cache,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// nextPowerOfTwo rounds n up to the nearest power of two.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (a *Allocator) TileSize() int { return a.tileSize }

func (a *Allocator) extentPath(extent string) string {
	return filepath.Join(a.dir, filepath.FromSlash(extent)+".tiles")
}

func (a *Allocator) extentFile(extent string) (*extentFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ef, ok := a.extents[extent]; ok {
		return ef, nil
	}
	path := a.extentPath(extent)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "tile: mkdir for extent %s", extent)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "tile: open extent %s", extent)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "tile: stat extent %s", extent)
	}
	ef := &extentFile{f: f, tiles: uint64(fi.Size()) / uint64(a.tileSize)}
	if ef.tiles > 0 {
		mm, err := mmap.MapRegion(f, int(ef.tiles)*a.tileSize, mmap.RDWR, 0, 0)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "tile: mmap extent %s", extent)
		}
		ef.mm = mm
	}
	a.extents[extent] = ef
	return ef, nil
}

// Extend grows extent by one tile and returns the new tile's index.
func (a *Allocator) Extend(extent string) (uint64, error) {
	ef, err := a.extentFile(extent)
	if err != nil {
		return 0, err
	}
	ef.mu.Lock()
	defer ef.mu.Unlock()
	newCount := ef.tiles + 1
	if ef.mm != nil {
		if err := ef.mm.Unmap(); err != nil {
			return 0, errors.Wrapf(err, "tile: unmap extent %s", extent)
		}
	}
	if err := ef.f.Truncate(int64(newCount) * int64(a.tileSize)); err != nil {
		return 0, errors.Wrapf(err, "tile: truncate extent %s", extent)
	}
	mm, err := mmap.MapRegion(ef.f, int(newCount)*a.tileSize, mmap.RDWR, 0, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "tile: remap extent %s", extent)
	}
	ef.mm = mm
	ef.tiles = newCount
	return newCount - 1, nil
}

// Open returns the tile at tileIndex within extent, creating it via Extend
// as needed so index addressing stays dense.
func (a *Allocator) Open(extent string, tileIndex uint64) (external.Tile, error) {
	key := cacheKey{extent, tileIndex}
	a.cacheMu.Lock()
	if t, ok := a.cache.Get(key); ok {
		a.cacheMu.Unlock()
		return t, nil
	}
	a.cacheMu.Unlock()

	v, err, _ := a.group.Do(fmt.Sprintf("%s#%d", extent, tileIndex), func() (interface{}, error) {
		ef, err := a.extentFile(extent)
		if err != nil {
			return nil, err
		}
		ef.mu.Lock()
		for ef.tiles <= tileIndex {
			ef.mu.Unlock()
			if _, err := a.Extend(extent); err != nil {
				return nil, err
			}
			ef.mu.Lock()
		}
		t := &mappedTile{
			ef:     ef,
			offset: int(tileIndex) * a.tileSize,
			size:   a.tileSize,
			sync:   a.sync,
		}
		ef.mu.Unlock()
		a.cacheMu.Lock()
		a.cache.Add(key, t)
		a.cacheMu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mappedTile), nil
}

func (a *Allocator) Truncate(extent string) error {
	a.mu.Lock()
	ef, ok := a.extents[extent]
	delete(a.extents, extent)
	a.mu.Unlock()
	if ok {
		ef.mu.Lock()
		if ef.mm != nil {
			_ = ef.mm.Unmap()
		}
		_ = ef.f.Truncate(0)
		_ = ef.f.Close()
		ef.mu.Unlock()
	}
	a.cacheMu.Lock()
	a.cache.Purge()
	a.cacheMu.Unlock()
	return os.Remove(a.extentPath(extent))
}

func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, ef := range a.extents {
		ef.mu.Lock()
		if ef.mm != nil {
			if err := ef.mm.Unmap(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := ef.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		ef.mu.Unlock()
	}
	a.extents = make(map[string]*extentFile)
	return firstErr
}

// mappedTile is a view into its extent's single mmap.MMap spanning
// [offset, offset+size).
type mappedTile struct {
	ef     *extentFile
	offset int
	size   int
	sync   bool
}

func (t *mappedTile) Bytes() []byte {
	t.ef.mu.Lock()
	defer t.ef.mu.Unlock()
	return t.ef.mm[t.offset : t.offset+t.size]
}

func (t *mappedTile) ReadAt(p []byte, off int64) (int, error) {
	b := t.Bytes()
	if int(off) >= len(b) {
		return 0, errors.Errorf("tile: read offset %d out of range (tile size %d)", off, len(b))
	}
	n := copy(p, b[off:])
	return n, nil
}

func (t *mappedTile) WriteAt(p []byte, off int64) (int, error) {
	b := t.Bytes()
	if int(off)+len(p) > len(b) {
		return 0, errors.Errorf("tile: write [%d,%d) exceeds tile size %d", off, int(off)+len(p), len(b))
	}
	n := copy(b[off:], p)
	return n, nil
}

func (t *mappedTile) Sync() error {
	if !t.sync {
		return nil
	}
	return t.ef.mm.Flush()
}
