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

package primitive

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/external"
)

// extentName is the tile-allocator extent the record store packs
// primitives into. Every primitive satisfies "size <= one storage tile"
// (spec §3.1), so the store never splits a record across tiles: local id
// and tile index within this extent coincide.
const extentName = "primitive"

// Store is the append-only tiled record store of spec §4.1.
type Store struct {
	alloc external.TileAllocator
	fs    afero.Fs
	dir   string
	log   *zap.Logger

	mu       sync.RWMutex
	nextID   uint64 // atomic-accessed outside mu for the fast path
	horizon  uint64
	markerID uint64 // last-flushed next_id
	markerHz uint64 // last-flushed horizon
}

// Open attaches a Store to an already-sized extent; nextID and the horizon
// are recovered from the marker file last written by Checkpoint (both 0
// if there is none).
func Open(alloc external.TileAllocator, fs afero.Fs, dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{alloc: alloc, fs: fs, dir: dir, log: log.Named("primitive")}
	m, err := loadMarkers(fs, dir)
	if err != nil {
		return nil, err
	}
	s.nextID = m.NextID
	s.horizon = m.Horizon
	s.markerID = m.NextID
	s.markerHz = m.Horizon
	return s, nil
}

// NextID returns the id the next allocation would receive.
func (s *Store) NextID() ID { return ID(atomic.LoadUint64(&s.nextID)) }

// Horizon returns the id below which all data is durable.
func (s *Store) Horizon() ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ID(s.horizon)
}

// SetHorizon advances the durability horizon. It never moves backward
// except via Rollback.
func (s *Store) SetHorizon(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(id) > s.horizon {
		s.horizon = uint64(id)
	}
}

// MarkerNext and MarkerHorizon are the persisted (not yet necessarily
// current) copies of the two monotonic markers.
func (s *Store) MarkerNext() ID    { return ID(atomic.LoadUint64(&s.markerID)) }
func (s *Store) MarkerHorizon() ID { return ID(atomic.LoadUint64(&s.markerHz)) }

// Allocate reserves tile space for a record of the given encoded size and
// returns the id it was assigned along with a writable buffer exactly
// `size` bytes long. size must not exceed the allocator's tile size.
func (s *Store) Allocate(size int) (ID, []byte, error) {
	if size > s.alloc.TileSize() {
		return NoID, nil, errors.Wrapf(errs.RecordTooLarge, "encoded size %d exceeds tile size %d", size, s.alloc.TileSize())
	}
	s.mu.Lock()
	id := ID(s.nextID)
	tileIdx, err := s.alloc.Extend(extentName)
	if err != nil {
		s.mu.Unlock()
		return NoID, nil, errors.Wrap(err, "primitive: extend store")
	}
	if tileIdx != uint64(id) {
		// Another caller raced us onto the same extent; the store is
		// single-writer (spec §5), so this indicates a programming error,
		// not a recoverable condition.
		s.mu.Unlock()
		return NoID, nil, errors.Wrapf(errs.Fatal, "tile index %d diverged from next id %d", tileIdx, id)
	}
	atomic.AddUint64(&s.nextID, 1)
	s.mu.Unlock()

	t, err := s.alloc.Open(extentName, tileIdx)
	if err != nil {
		return NoID, nil, errors.Wrap(err, "primitive: open new tile")
	}
	buf := t.Bytes()[:size]
	return id, buf, nil
}

// Handle is a zero-copy scoped view onto a committed record's bytes.
type Handle struct {
	Record *Record
	raw    []byte
}

// Read returns a handle onto the record at id.
func (s *Store) Read(id ID) (*Handle, error) {
	if !id.Valid() || uint64(id) >= atomic.LoadUint64(&s.nextID) {
		return nil, errors.Wrapf(errs.NotFound, "id %s >= next_id", id)
	}
	t, err := s.alloc.Open(extentName, uint64(id))
	if err != nil {
		return nil, errors.Wrapf(err, "primitive: open tile %s", id)
	}
	raw := t.Bytes()
	rec, err := Decode(id, raw)
	if err != nil {
		return nil, err
	}
	return &Handle{Record: rec, raw: raw}, nil
}

// Rollback discards all records with id >= horizon. Only meaningful when
// the store is opened in transactional mode (spec §4.1).
func (s *Store) Rollback(horizon ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(horizon) > s.nextID {
		return errors.Wrapf(errs.Corrupt, "rollback horizon %s is beyond next_id", horizon)
	}
	atomic.StoreUint64(&s.nextID, uint64(horizon))
	if s.horizon > uint64(horizon) {
		s.horizon = uint64(horizon)
	}
	return nil
}

// Truncate empties the store entirely.
func (s *Store) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.alloc.Truncate(extentName); err != nil {
		return errors.Wrap(err, "primitive: truncate")
	}
	atomic.StoreUint64(&s.nextID, 0)
	s.horizon = 0
	s.markerID = 0
	s.markerHz = 0
	return saveMarkers(s.fs, s.dir, markers{})
}

// Refresh informs a read-only replica that records up to newNextID are
// now visible.
func (s *Store) Refresh(newNextID ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(newNextID) > s.nextID {
		atomic.StoreUint64(&s.nextID, uint64(newNextID))
	}
}

// Checkpoint atomically flushes the marker file recording (next_id,
// horizon). When sync is requested it calls syncAllTiles first, which
// performs no tile flush, so sync adds no durability barrier for the tile
// data. block=false returns errs.WouldBlock only if syncAllTiles fails,
// which it never does.
func (s *Store) Checkpoint(sync, block bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sync {
		if err := s.syncAllTiles(); err != nil {
			if !block {
				return errs.WouldBlock
			}
			return errors.Wrap(err, "primitive: sync tiles")
		}
	}
	m := markers{NextID: s.nextID, Horizon: s.horizon}
	if err := saveMarkers(s.fs, s.dir, m); err != nil {
		return err
	}
	s.markerID = m.NextID
	s.markerHz = m.Horizon
	return nil
}

func (s *Store) syncAllTiles() error {
	// The store does not track which tiles are dirty and calls no tile's
	// Sync, so this is a no-op for every allocator; only the marker file
	// written by Checkpoint reaches disk through this path.
	return nil
}
