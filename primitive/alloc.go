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
	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
)

// Scratch is the handle spec §4.2 passes between Allocate and Commit: the
// id already reserved in the tiled store, and the encoded bytes now
// sitting in that tile. Store.Read already accepts the id once
// AllocateRecord returns, since next_id has advanced.
type Scratch struct {
	ID  ID
	buf []byte
}

// AllocateRecord performs spec §4.2 steps 1-6: encode attrs (compressing
// linkages, snappy-compressing an archival value), reserve tile space for
// the result, and write it into place. The record is not yet durable or
// indexed; the caller must still run its own linkage-resolution and
// subscription-hub dispatch before calling Commit.
func (s *Store) AllocateRecord(attrs Attrs) (*Scratch, error) {
	encoded, err := Encode(nil, attrs)
	if err != nil {
		return nil, err
	}
	id, buf, err := s.Allocate(len(encoded))
	if err != nil {
		return nil, err
	}
	copy(buf, encoded)
	return &Scratch{ID: id, buf: buf}, nil
}

// Commit performs spec §4.2 step 7: re-decode the just-written bytes and
// confirm they round-trip to the id the caller expects, returning the
// decoded record. Commit does not change what Read can see. A mismatch
// means either a concurrent writer
// raced this store (the store is meant to be single-writer) or the bytes
// were corrupted in place; either way the mismatch is reported rather
// than silently accepted.
func (s *Store) Commit(scratch *Scratch, expect ID) (*Record, error) {
	if scratch.ID != expect {
		return nil, errors.Wrapf(errs.InternalInconsistency, "scratch id %s != expected %s", scratch.ID, expect)
	}
	rec, err := Decode(scratch.ID, scratch.buf)
	if err != nil {
		return nil, errors.Wrap(err, "primitive: commit re-decode")
	}
	return rec, nil
}

// Abandon releases a reserved-but-uncommitted scratch buffer. Because
// Allocate already advanced next_id irreversibly (spec §4.1: ids are never
// reused), Abandon only zeroes the tile so a reader that somehow raced in
// before Commit never observes partial bytes; it is not a true rollback.
func (s *Store) Abandon(scratch *Scratch) {
	for i := range scratch.buf {
		scratch.buf[i] = 0
	}
}
