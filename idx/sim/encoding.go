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

package sim

import (
	"encoding/binary"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// entrySize is the on-disk width of one packed target id: a 34-bit id
// fits comfortably in 5 bytes (40 bits), matching the link encoding used
// by the record store.
const entrySize = 5

// encodeArray packs list as a count-prefixed sequence of 5-byte entries
// into a zero-padded tile-sized buffer.
func encodeArray(list []primitive.ID, tileSize int) ([]byte, error) {
	need := 4 + len(list)*entrySize
	if need > tileSize {
		return nil, errors.Wrapf(errs.RecordTooLarge, "sim array of %d entries exceeds tile size %d", len(list), tileSize)
	}
	buf := make([]byte, tileSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(list)))
	off := 4
	for _, id := range list {
		putUint40(buf[off:off+entrySize], uint64(id))
		off += entrySize
	}
	return buf, nil
}

// decodeArray reverses encodeArray.
func decodeArray(raw []byte) ([]primitive.ID, error) {
	if len(raw) < 4 {
		return nil, errors.Wrap(errs.Corrupt, "sim: tile shorter than count prefix")
	}
	n := int(binary.LittleEndian.Uint32(raw[0:4]))
	need := 4 + n*entrySize
	if need > len(raw) {
		return nil, errors.Wrapf(errs.Corrupt, "sim: tile too short for %d entries", n)
	}
	out := make([]primitive.ID, n)
	off := 4
	for i := 0; i < n; i++ {
		out[i] = primitive.ID(uint40(raw[off : off+entrySize]))
		off += entrySize
	}
	return out, nil
}

func putUint40(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
}

func uint40(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32
}

func isNotExist(err error) bool { return os.IsNotExist(err) }

func parseSourceKey(s string, v *uint64) (int, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	*v = n
	return 1, nil
}

func formatSourceKey(v uint64) string { return strconv.FormatUint(v, 10) }
