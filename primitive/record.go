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
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
)

// Flags is the bit-flag set of spec §3.1: { live, archival,
// transaction-start, has-previous-version, has-name, has-value }.
type Flags uint8

const (
	FlagLive Flags = 1 << iota
	FlagArchival
	FlagTransactionStart
	FlagHasPrevious
	FlagHasName
	FlagHasValue
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// MaxNameLen and MaxValueLen bound name/value sizes (spec §3.1, §8 boundary
// behavior: 65535 succeeds, 65536 fails with RecordTooLarge).
const (
	MaxNameLen  = 1<<16 - 1
	MaxValueLen = 16<<20 - headerReserve
	// headerReserve is slack for the fixed layout fields, keeping
	// MaxValueLen inside the 3-byte value-length field. Store.Allocate
	// separately rejects any encoded record larger than one tile.
	headerReserve = 4096
)

// linkCount is the number of compressed-length nibbles in the fixed
// 7..10 span: type, right, left, scope, external-guid override.
const linkCount = 5

const (
	linkType = iota
	linkRight
	linkLeft
	linkScope
	linkExternalGUID
)

// Attrs is the caller-supplied shape of a primitive at allocation time.
// Linkage fields are resolved to local ids by the caller (or by the
// surrounding database handle) before Allocate is invoked; spec §4.2 step 2
// ("compress each non-null linkage identifier") operates on already-local
// ids here, GUID resolution itself belongs to the name/hash index and is
// not part of the tiled encoding.
//
// PreviousID is the one caller-facing input for versioning: the id of the
// immediate predecessor this record supersedes, or NoID for a lineage
// root. HasPrevious/LineageID/Generation are the derived wire-level fields
// Encode actually serializes; a caller driving Encode directly (as the
// tests in this package do) sets them itself, but the ordinary path is
// through the database handle's Commit, which looks up PreviousID's
// lineage and generation (spec §4.2 step 6) and fills these in before
// Allocate ever sees them.
type Attrs struct {
	Timestamp        uint64 // 48-bit
	Live             bool
	Archival         bool
	TransactionStart bool
	ValueType        uint8
	Name             []byte
	Value            []byte

	TypeID, RightID, LeftID, ScopeID ID // NoID if absent
	ExternalGUID                     GUID

	PreviousID ID // NoID: this record is a lineage root

	HasPrevious bool
	LineageID   ID
	Generation  uint64
}

func (a Attrs) flags() Flags {
	var f Flags
	if a.Live {
		f |= FlagLive
	}
	if a.Archival {
		f |= FlagArchival
	}
	if a.TransactionStart {
		f |= FlagTransactionStart
	}
	if a.HasPrevious {
		f |= FlagHasPrevious
	}
	if len(a.Name) > 0 {
		f |= FlagHasName
	}
	if len(a.Value) > 0 {
		f |= FlagHasValue
	}
	return f
}

// Record is the decoded view a read handle exposes.
type Record struct {
	ID        ID
	Timestamp uint64
	Flags     Flags
	ValueType uint8
	Name      []byte
	Value     []byte

	TypeID, RightID, LeftID, ScopeID ID
	ExternalGUID                     GUID

	LineageID  ID
	Generation uint64
}

// varintLink renders id as the minimal big-endian byte string (1 to 5
// bytes, since a 34-bit id never needs a 6th byte); NoID encodes as a
// zero-length string (nibble stores 0 => "absent").
func varintLink(id ID) []byte {
	if id == NoID {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func unvarintLink(b []byte) ID {
	if len(b) == 0 {
		return NoID
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return ID(binary.BigEndian.Uint64(buf[:]))
}

// Encode renders attrs into the on-disk layout of spec §4.1. dst may be
// nil or reused scratch space; Encode grows it with append as needed.
func Encode(dst []byte, attrs Attrs) ([]byte, error) {
	if len(attrs.Name) > MaxNameLen {
		return nil, errors.Wrapf(errs.RecordTooLarge, "name length %d exceeds %d", len(attrs.Name), MaxNameLen)
	}
	value := attrs.Value
	if attrs.Archival && len(value) > 0 {
		value = snappy.Encode(nil, value)
	}
	if len(value) > MaxValueLen {
		return nil, errors.Wrapf(errs.RecordTooLarge, "value length %d exceeds %d", len(value), MaxValueLen)
	}

	links := [linkCount][]byte{}
	links[linkType] = varintLink(attrs.TypeID)
	links[linkRight] = varintLink(attrs.RightID)
	links[linkLeft] = varintLink(attrs.LeftID)
	links[linkScope] = varintLink(attrs.ScopeID)
	if !attrs.ExternalGUID.IsNil() {
		b := attrs.ExternalGUID.Bytes()
		links[linkExternalGUID] = b[:]
	}
	for i, l := range links {
		if len(l) > 16 {
			return nil, errors.Wrapf(errs.Corrupt, "link %d encodes to %d bytes, max 16", i, len(l))
		}
	}

	out := dst[:0]
	var hdr [11]byte
	binary.LittleEndian.PutUint64(hdr[0:8], attrs.Timestamp) // 0..6 used, 6..8 overwritten below
	hdr[6] = byte(attrs.flags())
	// 7..10: five 4-bit nibbles, packed low-to-high across 3 bytes (20 bits
	// used, 4 reserved). nibble 0 means absent; for the four plain
	// linkages (always a short varint, 1-5 bytes) the nibble holds the
	// literal byte length (1..14); the external-guid override slot is
	// fixed-size when present, so it reuses nibble 15 as a single
	// "present, 16 bytes" sentinel rather than encoding a length at all.
	var nibbles uint32
	for i, l := range links {
		n := uint32(0)
		switch {
		case i == linkExternalGUID && len(l) > 0:
			n = 15
		case len(l) > 0:
			n = uint32(len(l))
		}
		nibbles |= n << (4 * i)
	}
	hdr[7] = byte(nibbles)
	hdr[8] = byte(nibbles >> 8)
	hdr[9] = byte(nibbles >> 16)
	hdr[10] = attrs.ValueType
	out = append(out, hdr[:]...)

	if attrs.flags().Has(FlagHasName) {
		var nl [2]byte
		binary.LittleEndian.PutUint16(nl[:], uint16(len(attrs.Name)))
		out = append(out, nl[:]...)
		out = append(out, attrs.Name...)
	}

	var vl [3]byte
	vl[0] = byte(len(value))
	vl[1] = byte(len(value) >> 8)
	vl[2] = byte(len(value) >> 16)
	out = append(out, vl[:]...)
	out = append(out, value...)

	for _, l := range links {
		out = append(out, l...)
	}

	if attrs.HasPrevious {
		var lin [5]byte
		putUint40(lin[:], uint64(attrs.LineageID))
		out = append(out, lin[:]...)
		var gen [5]byte
		putUint40(gen[:], attrs.Generation)
		out = append(out, gen[:]...)
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

// Decode parses the on-disk layout back into a Record. id is supplied by
// the caller (the record store knows its own id; it is not stored inline).
func Decode(id ID, raw []byte) (*Record, error) {
	if len(raw) < 11 {
		return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated header (%d bytes)", id, len(raw))
	}
	r := &Record{ID: id}
	r.Timestamp = binary.LittleEndian.Uint64(raw[0:8]) & (1<<48 - 1)
	r.Flags = Flags(raw[6])
	nibbles := uint32(raw[7]) | uint32(raw[8])<<8 | uint32(raw[9])<<16
	r.ValueType = raw[10]
	off := 11

	var linkLens [linkCount]int
	for i := range linkLens {
		n := (nibbles >> (4 * i)) & 0xF
		switch {
		case n == 0:
			linkLens[i] = 0
		case i == linkExternalGUID:
			linkLens[i] = 16
		default:
			linkLens[i] = int(n)
		}
	}

	if r.Flags.Has(FlagHasName) {
		if off+2 > len(raw) {
			return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated name length", id)
		}
		nl := int(binary.LittleEndian.Uint16(raw[off : off+2]))
		off += 2
		if off+nl > len(raw) {
			return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated name", id)
		}
		r.Name = raw[off : off+nl]
		off += nl
	}

	if off+3 > len(raw) {
		return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated value length", id)
	}
	vl := int(raw[off]) | int(raw[off+1])<<8 | int(raw[off+2])<<16
	off += 3
	if off+vl > len(raw) {
		return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated value", id)
	}
	value := raw[off : off+vl]
	off += vl
	if r.Flags.Has(FlagArchival) && len(value) > 0 {
		dv, err := snappy.Decode(nil, value)
		if err != nil {
			return nil, errors.Wrapf(errs.Corrupt, "record %d: archival value decompress: %v", id, err)
		}
		value = dv
	}
	r.Value = value

	links := make([][]byte, linkCount)
	for i, l := range linkLens {
		if l == 0 {
			continue
		}
		if off+l > len(raw) {
			return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated link %d", id, i)
		}
		links[i] = raw[off : off+l]
		off += l
	}
	r.TypeID = unvarintLink(links[linkType])
	r.RightID = unvarintLink(links[linkRight])
	r.LeftID = unvarintLink(links[linkLeft])
	r.ScopeID = unvarintLink(links[linkScope])
	if len(links[linkExternalGUID]) == 16 {
		var b [16]byte
		copy(b[:], links[linkExternalGUID])
		r.ExternalGUID = GUIDFromBytes(b)
	}

	if r.Flags.Has(FlagHasPrevious) {
		if off+10 > len(raw) {
			return nil, errors.Wrapf(errs.Corrupt, "record %d: truncated generation fields", id)
		}
		r.LineageID = ID(uint40(raw[off : off+5]))
		off += 5
		r.Generation = uint40(raw[off : off+5])
		off += 5
	} else {
		r.LineageID = NoID
	}
	return r, nil
}
