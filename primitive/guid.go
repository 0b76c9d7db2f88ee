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

	"github.com/google/uuid"
)

// GUID is the 128-bit external identifier: a 64-bit database component and
// a 64-bit serial. The GUID library proper (allocation policy across a
// federation of databases) is an external collaborator; graphd only needs
// the wire shape and the "is this ours" predicate.
type GUID struct {
	DB     uint64
	Serial uint64
}

// NilGUID is the all-zeros identifier.
var NilGUID = GUID{}

// IsNil reports whether g is the all-zeros identifier.
func (g GUID) IsNil() bool { return g.DB == 0 && g.Serial == 0 }

// Local reports whether g belongs to database ourDB, in which case
// g.Serial must equal the local id it names.
func (g GUID) Local(ourDB uint64) bool { return g.DB == ourDB }

// Bytes encodes g as 16 big-endian bytes: db, then serial.
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], g.DB)
	binary.BigEndian.PutUint64(b[8:16], g.Serial)
	return b
}

// GUIDFromBytes decodes the wire form produced by Bytes.
func GUIDFromBytes(b [16]byte) GUID {
	return GUID{
		DB:     binary.BigEndian.Uint64(b[0:8]),
		Serial: binary.BigEndian.Uint64(b[8:16]),
	}
}

// ForLocal builds the external identifier for a record that is local to
// database ourDB: its serial is simply the local id.
func ForLocal(ourDB uint64, id ID) GUID {
	return GUID{DB: ourDB, Serial: uint64(id)}
}

// RandomSerial produces a GUID for a foreign-origin primitive that was
// imported without an explicit external identifier supplied by the
// originating database. Used only as the documented fallback; ordinary
// imports carry their own identifier.
func RandomSerial(foreignDB uint64) GUID {
	u := uuid.New()
	return GUID{DB: foreignDB, Serial: binary.BigEndian.Uint64(u[:8])}
}
