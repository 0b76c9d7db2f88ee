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

import "fmt"

// ID is a dense 34-bit local identifier, assigned monotonically at
// allocation. ID(0) is a valid id; absence is spelled NoID, a value
// outside the 34-bit range so it can never collide with a real id.
type ID uint64

const (
	// IDBits is the width of a local id.
	IDBits = 34
	// MaxID is the largest representable local id.
	MaxID ID = 1<<IDBits - 1
	// NoID denotes the absence of an id (spec's ID_NONE).
	NoID ID = 1 << IDBits
)

// Valid reports whether id is in [0, MaxID].
func (id ID) Valid() bool { return id <= MaxID }

func (id ID) String() string {
	if id == NoID {
		return "<none>"
	}
	return fmt.Sprintf("%d", uint64(id))
}

// HighAny is the sentinel "open" upper bound for an iterator: "no upper
// bound", i.e. high is exclusive and effectively +infinity.
const HighAny ID = NoID
