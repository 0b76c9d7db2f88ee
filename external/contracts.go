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

// Package external names the abstract contracts spec.md §1 puts out of
// scope: the query language parser/planner, the request server and
// replication layer, the GUID allocation library, the command-line driver,
// and the tile/page-cache allocator beneath the indices. graphd consumes
// all of them only through these interfaces; package tile supplies the
// one concrete implementation (TileAllocator) this module needs in order
// to be runnable on its own.
package external

import "io"

// Tile is one fixed-size page of a tiled file.
type Tile interface {
	io.ReaderAt
	io.WriterAt
	// Bytes returns a zero-copy view of the tile's full contents.
	Bytes() []byte
	// Sync flushes the tile to stable storage, with a durability barrier
	// when the allocator's configuration requests one.
	Sync() error
}

// TileAllocator is the abstract contract for the page-cache allocator
// beneath the record store and the SIM/BM/HM index families. graphd's own
// record and index formats are laid out in fixed-size tiles; how those
// tiles are paged in and out of memory is deliberately pluggable.
type TileAllocator interface {
	// Open returns (creating if necessary) the tile at the given index
	// within a named extent (e.g. "primitive", "left", "hmap/0").
	Open(extent string, tileIndex uint64) (Tile, error)
	// Extend grows a named extent by one tile, returning its index.
	Extend(extent string) (uint64, error)
	// TileSize is the fixed size of every tile the allocator hands out.
	TileSize() int
	// Truncate discards all tiles of the named extent.
	Truncate(extent string) error
	// Close releases any cached state; outstanding Tile handles become
	// invalid.
	Close() error
}

// QueryPlanner stands in for the query language parser and planner
// (out of scope per spec §1); graphd's iterators are the compiled target
// a planner would produce, not the planner itself.
type QueryPlanner interface {
	Plan(query string) (Plan, error)
}

// Plan is an opaque planner output; graphd never inspects it.
type Plan interface{}

// RemapLayer is the optional "concentric" GUID remap lookup mentioned as
// an open question in spec §9: a database restoring from another
// database's export may need to remap foreign-origin external identifiers.
// graphd treats it as an optional consultation point only; a nil
// RemapLayer (or NoRemap) means "no remapping in effect."
type RemapLayer interface {
	// Remap returns the identifier that `from` should be treated as, or
	// ok=false if no remapping applies.
	Remap(from [16]byte) (to [16]byte, ok bool)
}

// NoRemap is the default RemapLayer: every lookup misses.
var NoRemap RemapLayer = noRemap{}

type noRemap struct{}

func (noRemap) Remap([16]byte) ([16]byte, bool) { return [16]byte{}, false }
