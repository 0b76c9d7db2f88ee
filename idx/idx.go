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

// Package idx defines the contract shared by the three secondary-index
// representations (spec §4.3-§4.5): sorted id-array map (sim), bitmap map
// (bm), and hash map (hm). All three map a source key to an ascending,
// duplicate-free sequence of target ids; they differ only in the physical
// form that sequence takes and how the source key is addressed.
package idx

import "github.com/erigontech/graphd/primitive"

// Kind is the physical representation backing one source's array.
type Kind uint8

const (
	// KindSIM is a packed sorted array of ids, one tile per source.
	KindSIM Kind = iota
	// KindBM is a roaring-bitmap set, chosen once a source's array grows
	// past PromoteThreshold (spec §4.4: "chosen automatically when a
	// source's array grows past a threshold determined by the index
	// library").
	KindBM
)

func (k Kind) String() string {
	switch k {
	case KindSIM:
		return "sim"
	case KindBM:
		return "bm"
	default:
		return "unknown"
	}
}

// PromoteThreshold is the array length at which sim.Map promotes a
// source's representation to bm.Map in place. Chosen so a maximal SIM
// array (threshold entries at 5 bytes each) still comfortably fits in one
// 64KiB tile alongside header slack.
const PromoteThreshold = 4096

// Source is the read contract common to a SIM, BM, or HM entry: the
// ascending id sequence belonging to one source key.
type Source interface {
	Kind() Kind
	Len() int
	At(i int) (primitive.ID, bool)
	Contains(id primitive.ID) bool
	// Bounds returns the half-open [lo, hi) position range addressable by
	// At/Contains; for a freshly constructed handle this is [0, Len()).
	Bounds() (lo, hi int)
}
