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

// Package hm implements the hash map (spec §4.5): maps an arbitrary byte
// key, tagged with a type (name/value/word/generation/vip/...), to an
// ascending id-array. Structurally the same array representation as sim,
// addressed by a hashed (type, key) pair instead of a source id.
package hm

import (
	"encoding/binary"
	"hash/maphash"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/external"
	"github.com/erigontech/graphd/idx"
	"github.com/erigontech/graphd/idx/sim"
	"github.com/erigontech/graphd/primitive"
)

// Tag distinguishes the hash namespaces sharing one Map (spec §4.5: name,
// value, word, generation, vip, key bins).
type Tag uint8

const (
	TagName Tag = iota
	TagValue
	TagWord
	TagGeneration
	TagVIP
	TagBin
)

var hashSeed = maphash.MakeSeed()

// Key identifies one hash-map entry: a type tag plus an arbitrary byte
// key (e.g. a name string, a value's canonical bytes, a generation's
// lineage id).
type Key struct {
	Tag   Tag
	Bytes []byte
}

// slot folds Key down to the 34-bit source id sim.Map addresses entries
// by. Collisions across distinct Keys are expected and resolved by an
// inner filter keyed on the full Key, because the 34-bit space is far
// smaller than the practical key space.
func slot(k Key) primitive.ID {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	h.WriteByte(byte(k.Tag))
	h.Write(k.Bytes)
	sum := h.Sum64()
	return primitive.ID(sum & uint64(primitive.MaxID))
}

// Map is one hash-map instance. It composes a sim.Map keyed by slot(Key)
// for the underlying array storage, plus a side table recording which
// full Key maps to which slot so distinct keys colliding in the 34-bit
// space are not confused with one another.
type Map struct {
	arrays *sim.Map

	mu      sync.RWMutex
	bySlot  map[primitive.ID][]Key // collision chain, ordered by first insertion
	ownerOf map[string]primitive.ID
}

func Open(alloc external.TileAllocator, fs afero.Fs, dir, extent string) (*Map, error) {
	arrays, err := sim.Open(alloc, fs, dir, extent)
	if err != nil {
		return nil, err
	}
	return &Map{
		arrays:  arrays,
		bySlot:  make(map[primitive.ID][]Key),
		ownerOf: make(map[string]primitive.ID),
	}, nil
}

func keyString(k Key) string {
	var hdr [1]byte
	hdr[0] = byte(k.Tag)
	return string(hdr[:]) + string(k.Bytes)
}

// resolveSlot returns the slot id for k, recording k in the collision
// chain the first time it is seen.
func (m *Map) resolveSlot(k Key) primitive.ID {
	ks := keyString(k)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.ownerOf[ks]; ok {
		return s
	}
	s := slot(k)
	m.ownerOf[ks] = s
	m.bySlot[s] = append(m.bySlot[s], k)
	return s
}

// Add inserts target under key's array.
func (m *Map) Add(key Key, target primitive.ID) (promote bool, err error) {
	return m.arrays.Add(m.resolveSlot(key), target)
}

// Remove deletes target from key's array.
func (m *Map) Remove(key Key, target primitive.ID) error {
	return m.arrays.Remove(m.resolveSlot(key), target)
}

// ArrayOf returns the ascending array stored under key.
func (m *Map) ArrayOf(key Key) ([]primitive.ID, error) {
	return m.arrays.ArrayOf(m.resolveSlot(key))
}

// Handle returns a bounded idx.Source over key's array.
func (m *Map) Handle(key Key) (idx.Source, error) {
	return m.arrays.Handle(m.resolveSlot(key))
}

// Flush persists the underlying sim.Map.
func (m *Map) Flush() error { return m.arrays.Flush() }

// KeysWithTag returns every distinct Key seen so far under tag. Used by
// the prefix iterator (spec §4.6.7) to enumerate candidate completions,
// since a hash map has no native lexicographic scan; this is a
// linear scan of the collision-chain bookkeeping, acceptable because
// prefix queries are expected to run over a bounded word/name namespace,
// not the full id space.
func (m *Map) KeysWithTag(tag Tag) []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Key
	for _, chain := range m.bySlot {
		for _, k := range chain {
			if k.Tag == tag {
				out = append(out, k)
			}
		}
	}
	return out
}

// GenerationKey builds the hash key identifying a lineage's generation
// index entry (spec §4.5: "a specialized use of HM keyed by lineage id
// with type-tag generation").
func GenerationKey(lineage primitive.ID) Key {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(lineage))
	return Key{Tag: TagGeneration, Bytes: b[:]}
}

// NthGeneration returns the id of the nth (0-indexed) version in
// lineage's history, using the generation index's array ordering (each
// entry appended in generation order, per spec §4.2 step 6).
func (m *Map) NthGeneration(lineage primitive.ID, n int) (primitive.ID, error) {
	arr, err := m.ArrayOf(GenerationKey(lineage))
	if err != nil {
		return primitive.NoID, err
	}
	if n < 0 || n >= len(arr) {
		return primitive.NoID, errs.NotFound
	}
	return arr[n], nil
}

// GenerationIndex returns the 0-indexed generation number of id within
// lineage's history, or errs.NotFound if id is not recorded there.
func (m *Map) GenerationIndex(lineage, id primitive.ID) (int, error) {
	arr, err := m.ArrayOf(GenerationKey(lineage))
	if err != nil {
		return -1, err
	}
	i := sort.Search(len(arr), func(i int) bool { return arr[i] >= id })
	if i >= len(arr) || arr[i] != id {
		return -1, errs.NotFound
	}
	return i, nil
}
