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

package indexer

import (
	"bytes"
	"context"
	"sort"
	"strconv"

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/primitive"
)

// stringBinBoundaries and numericBinBoundaries are the statically
// compiled sorted bin tables of spec §4.8 ("bin boundaries are statically
// compiled sorted tables"). A real deployment would tune these to its
// value distribution; these are reasonable general-purpose defaults
// (log-scale numeric buckets, alphabetic string buckets).
var stringBinBoundaries = [][]byte{
	[]byte(""), []byte("f"), []byte("m"), []byte("s"), []byte("z"),
}

var numericBinBoundaries = []float64{
	-1e12, -1e6, -1e3, -1, 0, 1, 1e3, 1e6, 1e12,
}

// Bin places each record in a string bin and, if its value parses as a
// number, also in a numeric bin (spec §4.8 value-bin indexer).
type Bin struct {
	hm      *hm.Map
	horizon primitive.ID
}

func NewBin(h *hm.Map) *Bin { return &Bin{hm: h} }

func (b *Bin) Name() string { return "value-bin" }

func stringBinKey(value []byte) []byte {
	i := sort.Search(len(stringBinBoundaries), func(i int) bool {
		return bytes.Compare(stringBinBoundaries[i], value) > 0
	})
	if i == 0 {
		return stringBinBoundaries[0]
	}
	return stringBinBoundaries[i-1]
}

func numericBinKey(v float64) (lower float64, exact bool) {
	i := sort.Search(len(numericBinBoundaries), func(i int) bool {
		return numericBinBoundaries[i] > v
	})
	if i == 0 {
		return numericBinBoundaries[0], v == numericBinBoundaries[0]
	}
	return numericBinBoundaries[i-1], v == numericBinBoundaries[i-1]
}

func (b *Bin) OnCommit(rec *primitive.Record) error {
	if len(rec.Value) == 0 {
		return nil
	}
	// String bin: suppressed when the value equals the bin's lower
	// boundary exactly (spec §4.8).
	sk := stringBinKey(rec.Value)
	if !bytes.Equal(sk, rec.Value) {
		key := hm.Key{Tag: hm.TagBin, Bytes: append([]byte{'s'}, sk...)}
		if _, err := b.hm.Add(key, rec.ID); err != nil && err != errs.Exists {
			return err
		}
	}
	if v, ok := parseNumber(rec.Value); ok {
		lower, exact := numericBinKey(v)
		if !exact {
			key := hm.Key{Tag: hm.TagBin, Bytes: append([]byte{'n'}, []byte(strconv.FormatFloat(lower, 'g', -1, 64))...)}
			if _, err := b.hm.Add(key, rec.ID); err != nil && err != errs.Exists {
				return err
			}
		}
	}
	return nil
}

func parseNumber(value []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (b *Bin) OnTruncate() error { b.horizon = 0; return nil }

func (b *Bin) Horizon() primitive.ID { return b.horizon }

func (b *Bin) Rollback(horizon primitive.ID) error { b.horizon = horizon; return nil }

func (b *Bin) RunStage(ctx context.Context, stage checkpoint.Stage, target primitive.ID) error {
	switch stage {
	case checkpoint.StageFinishWrites:
		return b.hm.Flush()
	case checkpoint.StageStartMarker:
		b.horizon = target
	}
	return nil
}
