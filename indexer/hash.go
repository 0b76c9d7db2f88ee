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

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/primitive"
)

// Hash indexes one of the three byte-keyed namespaces spec §4.8 names:
// name, value, or word (word splits a value on whitespace and indexes
// each token separately, feeding the prefix iterator of spec §4.6.7).
type Hash struct {
	tag     hm.Tag
	hm      *hm.Map
	word    bool
	horizon primitive.ID
}

func NewNameHash(h *hm.Map) *Hash  { return &Hash{tag: hm.TagName, hm: h} }
func NewValueHash(h *hm.Map) *Hash { return &Hash{tag: hm.TagValue, hm: h} }
func NewWordHash(h *hm.Map) *Hash  { return &Hash{tag: hm.TagWord, hm: h, word: true} }

func (h *Hash) Name() string {
	switch h.tag {
	case hm.TagName:
		return "hash-name"
	case hm.TagValue:
		return "hash-value"
	default:
		return "hash-word"
	}
}

func (h *Hash) OnCommit(rec *primitive.Record) error {
	var bs [][]byte
	switch h.tag {
	case hm.TagName:
		if len(rec.Name) > 0 {
			bs = [][]byte{rec.Name}
		}
	case hm.TagValue:
		if len(rec.Value) > 0 {
			bs = [][]byte{rec.Value}
		}
	case hm.TagWord:
		if h.word {
			bs = splitWords(rec.Value)
		}
	}
	for _, b := range bs {
		_, err := h.hm.Add(hm.Key{Tag: h.tag, Bytes: b}, rec.ID)
		if err != nil && err != errs.Exists {
			return err
		}
	}
	return nil
}

func splitWords(value []byte) [][]byte {
	return bytes.Fields(value)
}

func (h *Hash) OnTruncate() error { h.horizon = 0; return nil }

func (h *Hash) Horizon() primitive.ID { return h.horizon }

func (h *Hash) Rollback(horizon primitive.ID) error { h.horizon = horizon; return nil }

func (h *Hash) RunStage(ctx context.Context, stage checkpoint.Stage, target primitive.ID) error {
	switch stage {
	case checkpoint.StageFinishWrites:
		return h.hm.Flush()
	case checkpoint.StageStartMarker:
		h.horizon = target
	}
	return nil
}
