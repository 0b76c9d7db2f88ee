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
	"context"
	"encoding/binary"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/primitive"
)

// VIPFanoutThreshold is the fanout at which an endpoint*type pair is
// promoted to its own HM entry (spec §4.8: "the promotion trigger is
// fanout >= a constant").
const VIPFanoutThreshold = 64

// VIP promotes high-fanout endpoint x type pairs to their own HM keyed by
// a composite (endpoint-id, linkage, type-id) struct.
type VIP struct {
	linkage string
	hm      *hm.Map

	mu        sync.Mutex
	fanout    map[vipKey]int
	candidates mapset.Set[vipKey] // endpoints currently tracked as approaching promotion
	promoted  mapset.Set[vipKey]
	horizon   primitive.ID
}

type vipKey struct {
	Endpoint primitive.ID
	TypeID   primitive.ID
}

func NewVIP(linkage string, h *hm.Map) *VIP {
	return &VIP{
		linkage:    linkage,
		hm:         h,
		fanout:     make(map[vipKey]int),
		candidates: mapset.NewSet[vipKey](),
		promoted:   mapset.NewSet[vipKey](),
	}
}

func (v *VIP) Name() string { return "vip-" + v.linkage }

func vipHashKey(linkage string, k vipKey) hm.Key {
	b := make([]byte, 16, 16+len(linkage))
	binary.LittleEndian.PutUint64(b[0:8], uint64(k.Endpoint))
	binary.LittleEndian.PutUint64(b[8:16], uint64(k.TypeID))
	b = append(b, linkage...)
	return hm.Key{Tag: hm.TagVIP, Bytes: b}
}

// Observe records one more edge of (endpoint, typeID), promoting the
// pair once fanout crosses VIPFanoutThreshold.
func (v *VIP) Observe(endpoint, typeID, target primitive.ID) error {
	k := vipKey{Endpoint: endpoint, TypeID: typeID}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fanout[k]++
	if v.fanout[k] < VIPFanoutThreshold {
		v.candidates.Add(k)
		return nil
	}
	v.promoted.Add(k)
	_, err := v.hm.Add(vipHashKey(v.linkage, k), target)
	if err == errs.Exists {
		return nil
	}
	return err
}

// IsPromoted reports whether (endpoint, typeID) has its own VIP entry.
func (v *VIP) IsPromoted(endpoint, typeID primitive.ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.promoted.Contains(vipKey{Endpoint: endpoint, TypeID: typeID})
}

func (v *VIP) OnCommit(*primitive.Record) error {
	// VIP observation is driven explicitly by the linkage indexer (it
	// alone knows endpoint/type/target for a given linkage kind), via
	// Observe; this hub callback exists only so VIP can be registered
	// uniformly and participate in truncation/rollback.
	return nil
}

func (v *VIP) OnTruncate() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fanout = make(map[vipKey]int)
	v.candidates = mapset.NewSet[vipKey]()
	v.promoted = mapset.NewSet[vipKey]()
	v.horizon = 0
	return nil
}

func (v *VIP) Horizon() primitive.ID { return v.horizon }

func (v *VIP) Rollback(horizon primitive.ID) error {
	v.horizon = horizon
	return nil
}

func (v *VIP) RunStage(ctx context.Context, stage checkpoint.Stage, target primitive.ID) error {
	switch stage {
	case checkpoint.StageFinishWrites:
		return v.hm.Flush()
	case checkpoint.StageStartMarker:
		v.horizon = target
	}
	return nil
}
