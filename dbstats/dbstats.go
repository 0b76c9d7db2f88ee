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

// Package dbstats is the flat runtime-statistics structure of spec §6:
// monotonic counters, exported as Prometheus gauges for scraping and
// readable as a point-in-time snapshot for per-request accounting.
package dbstats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time copy of the counters, used as a per-request
// accounting currency separate from the iterator budget (spec §6).
type Snapshot struct {
	PrimitivesRead       uint64
	PrimitivesWritten    uint64
	IndexExtentsRead     uint64
	IndexElementsRead    uint64
	IndexElementsWritten uint64
}

// Sub computes b-a with wraparound-safe unsigned subtraction (spec §6:
// "monotonic within a process; subtraction is wraparound-safe").
func (b Snapshot) Sub(a Snapshot) Snapshot {
	return Snapshot{
		PrimitivesRead:       b.PrimitivesRead - a.PrimitivesRead,
		PrimitivesWritten:    b.PrimitivesWritten - a.PrimitivesWritten,
		IndexExtentsRead:     b.IndexExtentsRead - a.IndexExtentsRead,
		IndexElementsRead:    b.IndexElementsRead - a.IndexElementsRead,
		IndexElementsWritten: b.IndexElementsWritten - a.IndexElementsWritten,
	}
}

// Stats holds the live, atomically-updated counters and mirrors them
// into Prometheus gauges registered under the "graphd" namespace.
type Stats struct {
	primitivesRead       atomic.Uint64
	primitivesWritten    atomic.Uint64
	indexExtentsRead     atomic.Uint64
	indexElementsRead    atomic.Uint64
	indexElementsWritten atomic.Uint64

	gauges *prometheus.GaugeVec
}

// New constructs a Stats and registers its gauges with reg. reg may be
// nil to skip Prometheus registration entirely (used by tests).
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{}
	s.gauges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "graphd",
		Subsystem: "dbstats",
		Name:      "counter",
		Help:      "Monotonic runtime counters (spec §6).",
	}, []string{"counter"})
	if reg != nil {
		reg.MustRegister(s.gauges)
	}
	return s
}

func (s *Stats) AddPrimitivesRead(n uint64) {
	v := s.primitivesRead.Add(n)
	s.publish("primitives_read", v)
}

func (s *Stats) AddPrimitivesWritten(n uint64) {
	v := s.primitivesWritten.Add(n)
	s.publish("primitives_written", v)
}

func (s *Stats) AddIndexExtentsRead(n uint64) {
	v := s.indexExtentsRead.Add(n)
	s.publish("index_extents_read", v)
}

func (s *Stats) AddIndexElementsRead(n uint64) {
	v := s.indexElementsRead.Add(n)
	s.publish("index_elements_read", v)
}

func (s *Stats) AddIndexElementsWritten(n uint64) {
	v := s.indexElementsWritten.Add(n)
	s.publish("index_elements_written", v)
}

func (s *Stats) publish(name string, v uint64) {
	if s.gauges == nil {
		return
	}
	s.gauges.WithLabelValues(name).Set(float64(v))
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		PrimitivesRead:       s.primitivesRead.Load(),
		PrimitivesWritten:    s.primitivesWritten.Load(),
		IndexExtentsRead:     s.indexExtentsRead.Load(),
		IndexElementsRead:    s.indexElementsRead.Load(),
		IndexElementsWritten: s.indexElementsWritten.Load(),
	}
}
