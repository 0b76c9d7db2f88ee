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

package graphdb

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/erigontech/graphd/checkpoint"
	"github.com/erigontech/graphd/config"
	"github.com/erigontech/graphd/dbstats"
	"github.com/erigontech/graphd/external"
	"github.com/erigontech/graphd/idx/bm"
	"github.com/erigontech/graphd/idx/hm"
	"github.com/erigontech/graphd/idx/sim"
	"github.com/erigontech/graphd/indexer"
	"github.com/erigontech/graphd/iter"
	"github.com/erigontech/graphd/lockfile"
	"github.com/erigontech/graphd/primitive"
	"github.com/erigontech/graphd/subscribe"
	"github.com/erigontech/graphd/tile"
)

// minCacheTiles is the floor on how many tiles the mmap allocator's LRU
// holds resident; openLocked raises it to config.TotalMemory / the gmap
// tile size when that is larger.
const minCacheTiles = 64

// Open acquires dir's lockfile, opens or initializes the on-disk layout
// under cfg.DatabasePath, and wires every subsystem spec §0 names into
// one Database handle.
func Open(cfg config.Config, log *zap.Logger) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	lock, err := lockfile.Acquire(cfg.DatabasePath)
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: acquire lockfile")
	}
	db, err := openLocked(cfg, log, afero.NewOsFs(), nil)
	if err != nil {
		lock.Release()
		return nil, err
	}
	db.lock = lock
	return db, nil
}

// OpenForTest wires the same subsystems over an injected filesystem and
// tile allocators, skipping the lockfile (tests run in a temp dir afero
// provides no OS-level advisory lock for anyway). reg may be nil.
func OpenForTest(cfg config.Config, log *zap.Logger, fs afero.Fs, istore, gmap external.TileAllocator, reg prometheus.Registerer) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return assemble(cfg, log, fs, istore, gmap, reg)
}

func openLocked(cfg config.Config, log *zap.Logger, fs afero.Fs, reg prometheus.Registerer) (*Database, error) {
	cacheTiles := minCacheTiles
	if cfg.TotalMemory > 0 && cfg.TileSizeGmap > 0 {
		if n := int(uint64(cfg.TotalMemory) / uint64(cfg.TileSizeGmap)); n > cacheTiles {
			cacheTiles = n
		}
	}
	istore, err := tile.NewAllocator(filepath.Join(cfg.DatabasePath, "primitive"), int(cfg.TileSizeIstore), cacheTiles, cfg.Sync, log.Named("tile-istore"))
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: open istore allocator")
	}
	gmap, err := tile.NewAllocator(filepath.Join(cfg.DatabasePath, "gmap"), int(cfg.TileSizeGmap), cacheTiles, cfg.Sync, log.Named("tile-gmap"))
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: open gmap allocator")
	}
	return assemble(cfg, log, fs, istore, gmap, reg)
}

func assemble(cfg config.Config, log *zap.Logger, fs afero.Fs, istore, gmap external.TileAllocator, reg prometheus.Registerer) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := cfg.DatabasePath

	dbID, err := primitive.AdoptDatabaseID(fs, dir)
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: adopt database id")
	}

	store, err := primitive.Open(istore, fs, dir, log)
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: open record store")
	}

	arrays := make(map[string]*sim.Map, len(linkageExtents))
	bitmaps := make(map[string]*bm.Map, len(linkageExtents))
	linkages := make(map[string]*indexer.Linkage, len(linkageExtents))
	for _, name := range linkageExtents {
		a, err := sim.Open(gmap, fs, dir, name)
		if err != nil {
			return nil, errors.Wrapf(err, "graphdb: open sim extent %s", name)
		}
		b, err := bm.Open(gmap, fs, dir, name)
		if err != nil {
			return nil, errors.Wrapf(err, "graphdb: open bm extent %s", name)
		}
		arrays[name] = a
		bitmaps[name] = b
		linkages[name] = indexer.NewLinkage(name, a, b, pickerFor(name))
	}

	hmap, err := hm.Open(gmap, fs, dir, hmapExtent)
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: open hmap")
	}

	vips := make(map[string]*indexer.VIP, 2)
	for _, name := range []string{"right", "left"} {
		v := indexer.NewVIP(name, hmap)
		vips[name] = v
		linkages[name].WithVIP(v)
	}

	gen := indexer.NewGeneration(hmap)
	names := indexer.NewNameHash(hmap)
	values := indexer.NewValueHash(hmap)
	words := indexer.NewWordHash(hmap)
	bins := indexer.NewBin(hmap)
	dead, err := indexer.NewDeadFile(fs, filepath.Join(dir, "dead"))
	if err != nil {
		return nil, errors.Wrap(err, "graphdb: open dead extent")
	}

	hub := subscribe.NewHub()
	var indices []checkpoint.Index
	for _, name := range linkageExtents {
		hub.Register(linkages[name])
		indices = append(indices, linkages[name])
	}
	for _, name := range []string{"right", "left"} {
		hub.Register(vips[name])
		indices = append(indices, vips[name])
	}
	for _, sub := range []interface {
		subscribe.Subscriber
		checkpoint.Index
	}{gen, names, values, words, bins, dead} {
		hub.Register(sub)
		indices = append(indices, sub)
	}

	stats := dbstats.New(reg)
	engine := checkpoint.New(store, indices, stats, log)

	return &Database{
		cfg:      cfg,
		log:      log,
		dbID:     dbID,
		chain:    iter.NewChain(),
		istore:   istore,
		gmap:     gmap,
		store:    store,
		hmap:     hmap,
		linkages: linkages,
		arrays:   arrays,
		bitmaps:  bitmaps,
		vips:     vips,
		gen:      gen,
		names:    names,
		values:   values,
		words:    words,
		bins:     bins,
		dead:     dead,
		hub:      hub,
		engine:   engine,
		stats:    stats,
	}, nil
}

func pickerFor(name string) func(*primitive.Record) (primitive.ID, primitive.ID, bool) {
	var field func(*primitive.Record) primitive.ID
	switch name {
	case "type":
		field = func(r *primitive.Record) primitive.ID { return r.TypeID }
	case "right":
		field = func(r *primitive.Record) primitive.ID { return r.RightID }
	case "left":
		field = func(r *primitive.Record) primitive.ID { return r.LeftID }
	case "scope":
		field = func(r *primitive.Record) primitive.ID { return r.ScopeID }
	}
	return func(rec *primitive.Record) (primitive.ID, primitive.ID, bool) {
		id := field(rec)
		if id == primitive.NoID {
			return primitive.NoID, primitive.NoID, false
		}
		return id, rec.ID, true
	}
}

// Close releases the lockfile (if held) and the underlying tile
// allocators.
func (d *Database) Close() error {
	var firstErr error
	if err := d.istore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.gmap.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if d.lock != nil {
		if err := d.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
