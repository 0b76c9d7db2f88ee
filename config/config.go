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

// Package config recognizes exactly the configuration keys spec §6 names:
// database path, total memory, tile-size-istore, tile-size-gmap, sync,
// transactional, predictable, and smp process type.
package config

import (
	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ProcessType distinguishes the "smp process type" key's leader/follower
// roles (spec §6: "only the leader writes on shutdown").
type ProcessType string

const (
	Leader   ProcessType = "leader"
	Follower ProcessType = "follower"
)

// Config is the fully typed, validated form of the recognized keys.
type Config struct {
	DatabasePath string `toml:"database_path"`

	TotalMemory    datasize.ByteSize `toml:"total_memory"`
	TileSizeIstore datasize.ByteSize `toml:"tile_size_istore"`
	TileSizeGmap   datasize.ByteSize `toml:"tile_size_gmap"`

	Sync          bool `toml:"sync"`
	Transactional bool `toml:"transactional"`
	Predictable   bool `toml:"predictable"`

	ProcessType ProcessType `toml:"process_type"`
}

// Defaults mirrors what a freshly initialized, non-clustered, durable
// single-process deployment would choose.
func Defaults() Config {
	return Config{
		TotalMemory:    256 * datasize.MB,
		TileSizeIstore: 64 * datasize.KB,
		TileSizeGmap:   64 * datasize.KB,
		Sync:           true,
		Transactional:  true,
		Predictable:    false,
		ProcessType:    Leader,
	}
}

// Load reads and unmarshals a TOML configuration file through fs, laying
// Defaults() underneath so an omitted key falls back sensibly.
func Load(fs afero.Fs, path string) (Config, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the rest of the core cannot operate
// under (spec §6's constraints phrased as key effects).
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("config: database_path is required")
	}
	if c.TileSizeIstore == 0 || c.TileSizeGmap == 0 {
		return errors.New("config: tile sizes must be nonzero")
	}
	if c.ProcessType != Leader && c.ProcessType != Follower {
		return errors.Errorf("config: process_type must be %q or %q, got %q", Leader, Follower, c.ProcessType)
	}
	return nil
}

// IsLeader reports whether this process is the one that writes on
// shutdown (spec §6: "smp process type: leader vs follower; only the
// leader writes on shutdown").
func (c Config) IsLeader() bool { return c.ProcessType == Leader }
