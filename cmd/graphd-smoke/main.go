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

// Command graphd-smoke is a two-argument end-to-end harness for manual
// poking at a graphd database: no flags, no subcommand framework, just
// <config.toml> <verb>. It is not a product entry point; the real request
// server lives behind the external.QueryPlanner/external collaborators
// this module only declares interfaces for.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/erigontech/graphd/config"
	"github.com/erigontech/graphd/graphdb"
	"github.com/erigontech/graphd/primitive"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: graphd-smoke <config.toml> <put|stats|checkpoint>")
}

func main() {
	if len(os.Args) != 3 {
		usage()
		os.Exit(2)
	}
	configPath, verb := os.Args[1], os.Args[2]

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "graphd-smoke: logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	db, err := graphdb.Open(cfg, log)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	switch verb {
	case "put":
		rec, err := db.Commit(primitive.Attrs{Live: true, Name: []byte("graphd-smoke")})
		if err != nil {
			log.Fatal("commit", zap.Error(err))
		}
		fmt.Printf("committed id=%d lineage=%d\n", rec.ID, rec.LineageID)
	case "stats":
		snap := db.Stats().Snapshot()
		fmt.Printf("primitives_read=%d primitives_written=%d index_elements_read=%d index_elements_written=%d\n",
			snap.PrimitivesRead, snap.PrimitivesWritten, snap.IndexElementsRead, snap.IndexElementsWritten)
	case "checkpoint":
		if err := db.CheckpointMandatory(true); err != nil {
			log.Fatal("checkpoint", zap.Error(err))
		}
		fmt.Println("checkpoint complete")
	default:
		usage()
		os.Exit(2)
	}
}
