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

package primitive

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// markerFile is the small sidecar recording the two monotonic markers
// (spec §6's "marker-next" / "marker-horizon"). It is rewritten
// write-temp-then-rename on every Checkpoint so a crash mid-write never
// leaves a torn marker behind.
const markerFile = "primitive.markers.json"

type markers struct {
	NextID  uint64 `json:"next_id"`
	Horizon uint64 `json:"horizon"`
}

func loadMarkers(fs afero.Fs, dir string) (markers, error) {
	path := filepath.Join(dir, markerFile)
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return markers{}, nil
		}
		return markers{}, errors.Wrapf(err, "primitive: read markers %s", path)
	}
	var m markers
	if err := json.Unmarshal(b, &m); err != nil {
		return markers{}, errors.Wrapf(err, "primitive: parse markers %s", path)
	}
	return m, nil
}

func saveMarkers(fs afero.Fs, dir string, m markers) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "primitive: mkdir %s", dir)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "primitive: marshal markers")
	}
	tmp := filepath.Join(dir, markerFile+".tmp")
	if err := afero.WriteFile(fs, tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "primitive: write %s", tmp)
	}
	if err := fs.Rename(tmp, filepath.Join(dir, markerFile)); err != nil {
		return errors.Wrapf(err, "primitive: rename %s", tmp)
	}
	return nil
}
