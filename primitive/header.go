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
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/erigontech/graphd/errs"
)

// headerFile is the per-database identity file (spec §6): a fixed 11
// bytes, 5 reserved zero bytes followed by a 6-byte (48-bit) database id.
// The id is adopted once, on first open, and never rewritten afterward
// except by an explicit Adopt call (used by replica bootstrap).
const headerFile = "HEADER"
const headerSize = 11

// ReadDatabaseID loads the adopted database id, or 0 if the database has
// never been opened before (no HEADER file yet).
func ReadDatabaseID(fs afero.Fs, dir string) (uint64, error) {
	path := filepath.Join(dir, headerFile)
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "primitive: read %s", path)
	}
	if len(b) != headerSize {
		return 0, errors.Wrapf(errs.Corrupt, "HEADER is %d bytes, want %d", len(b), headerSize)
	}
	var id48 [8]byte
	copy(id48[2:], b[5:11])
	return binary.BigEndian.Uint64(id48[:]), nil
}

// AdoptDatabaseID writes a fresh, random database id if none exists yet,
// and returns the id now on disk (existing or freshly adopted). The write
// is atomic (write-temp, rename) so a crash mid-adoption never leaves a
// torn HEADER.
func AdoptDatabaseID(fs afero.Fs, dir string) (uint64, error) {
	existing, err := ReadDatabaseID(fs, dir)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return existing, nil
	}
	id := randomDatabaseID()
	if err := writeHeader(fs, dir, id); err != nil {
		return 0, err
	}
	return id, nil
}

func randomDatabaseID() uint64 {
	u := uuid.New()
	b := u[:]
	id := binary.BigEndian.Uint64(append([]byte{0, 0}, b[:6]...))
	return id & (1<<48 - 1)
}

func writeHeader(fs afero.Fs, dir string, id uint64) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "primitive: mkdir %s", dir)
	}
	var buf [headerSize]byte
	var id48 [8]byte
	binary.BigEndian.PutUint64(id48[:], id&(1<<48-1))
	copy(buf[5:11], id48[2:])
	tmp := filepath.Join(dir, headerFile+".tmp")
	if err := afero.WriteFile(fs, tmp, buf[:], 0o644); err != nil {
		return errors.Wrapf(err, "primitive: write %s", tmp)
	}
	return fs.Rename(tmp, filepath.Join(dir, headerFile))
}
