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

package checkpoint

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// WriteBackup compresses src into a zstd-framed backup file at path,
// staged during StageFinishBackup so StageSyncBackup only needs an
// fsync, not a second pass over the data.
func WriteBackup(fs afero.Fs, path string, src io.Reader) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "checkpoint: create backup %s", path)
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return errors.Wrap(err, "checkpoint: new zstd writer")
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		return errors.Wrapf(err, "checkpoint: compress backup %s", path)
	}
	return enc.Close()
}

// ReadBackup reverses WriteBackup, used by recovery paths that restore a
// staged backup after an interrupted checkpoint.
func ReadBackup(fs afero.Fs, path string) (io.ReadCloser, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: open backup %s", path)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "checkpoint: new zstd reader")
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   afero.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
