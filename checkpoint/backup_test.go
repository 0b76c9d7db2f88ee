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
	"bytes"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestWriteBackupReadBackupRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	payload := bytes.Repeat([]byte("graphd checkpoint backup payload "), 1024)

	require.NoError(t, WriteBackup(fs, "/backup.zst", bytes.NewReader(payload)))

	rc, err := ReadBackup(fs, "/backup.zst")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteBackupCompressesData(t *testing.T) {
	fs := afero.NewMemMapFs()
	payload := bytes.Repeat([]byte("a"), 1<<20)

	require.NoError(t, WriteBackup(fs, "/backup.zst", bytes.NewReader(payload)))

	info, err := fs.Stat("/backup.zst")
	require.NoError(t, err)
	require.Less(t, info.Size(), int64(len(payload)))
}

func TestReadBackupMissingFileFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := ReadBackup(fs, "/nope.zst")
	require.Error(t, err)
}

func TestWriteBackupEmptyReaderProducesValidFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteBackup(fs, "/empty.zst", bytes.NewReader(nil)))

	rc, err := ReadBackup(fs, "/empty.zst")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Empty(t, got)
}
