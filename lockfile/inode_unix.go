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

//go:build unix

package lockfile

import (
	"os"
	"syscall"

	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
)

func inodeOf(info os.FileInfo) (uint64, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return st.Ino, true
}

// remoteFilesystemMagic lists statfs(2) f_type values of network
// filesystems spec §6 asks us to refuse ("Refuse to operate on a
// remote-mounted file system").
var remoteFilesystemMagic = map[int64]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0x5346414f: "afs",
	0x65735546: "fuse-nfs", // fuseblk-backed NFS shims report this too
}

func refuseRemoteFS(dir string) error {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return errors.Wrapf(err, "lockfile: statfs %s", dir)
	}
	if name, ok := remoteFilesystemMagic[int64(st.Type)]; ok {
		return errors.Wrapf(errs.Fatal, "lockfile: %s is on a remote-mounted filesystem (%s)", dir, name)
	}
	return nil
}
