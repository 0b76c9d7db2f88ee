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

// Package lockfile implements the `<dir>/LOCK` protocol of spec §6: a
// pid/inode/hostname triple, written atomically via a write-temp,
// rename, verify sequence, validated against the current host and the
// target process's liveness.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
)

const fileName = "LOCK"

// Lock represents an acquired `<dir>/LOCK`. Release drops both the
// textual claim and the OS-level advisory lock.
type Lock struct {
	path string
	os   *flock.Flock
}

// Acquire claims dir's LOCK file for the current process, or returns
// errs.Exists if a live lock already belongs to someone else.
//
// The textual record (pid, this-lockfile's-inode, hostname) guards
// against stale locks left by a crashed process on this host, or by any
// process on another host reachable over a network filesystem. The
// gofrs/flock syscall-level lock on the same path additionally guards
// against a second process on the *same* host racing the textual
// check-then-write.
func Acquire(dir string) (*Lock, error) {
	if err := refuseRemoteFS(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fileName)

	osLock := flock.New(path)
	got, err := osLock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lockfile: flock %s", path)
	}
	if !got {
		return nil, errors.Wrapf(errs.Exists, "lockfile: %s held by another process on this host", path)
	}

	if valid, err := readAndValidate(path); err != nil {
		osLock.Unlock()
		return nil, err
	} else if valid {
		osLock.Unlock()
		return nil, errors.Wrapf(errs.Exists, "lockfile: %s held by a live process", path)
	}

	if err := writeClaim(path); err != nil {
		osLock.Unlock()
		return nil, err
	}
	return &Lock{path: path, os: osLock}, nil
}

// Release removes the lockfile and drops the OS-level lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "lockfile: remove %s", l.path)
	}
	return l.os.Unlock()
}

type claim struct {
	pid      int
	inode    uint64
	hostname string
}

func (c claim) String() string {
	return fmt.Sprintf("%d %d %s\n", c.pid, c.inode, c.hostname)
}

func parseClaim(raw string) (claim, error) {
	fields := strings.Fields(raw)
	if len(fields) != 3 {
		return claim{}, errors.Wrapf(errs.Corrupt, "lockfile: malformed claim %q", raw)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return claim{}, errors.Wrapf(errs.Corrupt, "lockfile: bad pid in %q", raw)
	}
	inode, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return claim{}, errors.Wrapf(errs.Corrupt, "lockfile: bad inode in %q", raw)
	}
	return claim{pid: pid, inode: inode, hostname: fields[2]}, nil
}

// readAndValidate reports whether path already holds a claim that is
// still valid (per the three conditions of spec §6). A missing file, or
// one holding an invalid claim, is reported as not valid so the caller
// may overwrite it.
func readAndValidate(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "lockfile: read %s", path)
	}
	c, err := parseClaim(string(raw))
	if err != nil {
		// A corrupt claim cannot be proven live; treat it as stale.
		return false, nil
	}
	return isValid(path, c)
}

// isValid implements the three conditions of spec §6: hostname match,
// inode match, and pid liveness — unless the claim belongs to a
// different host entirely, in which case it is always treated as
// valid (we have no way to check liveness across hosts).
func isValid(path string, c claim) (bool, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return false, errors.Wrap(err, "lockfile: hostname")
	}
	if c.hostname != hostname {
		return true, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "lockfile: stat %s", path)
	}
	actualInode, ok := inodeOf(info)
	if !ok || actualInode != c.inode {
		return false, nil
	}
	return processAlive(c.pid), nil
}

// processAlive mirrors kill(pid, 0): the process exists iff sending
// signal 0 succeeds, or fails with anything other than ESRCH.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !strings.Contains(err.Error(), "process already finished")
}

// writeClaim performs the write-temp, rename, verify sequence of spec §6,
// once; it does not retry.
func writeClaim(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "lockfile: create temp in %s", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hostname, err := os.Hostname()
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, "lockfile: hostname")
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return errors.Wrapf(err, "lockfile: stat temp %s", tmpPath)
	}
	inode, ok := inodeOf(info)
	if !ok {
		tmp.Close()
		return errors.Wrapf(errs.Fatal, "lockfile: platform exposes no inode number for %s", tmpPath)
	}
	c := claim{pid: os.Getpid(), inode: inode, hostname: hostname}
	if _, err := tmp.WriteString(c.String()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "lockfile: write temp %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "lockfile: sync temp %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "lockfile: close temp %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "lockfile: rename %s -> %s", tmpPath, path)
	}

	// Verify: re-read and re-stat the final path. If its inode differs
	// from the one recorded in the claim (as on a filesystem that assigns
	// a fresh inode on rename), or the claim's pid is not ours, fail with
	// errs.ContinuityError.
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "lockfile: verify read %s", path)
	}
	verified, err := parseClaim(string(raw))
	if err != nil {
		return errors.Wrapf(errs.Corrupt, "lockfile: verify parse %s", path)
	}
	finalInfo, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "lockfile: verify stat %s", path)
	}
	finalInode, ok := inodeOf(finalInfo)
	if !ok || finalInode != verified.inode || verified.pid != c.pid {
		return errors.Wrapf(errs.ContinuityError, "lockfile: verify mismatch on %s", path)
	}
	return nil
}
