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

// Package errs collects the core's error taxonomy (flow-control sentinels
// and hard failures). Call sites that add context wrap these with
// github.com/pkg/errors rather than defining new leaf error types, so
// errors.Is(err, errs.NotFound) keeps working through the wrap chain.
package errs

import "errors"

var (
	// NoMore: enumeration exhausted (next/find) or membership false (check).
	NoMore = errors.New("no more results")
	// Suspend: budget exhausted, caller must re-enter with more budget.
	Suspend = errors.New("suspended: budget exhausted")
	// Again: the iterator mutated into a different kind; refresh and retry.
	Again = errors.New("iterator shape changed, refresh and retry")
	// Exists: attempted to add a duplicate where uniqueness was required.
	Exists = errors.New("already exists")
	// NotFound: requested id/key absent.
	NotFound = errors.New("not found")
	// Syntax: cursor/serialization malformed.
	Syntax = errors.New("malformed cursor syntax")
	// Corrupt: on-disk invariant violated.
	Corrupt = errors.New("on-disk invariant violated")
	// RecordTooLarge: record exceeds one tile.
	RecordTooLarge = errors.New("record exceeds tile size")
	// ContinuityError: previous-version pointer is into the future.
	ContinuityError = errors.New("previous-version lineage is not older than new record")
	// IoBlocked: would block, try later.
	IoBlocked = errors.New("io would block")
	// Fatal: disk full, permission denied, or other unexpected syscall failure.
	Fatal = errors.New("fatal storage error")

	// IsBitmap: array_of(source) asked for a SIM handle but the source has
	// been promoted to a bitmap representation.
	IsBitmap = errors.New("source is stored as a bitmap, not a sorted array")
	// NoSuchSource: array_of/length called on a source with no entries at all.
	NoSuchSource = errors.New("no such source")
	// TooMany: intersect output buffer would overflow the caller's limit.
	TooMany = errors.New("too many matches")
	// WouldBlock: checkpoint(sync,block=false) could not complete without blocking.
	WouldBlock = errors.New("would block")
	// NeedsMore: checkpoint_optional did not finish before its deadline.
	NeedsMore = errors.New("needs more time")
	// DanglingLink: a linkage identifier does not resolve to an existing local id.
	DanglingLink = errors.New("dangling link identifier")
	// InternalInconsistency: commit-time re-verification of record bytes failed.
	InternalInconsistency = errors.New("internal inconsistency in record bytes")
)
