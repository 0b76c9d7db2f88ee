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

// Cursor text is a three-part textual freeze of an iterator: set /
// position / state (spec §4.6.6). Rather than a format-string dispatch
// table, each {token} in the grammar is its own parser combinator
// returning a bound Go type directly; Thaw composes them in sequence,
// the same grammar the original format strings named.
package iter

import (
	"strconv"
	"strings"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// cursor is the input stream a sequence of token parsers consumes from.
type cursor struct {
	rest string
}

func newCursorReader(s string) *cursor { return &cursor{rest: s} }

func (c *cursor) takeUntil(sep byte) (string, bool) {
	i := strings.IndexByte(c.rest, sep)
	if i < 0 {
		tok := c.rest
		c.rest = ""
		return tok, tok != ""
	}
	tok := c.rest[:i]
	c.rest = c.rest[i+1:]
	return tok, true
}

// Forward parses {forward}: a single 'f' or 'b' byte.
func (c *cursor) Forward() (Direction, error) {
	tok, _ := c.takeUntil('/')
	switch tok {
	case "f":
		return Forward, nil
	case "b":
		return Backward, nil
	default:
		return Forward, errs.Syntax
	}
}

// LowHigh parses {low[-high]}: "lo-hi" or a bare "lo" meaning unbounded
// high.
func (c *cursor) LowHigh() (lo, hi primitive.ID, err error) {
	tok, _ := c.takeUntil('/')
	parts := strings.SplitN(tok, "-", 2)
	loV, e := strconv.ParseUint(parts[0], 10, 64)
	if e != nil {
		return 0, 0, errs.Syntax
	}
	if len(parts) == 1 {
		return primitive.ID(loV), primitive.NoID, nil
	}
	hiV, e := strconv.ParseUint(parts[1], 10, 64)
	if e != nil {
		return 0, 0, errs.Syntax
	}
	return primitive.ID(loV), primitive.ID(hiV), nil
}

// ID parses {id}: a bare integer, or "eof".
func (c *cursor) ID() (primitive.ID, bool, error) {
	tok, _ := c.takeUntil('/')
	if tok == "eof" {
		return primitive.NoID, true, nil
	}
	v, e := strconv.ParseUint(tok, 10, 64)
	if e != nil {
		return 0, false, errs.Syntax
	}
	return primitive.ID(v), false, nil
}

// GUID parses {guid}: "db:serial".
func (c *cursor) GUID() (primitive.GUID, error) {
	tok, _ := c.takeUntil('/')
	parts := strings.SplitN(tok, ":", 2)
	if len(parts) != 2 {
		return primitive.NilGUID, errs.Syntax
	}
	db, e1 := strconv.ParseUint(parts[0], 10, 64)
	serial, e2 := strconv.ParseUint(parts[1], 10, 64)
	if e1 != nil || e2 != nil {
		return primitive.NilGUID, errs.Syntax
	}
	return primitive.GUID{DB: db, Serial: serial}, nil
}

// Budget parses {budget}: an integer cost figure carried through freeze
// purely for diagnostics (budgets themselves are never persisted as a
// resumption point, only as a hint).
func (c *cursor) Budget() (int64, error) {
	tok, _ := c.takeUntil('/')
	v, e := strconv.ParseInt(tok, 10, 64)
	if e != nil {
		return 0, errs.Syntax
	}
	return v, nil
}

// PositionState parses {(position/state)}: the remaining two
// slash-separated fields verbatim, left to the specific kind to interpret
// further.
func (c *cursor) PositionState() (position, state string, err error) {
	position, ok := c.takeUntil('/')
	if !ok {
		return "", "", errs.Syntax
	}
	state = c.rest
	c.rest = ""
	return position, state, nil
}

// Ordering parses {ordering}: "sorted" or "unsorted".
func (c *cursor) Ordering() (bool, error) {
	tok, _ := c.takeUntil('/')
	switch tok {
	case "sorted":
		return true, nil
	case "unsorted":
		return false, nil
	default:
		return false, errs.Syntax
	}
}

// Account parses {account}: an opaque identifier string (the database or
// subject account a cursor was issued under), left uninterpreted.
func (c *cursor) Account() (string, error) {
	tok, ok := c.takeUntil('/')
	if !ok {
		return "", errs.Syntax
	}
	return tok, nil
}

// Extensions parses {extensions}: zero or more "key=value" pairs
// separated by ';', reserved for forward-compatible additions kinds
// written against an older grammar version can ignore.
func (c *cursor) Extensions() (map[string]string, error) {
	tok, _ := c.takeUntil('/')
	out := map[string]string{}
	if tok == "" {
		return out, nil
	}
	for _, kv := range strings.Split(tok, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, errs.Syntax
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

// End asserts the cursor is fully consumed ({end}).
func (c *cursor) End() error {
	if c.rest != "" {
		return errs.Syntax
	}
	return nil
}

// Linkage parses {linkage}: one of "type"/"right"/"left"/"scope".
func (c *cursor) Linkage() (string, error) {
	tok, ok := c.takeUntil('/')
	if !ok {
		return "", errs.Syntax
	}
	switch tok {
	case "type", "right", "left", "scope":
		return tok, nil
	default:
		return "", errs.Syntax
	}
}
