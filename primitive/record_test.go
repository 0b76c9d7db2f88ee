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
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// links is the linkage quadruple every Record carries; comparing it as one
// struct via deep.Equal gives a readable diff of exactly which link
// mismatched instead of four separate pass/fail lines.
type links struct {
	Type, Right, Left, Scope ID
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	attrs := Attrs{
		Timestamp: 123456789,
		Live:      true,
		ValueType: 7,
		Name:      []byte("alice"),
		Value:     []byte("bob"),
		TypeID:    3,
		RightID:   9001,
		LeftID:    NoID,
		ScopeID:   NoID,
	}
	enc, err := Encode(nil, attrs)
	require.NoError(t, err)

	rec, err := Decode(42, enc)
	require.NoError(t, err)
	require.Equal(t, ID(42), rec.ID)
	require.Equal(t, uint64(123456789), rec.Timestamp)
	require.True(t, rec.Flags.Has(FlagLive))
	require.Equal(t, []byte("alice"), rec.Name)
	require.Equal(t, []byte("bob"), rec.Value)
	require.Equal(t, ID(3), rec.TypeID)
	require.Equal(t, ID(9001), rec.RightID)
	require.Equal(t, NoID, rec.LeftID)
	require.Equal(t, NoID, rec.ScopeID)
	require.Equal(t, NoID, rec.LineageID)
}

func TestEncodeArchivalValueRoundTripsThroughSnappy(t *testing.T) {
	value := make([]byte, 4096)
	for i := range value {
		value[i] = byte(i % 7)
	}
	attrs := Attrs{Live: true, Archival: true, Value: value}
	enc, err := Encode(nil, attrs)
	require.NoError(t, err)

	rec, err := Decode(0, enc)
	require.NoError(t, err)
	require.Equal(t, value, rec.Value)
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	attrs := Attrs{Name: make([]byte, MaxNameLen+1)}
	_, err := Encode(nil, attrs)
	require.Error(t, err)
}

func TestEncodeAcceptsMaximalName(t *testing.T) {
	attrs := Attrs{Name: make([]byte, MaxNameLen)}
	enc, err := Encode(nil, attrs)
	require.NoError(t, err)
	rec, err := Decode(0, enc)
	require.NoError(t, err)
	require.Len(t, rec.Name, MaxNameLen)
}

func TestEncodeWithPreviousVersionRoundTrips(t *testing.T) {
	attrs := Attrs{
		Live:        true,
		HasPrevious: true,
		LineageID:   77,
		Generation:  4,
	}
	enc, err := Encode(nil, attrs)
	require.NoError(t, err)
	rec, err := Decode(1, enc)
	require.NoError(t, err)
	require.True(t, rec.Flags.Has(FlagHasPrevious))
	require.Equal(t, ID(77), rec.LineageID)
	require.Equal(t, uint64(4), rec.Generation)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode(0, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedLinkBytes(t *testing.T) {
	attrs := Attrs{Live: true, TypeID: 500}
	enc, err := Encode(nil, attrs)
	require.NoError(t, err)
	_, err = Decode(0, enc[:len(enc)-1])
	require.Error(t, err)
}

// TestEncodeDecodeRoundTripProperty exercises the round-trip law spec §8
// expects of the tiled layout: any attribute combination that Encode
// accepts must Decode back to equivalent fields.
func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := []byte(rapid.StringOfN(rapid.RuneFrom([]rune("abcxyz")), 0, 32, -1).Draw(rt, "name"))
		value := []byte(rapid.StringOfN(rapid.RuneFrom([]rune("01234567")), 0, 64, -1).Draw(rt, "value"))
		idDraw := rapid.Uint64Range(0, uint64(MaxID)-1)
		maybeID := func(label string) ID {
			if rapid.Bool().Draw(rt, label+"_present") {
				return ID(idDraw.Draw(rt, label))
			}
			return NoID
		}
		attrs := Attrs{
			Timestamp: rapid.Uint64Range(0, 1<<48-1).Draw(rt, "ts"),
			Live:      rapid.Bool().Draw(rt, "live"),
			ValueType: uint8(rapid.UintRange(0, 255).Draw(rt, "vt")),
			Name:      name,
			Value:     value,
			TypeID:    maybeID("type"),
			RightID:   maybeID("right"),
			LeftID:    maybeID("left"),
			ScopeID:   maybeID("scope"),
		}
		enc, err := Encode(nil, attrs)
		require.NoError(rt, err)
		rec, err := Decode(9, enc)
		require.NoError(rt, err)
		require.Equal(rt, attrs.Timestamp, rec.Timestamp)
		require.Equal(rt, attrs.Live, rec.Flags.Has(FlagLive))
		require.Equal(rt, attrs.ValueType, rec.ValueType)
		require.Equal(rt, attrs.Name, rec.Name)
		require.Equal(rt, attrs.Value, rec.Value)
		want := links{Type: attrs.TypeID, Right: attrs.RightID, Left: attrs.LeftID, Scope: attrs.ScopeID}
		got := links{Type: rec.TypeID, Right: rec.RightID, Left: rec.LeftID, Scope: rec.ScopeID}
		if diff := deep.Equal(want, got); diff != nil {
			rt.Fatalf("linkage mismatch: %v", diff)
		}
	})
}

func TestGUIDBytesRoundTrip(t *testing.T) {
	g := GUID{DB: 12345, Serial: 67890}
	got := GUIDFromBytes(g.Bytes())
	require.Equal(t, g, got)
}

func TestGUIDIsNil(t *testing.T) {
	require.True(t, NilGUID.IsNil())
	require.False(t, ForLocal(1, 2).IsNil())
}

func TestGUIDLocal(t *testing.T) {
	g := ForLocal(9, 100)
	require.True(t, g.Local(9))
	require.False(t, g.Local(10))
}
