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

package bm

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"

	"github.com/erigontech/graphd/errs"
	"github.com/erigontech/graphd/primitive"
)

// encodeBitmapFile frames each source's bitmap as: 8-byte source id,
// 4-byte length, then roaring's own portable serialization.
func encodeBitmapFile(bitmaps map[primitive.ID]*roaring.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	for source, bmp := range bitmaps {
		var hdr [12]byte
		binary.LittleEndian.PutUint64(hdr[0:8], uint64(source))
		body, err := bmp.ToBytes()
		if err != nil {
			return nil, errors.Wrapf(err, "bm: serialize source %s", source)
		}
		binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(body)))
		buf.Write(hdr[:])
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

func decodeBitmapFile(raw []byte) (map[primitive.ID]*roaring.Bitmap, error) {
	out := make(map[primitive.ID]*roaring.Bitmap)
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		var hdr [12]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, errors.Wrap(errs.Corrupt, "bm: truncated entry header")
		}
		source := primitive.ID(binary.LittleEndian.Uint64(hdr[0:8]))
		n := binary.LittleEndian.Uint32(hdr[8:12])
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Wrap(errs.Corrupt, "bm: truncated entry body")
		}
		bmp := roaring.New()
		if err := bmp.UnmarshalBinary(body); err != nil {
			return nil, errors.Wrapf(err, "bm: unmarshal source %s", source)
		}
		out[source] = bmp
	}
	return out, nil
}
