/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package segment implements the per-column on-disk representation of a
// contiguous row range: compressed column bytes addressed by digest,
// plus the min/max key tuple of the slice. Compression is an opaque
// byte→byte transform with a declared identity, so this file supplies a
// small codec registry rather than a single hardcoded format.
package segment

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/bertrandchenal/lakota/lkerr"
)

// Codec is an opaque byte→byte transform with a declared identity.
// A Segment's column descriptor
// records a codec's Name so a reader can resolve the right Codec without
// the object store needing to know about compression at all.
type Codec interface {
	Name() string
	Encode(p []byte) ([]byte, error)
	Decode(p []byte) ([]byte, error)
}

var registry = map[string]Codec{}

func register(c Codec) { registry[c.Name()] = c }

func init() {
	register(identityCodec{})
	register(lz4Codec{})
	register(xzCodec{})
}

// CodecByName resolves a codec by its declared identity.
func CodecByName(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, lkerr.IntegrityError.New("unknown codec %q", name)
	}
	return c, nil
}

// identityCodec is the no-op codec: a deployment with no compression
// configured still has something to declare.
type identityCodec struct{}

func (identityCodec) Name() string               { return "identity" }
func (identityCodec) Encode(p []byte) ([]byte, error) { return p, nil }
func (identityCodec) Decode(p []byte) ([]byte, error) { return p, nil }

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	if err := w.Close(); err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decode(p []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(p))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return out, nil
}

type xzCodec struct{}

func (xzCodec) Name() string { return "xz" }

func (xzCodec) Encode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	if _, err := w.Write(p); err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	if err := w.Close(); err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (xzCodec) Decode(p []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return out, nil
}
