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

package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/schema"
)

// ColumnRef locates one column's compressed bytes in the object store and
// names the codec needed to decompress them.
type ColumnRef struct {
	Digest digest.Digest `json:"digest"`
	Codec  string        `json:"codec"`
}

// Descriptor is a Segment: a contiguous, inclusive row range of one series,
// one ColumnRef per schema column, plus its row count.
type Descriptor struct {
	Columns map[string]ColumnRef `json:"columns"`
	Start   []schema.Value       `json:"start"`
	Stop    []schema.Value       `json:"stop"`
	Count   int                  `json:"count"`
}

// wireDescriptor is Descriptor's JSON form. Start/Stop are key tuples whose
// elements' concrete Go type must survive the round trip (an int64 key
// must not come back as a float64), so they go through
// schema.MarshalValues rather than plain encoding/json.
type wireDescriptor struct {
	Columns map[string]ColumnRef `json:"columns"`
	Start   json.RawMessage      `json:"start"`
	Stop    json.RawMessage      `json:"stop"`
	Count   int                  `json:"count"`
}

// PutDescriptor serializes desc and stores it in store, returning the
// digest other objects (changelog revision payloads) reference it by.
func PutDescriptor(ctx context.Context, store *objectstore.Store, desc *Descriptor) (digest.Digest, error) {
	start, err := schema.MarshalValues(desc.Start)
	if err != nil {
		return digest.Zero, err
	}
	stop, err := schema.MarshalValues(desc.Stop)
	if err != nil {
		return digest.Zero, err
	}
	data, err := json.Marshal(wireDescriptor{Columns: desc.Columns, Start: start, Stop: stop, Count: desc.Count})
	if err != nil {
		return digest.Zero, lkerr.IntegrityError.Wrap(err)
	}
	return store.Put(ctx, data)
}

// GetDescriptor resolves d to the Descriptor it was stored under.
func GetDescriptor(ctx context.Context, store *objectstore.Store, d digest.Digest) (*Descriptor, error) {
	data, err := store.Get(ctx, d)
	if err != nil {
		return nil, err
	}
	var wire wireDescriptor
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, lkerr.IntegrityError.New("malformed segment descriptor: %v", err)
	}
	start, err := schema.UnmarshalValues(wire.Start)
	if err != nil {
		return nil, err
	}
	stop, err := schema.UnmarshalValues(wire.Stop)
	if err != nil {
		return nil, err
	}
	return &Descriptor{Columns: wire.Columns, Start: start, Stop: stop, Count: wire.Count}, nil
}

// SliceFrame splits f into consecutive Frames of at most maxRows rows
// each, the bound applied before writing segments.
func SliceFrame(f *schema.Frame, maxRows int) []*schema.Frame {
	n := f.Len()
	if n == 0 {
		return nil
	}
	out := make([]*schema.Frame, 0, (n+maxRows-1)/maxRows)
	for lo := 0; lo < n; lo += maxRows {
		hi := lo + maxRows
		if hi > n {
			hi = n
		}
		out = append(out, f.Slice(lo, hi))
	}
	return out
}

// Write compresses and stores every column of f under codecName and returns
// the resulting Descriptor. f must already satisfy schema.NewFrame's
// invariants (non-decreasing, non-null key columns).
func Write(ctx context.Context, store *objectstore.Store, s *schema.Schema, f *schema.Frame, codecName string) (*Descriptor, error) {
	codec, err := CodecByName(codecName)
	if err != nil {
		return nil, err
	}
	n := f.Len()
	if n == 0 {
		return nil, lkerr.SchemaError.New("cannot write an empty segment")
	}
	cols := make(map[string]ColumnRef, len(s.Columns))
	for _, c := range s.Columns {
		raw, err := encodeValues(c.Type, f.Columns[c.Name])
		if err != nil {
			return nil, err
		}
		compressed, err := codec.Encode(raw)
		if err != nil {
			return nil, lkerr.IntegrityError.Wrap(err)
		}
		d, err := store.Put(ctx, compressed)
		if err != nil {
			return nil, err
		}
		cols[c.Name] = ColumnRef{Digest: d, Codec: codecName}
	}
	return &Descriptor{
		Columns: cols,
		Start:   f.Key(0),
		Stop:    f.Key(n - 1),
		Count:   n,
	}, nil
}

// Read reconstructs the Frame described by desc.
func Read(ctx context.Context, store *objectstore.Store, s *schema.Schema, desc *Descriptor) (*schema.Frame, error) {
	cols := make(map[string][]schema.Value, len(s.Columns))
	for _, c := range s.Columns {
		ref, ok := desc.Columns[c.Name]
		if !ok {
			return nil, lkerr.IntegrityError.New("segment descriptor missing column %q", c.Name)
		}
		codec, err := CodecByName(ref.Codec)
		if err != nil {
			return nil, err
		}
		compressed, err := store.Get(ctx, ref.Digest)
		if err != nil {
			return nil, err
		}
		raw, err := codec.Decode(compressed)
		if err != nil {
			return nil, lkerr.IntegrityError.Wrap(err)
		}
		vals, err := decodeValues(c.Type, raw, desc.Count)
		if err != nil {
			return nil, err
		}
		cols[c.Name] = vals
	}
	return &schema.Frame{Schema: s, Columns: cols}, nil
}

// presence bytes mark null cells so non-key columns can carry them through
// the compressed representation; key columns never encode a null (schema's
// own validation already forbids it).
const (
	present byte = 1
	absent  byte = 0
)

func encodeValues(dtype schema.DType, vals []schema.Value) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range vals {
		if v == nil {
			buf.WriteByte(absent)
			continue
		}
		buf.WriteByte(present)
		switch dtype {
		case schema.Int32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v.(int32)))
			buf.Write(b[:])
		case schema.Int64, schema.Timestamp:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.(int64)))
			buf.Write(b[:])
		case schema.Float32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(v.(float32)))
			buf.Write(b[:])
		case schema.Float64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.(float64)))
			buf.Write(b[:])
		case schema.String:
			s := v.(string)
			var lb [4]byte
			binary.LittleEndian.PutUint32(lb[:], uint32(len(s)))
			buf.Write(lb[:])
			buf.WriteString(s)
		default:
			return nil, lkerr.SchemaError.New("unknown dtype %v", dtype)
		}
	}
	return buf.Bytes(), nil
}

func decodeValues(dtype schema.DType, data []byte, count int) ([]schema.Value, error) {
	out := make([]schema.Value, count)
	r := bytes.NewReader(data)
	for i := 0; i < count; i++ {
		flag, err := r.ReadByte()
		if err != nil {
			return nil, lkerr.IntegrityError.New("truncated column data at row %d", i)
		}
		if flag == absent {
			out[i] = nil
			continue
		}
		switch dtype {
		case schema.Int32:
			var b [4]byte
			if _, err := r.Read(b[:]); err != nil {
				return nil, lkerr.IntegrityError.New("truncated int32 at row %d", i)
			}
			out[i] = int32(binary.LittleEndian.Uint32(b[:]))
		case schema.Int64, schema.Timestamp:
			var b [8]byte
			if _, err := r.Read(b[:]); err != nil {
				return nil, lkerr.IntegrityError.New("truncated int64 at row %d", i)
			}
			out[i] = int64(binary.LittleEndian.Uint64(b[:]))
		case schema.Float32:
			var b [4]byte
			if _, err := r.Read(b[:]); err != nil {
				return nil, lkerr.IntegrityError.New("truncated float32 at row %d", i)
			}
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[:]))
		case schema.Float64:
			var b [8]byte
			if _, err := r.Read(b[:]); err != nil {
				return nil, lkerr.IntegrityError.New("truncated float64 at row %d", i)
			}
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[:]))
		case schema.String:
			var lb [4]byte
			if _, err := r.Read(lb[:]); err != nil {
				return nil, lkerr.IntegrityError.New("truncated string length at row %d", i)
			}
			n := binary.LittleEndian.Uint32(lb[:])
			sb := make([]byte, n)
			if _, err := r.Read(sb); err != nil {
				return nil, lkerr.IntegrityError.New("truncated string at row %d", i)
			}
			out[i] = string(sb)
		default:
			return nil, lkerr.SchemaError.New("unknown dtype %v", dtype)
		}
	}
	return out, nil
}
