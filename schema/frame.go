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

package schema

import "github.com/bertrandchenal/lakota/lkerr"

// Frame is an in-memory, column-aligned chunk of rows: a mapping from
// column name to a dense ordered array, all of equal length, with the
// key columns required to be non-decreasing.
type Frame struct {
	Schema  *Schema
	Columns map[string][]Value
}

// NewFrame validates columns against schema and returns a Frame. Every
// schema column must be present with equal length, and the key columns
// must be non-decreasing with no null entries.
func NewFrame(s *Schema, columns map[string][]Value) (*Frame, error) {
	var length = -1
	for _, c := range s.Columns {
		vals, ok := columns[c.Name]
		if !ok {
			return nil, lkerr.SchemaError.New("missing column %q", c.Name)
		}
		if length == -1 {
			length = len(vals)
		} else if len(vals) != length {
			return nil, lkerr.SchemaError.New("column %q has %d rows, want %d", c.Name, len(vals), length)
		}
		for i, v := range vals {
			if v == nil {
				if c.IsKey {
					return nil, lkerr.SchemaError.New("key column %q has a null value at row %d", c.Name, i)
				}
				continue
			}
			if !Matches(c.Type, v) {
				return nil, lkerr.SchemaError.New("column %q row %d: value does not match dtype %v", c.Name, i, c.Type)
			}
			if c.IsKey && IsNaN(c.Type, v) {
				return nil, lkerr.SchemaError.New("key column %q has a NaN value at row %d", c.Name, i)
			}
		}
	}
	f := &Frame{Schema: s, Columns: columns}
	if err := f.checkKeyMonotone(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Frame) checkKeyMonotone() error {
	n := f.Len()
	for i := 1; i < n; i++ {
		cmp, err := f.CompareKeys(i-1, i)
		if err != nil {
			return err
		}
		if cmp > 0 {
			return lkerr.SchemaError.New("key column is not non-decreasing at row %d", i)
		}
	}
	return nil
}

// Len returns the row count of the frame.
func (f *Frame) Len() int {
	for _, c := range f.Schema.Columns {
		return len(f.Columns[c.Name])
	}
	return 0
}

// CompareKeys lexicographically compares the key tuple at row i against
// the key tuple at row j.
func (f *Frame) CompareKeys(i, j int) (int, error) {
	for _, name := range f.Schema.KeyColumns() {
		col, _ := f.Schema.Column(name)
		cmp, err := Compare(col.Type, f.Columns[name][i], f.Columns[name][j])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	return 0, nil
}

// Key extracts the key tuple at row i.
func (f *Frame) Key(i int) []Value {
	names := f.Schema.KeyColumns()
	out := make([]Value, len(names))
	for idx, name := range names {
		out[idx] = f.Columns[name][i]
	}
	return out
}

// CompareKeyTuples lexicographically compares two key tuples using s's
// key column dtypes, in key-column order.
func CompareKeyTuples(s *Schema, a, b []Value) (int, error) {
	for idx, name := range s.KeyColumns() {
		col, _ := s.Column(name)
		cmp, err := Compare(col.Type, a[idx], b[idx])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	return 0, nil
}

// Slice returns a new Frame holding rows [lo, hi).
func (f *Frame) Slice(lo, hi int) *Frame {
	cols := make(map[string][]Value, len(f.Columns))
	for name, vals := range f.Columns {
		cp := make([]Value, hi-lo)
		copy(cp, vals[lo:hi])
		cols[name] = cp
	}
	return &Frame{Schema: f.Schema, Columns: cols}
}

// Concat joins the rows of frames in the order given, assuming all share
// schema s. Used to stitch segments together at read time.
func Concat(s *Schema, frames ...*Frame) *Frame {
	cols := make(map[string][]Value, len(s.Columns))
	for _, c := range s.Columns {
		var vals []Value
		for _, f := range frames {
			vals = append(vals, f.Columns[c.Name]...)
		}
		cols[c.Name] = vals
	}
	return &Frame{Schema: s, Columns: cols}
}
