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

// Package schema declares column names, dtypes, and which columns form
// the primary key, and the in-memory Frame that holds a column-aligned
// chunk of rows.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/bertrandchenal/lakota/lkerr"
)

// DType is the scalar type of a column.
type DType uint8

const (
	Int32 DType = iota
	Int64
	Float32
	Float64
	String
	// Timestamp is stored as a millisecond-resolution epoch int64.
	Timestamp
)

func (d DType) String() string {
	switch d {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

func (d DType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "int32":
		*d = Int32
	case "int64":
		*d = Int64
	case "float32":
		*d = Float32
	case "float64":
		*d = Float64
	case "string":
		*d = String
	case "timestamp":
		*d = Timestamp
	default:
		return lkerr.SchemaError.New("unknown dtype %q", s)
	}
	return nil
}

// Column is one declared column of a Schema.
type Column struct {
	Name   string `json:"name"`
	Type   DType  `json:"type"`
	IsKey  bool   `json:"is_key"`
}

// Schema is the ordered list of columns shared by every segment and
// revision of one series. At least one key column is required.
type Schema struct {
	Columns []Column `json:"columns"`
}

// New validates and constructs a Schema. At least one key column is
// required and column names must be unique. Key columns need not be
// contiguous or first; their declaration order alone defines the
// lexicographic primary key.
func New(columns []Column) (*Schema, error) {
	if len(columns) == 0 {
		return nil, lkerr.SchemaError.New("schema must declare at least one column")
	}
	seen := make(map[string]struct{}, len(columns))
	hasKey := false
	for _, c := range columns {
		if c.Name == "" {
			return nil, lkerr.SchemaError.New("column name must not be empty")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, lkerr.SchemaError.New("duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.IsKey {
			hasKey = true
		}
	}
	if !hasKey {
		return nil, lkerr.SchemaError.New("schema requires at least one key column")
	}
	cp := make([]Column, len(columns))
	copy(cp, columns)
	return &Schema{Columns: cp}, nil
}

// KeyColumns returns the names of the key columns, in declaration order.
func (s *Schema) KeyColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.IsKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns every declared column name, in declaration order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}
