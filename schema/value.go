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

import (
	"fmt"
	"math"
)

// Value is a single scalar cell. It holds one of int32, int64, float32,
// float64, string, or int64 (for Timestamp, millisecond epoch) depending
// on the declared DType of its column.
type Value interface{}

// Matches reports whether v is a legal representation of dtype.
func Matches(dtype DType, v Value) bool {
	switch dtype {
	case Int32:
		_, ok := v.(int32)
		return ok
	case Int64, Timestamp:
		_, ok := v.(int64)
		return ok
	case Float32:
		_, ok := v.(float32)
		return ok
	case Float64:
		_, ok := v.(float64)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	default:
		return false
	}
}

// Compare orders two values of the same dtype using that dtype's natural
// order. Returns -1, 0, or 1. NaN has no place in that order, so
// comparing one is an error rather than a silent equality.
func Compare(dtype DType, a, b Value) (int, error) {
	switch dtype {
	case Int32:
		return cmpInt32(a.(int32), b.(int32)), nil
	case Int64, Timestamp:
		return cmpInt64(a.(int64), b.(int64)), nil
	case Float32:
		return cmpFloat32(a.(float32), b.(float32))
	case Float64:
		return cmpFloat64(a.(float64), b.(float64))
	case String:
		return cmpString(a.(string), b.(string)), nil
	default:
		return 0, fmt.Errorf("schema: unknown dtype %v", dtype)
	}
}

// IsNaN reports whether v is a floating-point NaN under dtype.
func IsNaN(dtype DType, v Value) bool {
	switch dtype {
	case Float32:
		f, ok := v.(float32)
		return ok && math.IsNaN(float64(f))
	case Float64:
		f, ok := v.(float64)
		return ok && math.IsNaN(f)
	default:
		return false
	}
}

func cmpInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat32(a, b float32) (int, error) {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return 0, fmt.Errorf("schema: NaN is not orderable")
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

func cmpFloat64(a, b float64) (int, error) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, fmt.Errorf("schema: NaN is not orderable")
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
