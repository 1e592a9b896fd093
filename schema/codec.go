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
	"encoding/json"

	"github.com/bertrandchenal/lakota/lkerr"
)

// taggedValue is the wire form of a Value. Plain encoding/json would decode
// every JSON number back as float64, silently turning an int64 key into a
// float64 one; tagging by Go's own dynamic type keeps round trips exact.
type taggedValue struct {
	Kind string  `json:"k"`
	I    int64   `json:"i,omitempty"`
	F    float64 `json:"f,omitempty"`
	S    string  `json:"s,omitempty"`
}

func encodeValue(v Value) taggedValue {
	switch x := v.(type) {
	case nil:
		return taggedValue{Kind: "null"}
	case int32:
		return taggedValue{Kind: "i32", I: int64(x)}
	case int64:
		return taggedValue{Kind: "i64", I: x}
	case float32:
		return taggedValue{Kind: "f32", F: float64(x)}
	case float64:
		return taggedValue{Kind: "f64", F: x}
	case string:
		return taggedValue{Kind: "str", S: x}
	default:
		return taggedValue{Kind: "null"}
	}
}

func decodeValue(t taggedValue) (Value, error) {
	switch t.Kind {
	case "null":
		return nil, nil
	case "i32":
		return int32(t.I), nil
	case "i64":
		return t.I, nil
	case "f32":
		return float32(t.F), nil
	case "f64":
		return t.F, nil
	case "str":
		return t.S, nil
	default:
		return nil, lkerr.IntegrityError.New("unknown encoded value kind %q", t.Kind)
	}
}

// MarshalValues serializes a key tuple (or any slice of Value) preserving
// each element's concrete Go type across the round trip.
func MarshalValues(vals []Value) ([]byte, error) {
	tagged := make([]taggedValue, len(vals))
	for i, v := range vals {
		tagged[i] = encodeValue(v)
	}
	data, err := json.Marshal(tagged)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return data, nil
}

// UnmarshalValues is the inverse of MarshalValues.
func UnmarshalValues(data []byte) ([]Value, error) {
	var tagged []taggedValue
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, lkerr.IntegrityError.New("malformed value tuple: %v", err)
	}
	out := make([]Value, len(tagged))
	for i, t := range tagged {
		v, err := decodeValue(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
