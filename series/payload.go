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

package series

import (
	"encoding/json"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/schema"
)

// Entry is one series' contribution to a revision's payload: the interval
// it claims plus the segment digests that cover it.
type Entry struct {
	Series   string          `json:"series"`
	Start    []schema.Value  `json:"start"`
	Stop     []schema.Value  `json:"stop"`
	Segments []digest.Digest `json:"segments"`
}

// Payload is the full body a revision's payload digest resolves to. A
// single series.Write produces one entry; collection.Merge copies every
// entry of the merged heads' deltas, so one series may appear several times.
type Payload struct {
	Entries []Entry `json:"entries"`
}

type wireEntry struct {
	Series   string          `json:"series"`
	Start    json.RawMessage `json:"start"`
	Stop     json.RawMessage `json:"stop"`
	Segments []digest.Digest `json:"segments"`
}

// MarshalPayload serializes p for storage in the object store.
func MarshalPayload(p Payload) ([]byte, error) {
	wire := make([]wireEntry, len(p.Entries))
	for i, e := range p.Entries {
		start, err := schema.MarshalValues(e.Start)
		if err != nil {
			return nil, err
		}
		stop, err := schema.MarshalValues(e.Stop)
		if err != nil {
			return nil, err
		}
		wire[i] = wireEntry{Series: e.Series, Start: start, Stop: stop, Segments: e.Segments}
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return data, nil
}

// UnmarshalPayload is the inverse of MarshalPayload.
func UnmarshalPayload(data []byte) (Payload, error) {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return Payload{}, lkerr.IntegrityError.New("malformed revision payload: %v", err)
	}
	entries := make([]Entry, len(wire))
	for i, w := range wire {
		start, err := schema.UnmarshalValues(w.Start)
		if err != nil {
			return Payload{}, err
		}
		stop, err := schema.UnmarshalValues(w.Stop)
		if err != nil {
			return Payload{}, err
		}
		entries[i] = Entry{Series: w.Series, Start: start, Stop: stop, Segments: w.Segments}
	}
	return Payload{Entries: entries}, nil
}
