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

package repo

import (
	"context"
	"encoding/json"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
)

// registryPrefix is the reserved changelog prefix the repo's own
// collection-name → schema-digest map lives under.
const registryPrefix = "_registry"

// registryEntry is one CreateCollection's contribution to the registry's
// payload: the collection-name → schema-digest map, expressed
// incrementally the same way series.Entry expresses one write.
type registryEntry struct {
	Name         string        `json:"name"`
	SchemaDigest digest.Digest `json:"schema_digest"`
}

type registryPayload struct {
	Entries []registryEntry `json:"entries"`
}

func marshalRegistryPayload(p registryPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return data, nil
}

func unmarshalRegistryPayload(data []byte) (registryPayload, error) {
	var p registryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return registryPayload{}, lkerr.IntegrityError.New("malformed registry payload: %v", err)
	}
	return p, nil
}

// RegistryDependencies is the sync package's DependencyFunc for a repo's
// registry changelog: a registry payload references the schema blob each
// entry's SchemaDigest points to, which must be copied before the payload
// itself.
func RegistryDependencies(payload []byte) ([]digest.Digest, error) {
	p, err := unmarshalRegistryPayload(payload)
	if err != nil {
		return nil, err
	}
	out := make([]digest.Digest, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.SchemaDigest)
	}
	return out, nil
}

// registryMap resolves the repo's current collection-name → schema-digest
// map by walking the registry changelog from its root to its current
// head, applying entries in revision order so a later create_collection
// call for the same name would win (ls() and open() never observe this in
// practice since names are meant to be unique, but replaying in order
// keeps the same last-write-wins rule the rest of the system follows).
func (r *Repo) registryMap(ctx context.Context) (map[string]digest.Digest, error) {
	head, ok, err := r.registry.PickHead(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]digest.Digest{}
	if !ok {
		return out, nil
	}
	revs, err := r.registry.Ancestors(ctx, head.ChildDigest())
	if err != nil {
		return nil, err
	}
	for _, rev := range revs {
		payloadBytes, err := r.store.Get(ctx, rev.PayloadDigest)
		if err != nil {
			return nil, err
		}
		payload, err := unmarshalRegistryPayload(payloadBytes)
		if err != nil {
			return nil, err
		}
		for _, e := range payload.Entries {
			out[e.Name] = e.SchemaDigest
		}
	}
	return out, nil
}
