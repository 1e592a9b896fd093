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

// Package repo is the top-level entry point: opening a repository from
// one or more pod URIs, creating and listing collections, and the
// reserved registry changelog that tracks them — the repo's own state is
// versioned by the same mechanism the collections use.
package repo

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/collection"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/pod"
	"github.com/bertrandchenal/lakota/schema"
)

// Repo is an opened store: one pod chain, one object store, and the
// reserved registry changelog that tracks which collections exist and
// under which schema.
type Repo struct {
	pod      pod.Pod
	store    *objectstore.Store
	registry *changelog.Changelog
	log      *zap.Logger
}

// Option configures a Repo at open time.
type Option func(*Repo)

func WithLogger(log *zap.Logger) Option { return func(r *Repo) { r.log = log } }

// Open resolves uris into a pod chain (per repo.openChain: a single URI, or
// an ordered [cache,...,authoritative] list composed through cachedpod) and
// returns a Repo over it.
func Open(uris []string, opts ...Option) (*Repo, error) {
	r := &Repo{}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	p, err := openChain(uris, r.log)
	if err != nil {
		return nil, err
	}
	r.pod = p
	r.store = objectstore.New(p, "objects", r.log)
	r.registry = changelog.New(p, r.store, registryPrefix, r.log)
	return r, nil
}

// CreateCollection declares a new collection named name with schema s,
// commits it into the registry, and returns a handle over its own
// dedicated changelog. Declaring a collection is a normal registry write.
func (r *Repo) CreateCollection(ctx context.Context, name string, s *schema.Schema) (*collection.Collection, error) {
	if name == "" {
		return nil, lkerr.SchemaError.New("repo: collection name must not be empty")
	}
	existing, err := r.registryMap(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[name]; ok {
		return nil, lkerr.SchemaError.New("repo: collection %q already exists", name)
	}

	schemaBytes, err := json.Marshal(s)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	schemaDigest, err := r.store.Put(ctx, schemaBytes)
	if err != nil {
		return nil, err
	}

	parent, hasParent, err := r.registry.PickHead(ctx)
	if err != nil {
		return nil, err
	}
	var parentRev *changelog.Revision
	if hasParent {
		parentRev = &parent
	}
	payloadBytes, err := marshalRegistryPayload(registryPayload{
		Entries: []registryEntry{{Name: name, SchemaDigest: schemaDigest}},
	})
	if err != nil {
		return nil, err
	}
	if _, err := r.registry.Commit(ctx, parentRev, payloadBytes, ""); err != nil {
		return nil, err
	}

	r.log.Info("repo: create_collection", zap.String("name", name), zap.String("schema", schemaDigest.String()))
	return r.openCollection(name, s), nil
}

// Collection reopens a previously created collection by name.
func (r *Repo) Collection(ctx context.Context, name string) (*collection.Collection, error) {
	existing, err := r.registryMap(ctx)
	if err != nil {
		return nil, err
	}
	schemaDigest, ok := existing[name]
	if !ok {
		return nil, lkerr.NotFound.New("repo: collection %q", name)
	}
	schemaBytes, err := r.store.Get(ctx, schemaDigest)
	if err != nil {
		return nil, err
	}
	var raw schema.Schema
	if err := json.Unmarshal(schemaBytes, &raw); err != nil {
		return nil, lkerr.IntegrityError.New("repo: malformed schema for collection %q: %v", name, err)
	}
	s, err := schema.New(raw.Columns)
	if err != nil {
		return nil, lkerr.IntegrityError.New("repo: invalid stored schema for collection %q: %v", name, err)
	}
	return r.openCollection(name, s), nil
}

// Ls lists the names of every collection the registry currently knows
// about, in sorted order.
func (r *Repo) Ls(ctx context.Context) ([]string, error) {
	existing, err := r.registryMap(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Store exposes the repo's backing object store, used by the sync package
// to copy objects between repos.
func (r *Repo) Store() *objectstore.Store { return r.store }

// Pod exposes the repo's backing pod chain.
func (r *Repo) Pod() pod.Pod { return r.pod }

// Registry exposes the repo's reserved registry changelog, used by the
// sync package to replicate collection declarations between repos.
func (r *Repo) Registry() *changelog.Changelog { return r.registry }

func (r *Repo) openCollection(name string, s *schema.Schema) *collection.Collection {
	cl := changelog.New(r.pod, r.store, collectionPrefix(name), r.log)
	return collection.New(name, s, r.store, cl, collection.WithLogger(r.log))
}

func collectionPrefix(name string) string {
	return "collections/" + name
}
