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

// Package collection is a namespace of series sharing one schema and
// one changelog, plus the merge that converges forked heads back to a
// single effective tip.
package collection

import (
	"context"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/schema"
	"github.com/bertrandchenal/lakota/series"
)

// Collection is a namespace of same-schema series sharing a changelog.
type Collection struct {
	Name      string
	Schema    *schema.Schema
	Store     *objectstore.Store
	Changelog *changelog.Changelog
	log       *zap.Logger
}

// Option configures a Collection at construction time.
type Option func(*Collection)

func WithLogger(log *zap.Logger) Option { return func(c *Collection) { c.log = log } }

// New returns a Collection named name over schema s, with series writes
// and reads backed by store and revisions recorded in cl.
func New(name string, s *schema.Schema, store *objectstore.Store, cl *changelog.Changelog, opts ...Option) *Collection {
	c := &Collection{Name: name, Schema: s, Store: store, Changelog: cl}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Series returns a handle for reading and writing the named series within
// this collection, sharing its schema, store and changelog.
func (c *Collection) Series(name string, opts ...series.Option) *series.Series {
	opts = append([]series.Option{series.WithLogger(c.log)}, opts...)
	return series.New(name, c.Schema, c.Store, c.Changelog, opts...)
}

// Heads returns the collection's current changelog leafs.
func (c *Collection) Heads(ctx context.Context) ([]changelog.Revision, error) {
	return c.Changelog.Leafs(ctx)
}

// IsForked reports whether the collection currently has more than one
// effective head. The revisions a merge commits all share one child
// digest, so they count as a single head even though Heads returns each
// edge.
func (c *Collection) IsForked(ctx context.Context) (bool, error) {
	heads, err := c.Heads(ctx)
	if err != nil {
		return false, err
	}
	children := map[digest.Digest]bool{}
	for _, h := range heads {
		children[h.ChildDigest()] = true
	}
	return len(children) > 1, nil
}
