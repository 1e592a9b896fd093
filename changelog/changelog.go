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

// Package changelog implements the per-collection append-only,
// fork-capable log of revisions: each revision is a single-parent edge in
// a DAG, named by a filename that encodes both endpoints so parent
// discovery is a prefix scan, with a body object carrying the full
// digests the filename only truncates.
package changelog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/pod"
)

const packedPrefix = "_packed"

// Changelog is one collection's revision log, backed directly by a pod for
// the filename-addressed revision objects and by an objectstore for the
// payload bodies they reference.
type Changelog struct {
	pod    pod.Pod
	store  *objectstore.Store
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// Option configures a Changelog at construction time.
type Option func(*Changelog)

// WithClock overrides the wall clock used for epoch assignment — tests use
// this to get deterministic, reproducible epochs.
func WithClock(now func() time.Time) Option {
	return func(c *Changelog) { c.now = now }
}

// New returns a Changelog over p under prefix, using store for payload
// bodies.
func New(p pod.Pod, store *objectstore.Store, prefix string, log *zap.Logger, opts ...Option) *Changelog {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Changelog{pod: p, store: store, prefix: prefix, log: log, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit builds the body for payload, computes the child digest, assigns a
// monotonic epoch, and writes the filename-encoded revision object.
// parent is nil for a root revision.
func (c *Changelog) Commit(ctx context.Context, parent *Revision, payload []byte, author string) (digest.Digest, error) {
	if author == "" {
		author = uuid.NewString()
	}
	payloadDigest, err := c.store.Put(ctx, payload)
	if err != nil {
		return digest.Zero, err
	}
	var parentDigest digest.Digest
	var parentEpoch int64
	if parent != nil {
		parentDigest = parent.ChildDigest()
		parentEpoch = parent.Epoch
	}
	epoch := parentEpoch + 1
	if now := c.now().UnixMilli(); now > epoch {
		epoch = now
	}
	rev := Revision{Epoch: epoch, ParentDigest: parentDigest, PayloadDigest: payloadDigest, Author: author}
	b, err := marshalRevision(rev)
	if err != nil {
		return digest.Zero, err
	}
	key := c.prefix + "/" + encodeFilename(parentEpoch, rev)
	if err := c.pod.Write(ctx, key, b); err != nil {
		return digest.Zero, lkerr.BackendError.Wrap(err)
	}
	child := rev.ChildDigest()
	c.log.Info("changelog: commit",
		zap.String("prefix", c.prefix),
		zap.String("parent", parentDigest.String()),
		zap.String("child", child.String()),
		zap.Int64("epoch", epoch))
	return child, nil
}

// Import writes rev directly into this changelog, preserving its exact
// epoch, parent digest, payload digest and author instead of assigning a
// fresh epoch the way Commit does. parentEpoch is the epoch of rev's
// parent (zero for a root), so the imported filename encodes the same
// endpoints it had on the source. The sync package uses this to replay a
// remote revision locally with its content-derived identity intact, since
// ChildDigest depends only on PayloadDigest and Author.
func (c *Changelog) Import(ctx context.Context, rev Revision, parentEpoch int64) error {
	b, err := marshalRevision(rev)
	if err != nil {
		return err
	}
	key := c.prefix + "/" + encodeFilename(parentEpoch, rev)
	if err := c.pod.Write(ctx, key, b); err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	c.log.Info("changelog: import",
		zap.String("prefix", c.prefix),
		zap.String("child", rev.ChildDigest().String()),
		zap.Int64("epoch", rev.Epoch))
	return nil
}

// Log returns every revision in this changelog, in topological order. Since
// Commit enforces epoch > parent epoch, ascending-epoch order is already a
// valid topological order; ties (only possible between distinct writers
// racing against the same parent) are broken by larger child digest, then
// smaller author token.
func (c *Changelog) Log(ctx context.Context) ([]Revision, error) {
	return c.allRevisions(ctx)
}

// Leafs returns the current heads: revisions whose child digest is not the
// parent digest of any other revision.
func (c *Changelog) Leafs(ctx context.Context) ([]Revision, error) {
	all, err := c.allRevisions(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[digest.Digest]bool, len(all))
	for _, r := range all {
		referenced[r.ParentDigest] = true
	}
	var out []Revision
	for _, r := range all {
		if !referenced[r.ChildDigest()] {
			out = append(out, r)
		}
	}
	return out, nil
}

// PickHead deterministically chooses one current head when several
// exist: greatest epoch, tie-broken by larger child digest then smaller
// author token. A changelog with no revisions yet has no head; ok is
// false.
func (c *Changelog) PickHead(ctx context.Context) (rev Revision, ok bool, err error) {
	heads, err := c.Leafs(ctx)
	if err != nil {
		return Revision{}, false, err
	}
	if len(heads) == 0 {
		return Revision{}, false, nil
	}
	best := heads[0]
	for _, h := range heads[1:] {
		if headWins(h, best) {
			best = h
		}
	}
	return best, true, nil
}

// headWins reports whether candidate should replace current under the
// tie-break rule: greater epoch wins; on equal epoch, larger child digest
// wins; on equal digest, smaller author token wins.
func headWins(candidate, current Revision) bool {
	if candidate.Epoch != current.Epoch {
		return candidate.Epoch > current.Epoch
	}
	cd, bd := candidate.ChildDigest(), current.ChildDigest()
	if cd != bd {
		return digest.Less(bd, cd)
	}
	return candidate.Author < current.Author
}

// Ancestors returns every revision on some path from a root to target
// (inclusive), in topological order — the root-to-target walk series.Read
// needs.
func (c *Changelog) Ancestors(ctx context.Context, target digest.Digest) ([]Revision, error) {
	all, err := c.allRevisions(ctx)
	if err != nil {
		return nil, err
	}
	return ancestorsOf(all, target), nil
}

// Walk returns the revisions introduced strictly after from on the way to
// to: Ancestors(to) minus Ancestors(from) (inclusive of from's own defining
// edges, which are excluded). This is exactly the Δ collection.merge's
// step 2 needs. from == digest.Zero means "from the root".
func (c *Changelog) Walk(ctx context.Context, from, to digest.Digest) ([]Revision, error) {
	all, err := c.allRevisions(ctx)
	if err != nil {
		return nil, err
	}
	toSet := ancestorsOf(all, to)
	if from.IsZero() {
		return toSet, nil
	}
	fromSet := ancestorsOf(all, from)
	covered := make(map[string]bool, len(fromSet))
	for _, r := range fromSet {
		covered[edgeKey(r)] = true
	}
	var delta []Revision
	for _, r := range toSet {
		if !covered[edgeKey(r)] {
			delta = append(delta, r)
		}
	}
	return delta, nil
}

// LowestCommonAncestor computes the lowest common ancestor of heads by
// DAG walk. The all-zero digest, the implicit root, is always a common
// ancestor, so this never fails to find one.
func (c *Changelog) LowestCommonAncestor(ctx context.Context, heads []digest.Digest) (digest.Digest, error) {
	all, err := c.allRevisions(ctx)
	if err != nil {
		return digest.Zero, err
	}
	if len(heads) == 0 {
		return digest.Zero, nil
	}
	common := ancestorEpochs(all, heads[0])
	for _, h := range heads[1:] {
		s := ancestorEpochs(all, h)
		for d := range common {
			if _, ok := s[d]; !ok {
				delete(common, d)
			}
		}
	}
	best, bestEpoch := digest.Zero, int64(-1)
	for d, e := range common {
		if e > bestEpoch || (e == bestEpoch && digest.Less(best, d)) {
			best, bestEpoch = d, e
		}
	}
	return best, nil
}

// Pack rewrites every loose revision into a single packed object under a
// distinct sub-prefix, then deletes the loose files it covers. Packing is
// optional; callers that never call it get exactly the same Log/Leafs/Walk
// results, just from more, smaller objects.
func (c *Changelog) Pack(ctx context.Context) error {
	entries, err := c.looseEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rev.Epoch != entries[j].rev.Epoch {
			return entries[i].rev.Epoch < entries[j].rev.Epoch
		}
		return digest.Less(entries[i].rev.ChildDigest(), entries[j].rev.ChildDigest())
	})
	bodies := make([]body, len(entries))
	for i, e := range entries {
		bodies[i] = body{
			Epoch:         e.rev.Epoch,
			ParentDigest:  e.rev.ParentDigest.String(),
			PayloadDigest: e.rev.PayloadDigest.String(),
			Author:        e.rev.Author,
		}
	}
	blob, err := json.Marshal(bodies)
	if err != nil {
		return lkerr.IntegrityError.Wrap(err)
	}
	d := digest.Of(blob)
	packKey := c.prefix + "/" + packedPrefix + "/" + d.String()
	if err := c.pod.Write(ctx, packKey, blob); err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	for _, e := range entries {
		if err := c.pod.Rm(ctx, e.key); err != nil && !lkerr.Has(lkerr.NotFound, err) {
			return lkerr.BackendError.Wrap(err)
		}
	}
	c.log.Info("changelog: pack", zap.String("prefix", c.prefix), zap.Int("revisions", len(entries)))
	return nil
}

// allRevisions reads both loose and packed storage.
func (c *Changelog) allRevisions(ctx context.Context) ([]Revision, error) {
	loose, err := c.looseRevisions(ctx)
	if err != nil {
		return nil, err
	}
	packed, err := c.packedRevisions(ctx)
	if err != nil {
		return nil, err
	}
	all := append(loose, packed...)
	sortRevisions(all)
	return all, nil
}

type looseEntry struct {
	key string
	rev Revision
}

func (c *Changelog) looseRevisions(ctx context.Context) ([]Revision, error) {
	entries, err := c.looseEntries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Revision, len(entries))
	for i, e := range entries {
		out[i] = e.rev
	}
	return out, nil
}

func (c *Changelog) looseEntries(ctx context.Context) ([]looseEntry, error) {
	keys, err := c.pod.Ls(ctx, c.prefix)
	if err != nil {
		if lkerr.Has(lkerr.NotFound, err) {
			return nil, nil
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	var out []looseEntry
	for _, key := range keys {
		basename := strings.TrimPrefix(key, strings.TrimSuffix(c.prefix, "/")+"/")
		if basename == packedPrefix || !isFilenameKey(basename) {
			continue
		}
		data, err := c.pod.Read(ctx, key)
		if err != nil {
			if lkerr.Has(lkerr.NotFound, err) {
				continue
			}
			return nil, lkerr.BackendError.Wrap(err)
		}
		rev, err := unmarshalRevision(data)
		if err != nil {
			return nil, err
		}
		out = append(out, looseEntry{key: key, rev: rev})
	}
	return out, nil
}

func (c *Changelog) packedRevisions(ctx context.Context) ([]Revision, error) {
	keys, err := c.pod.Walk(ctx, c.prefix+"/"+packedPrefix)
	if err != nil {
		if lkerr.Has(lkerr.NotFound, err) {
			return nil, nil
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	var out []Revision
	for _, key := range keys {
		data, err := c.pod.Read(ctx, key)
		if err != nil {
			if lkerr.Has(lkerr.NotFound, err) {
				continue
			}
			return nil, lkerr.BackendError.Wrap(err)
		}
		var bodies []body
		if err := json.Unmarshal(data, &bodies); err != nil {
			return nil, lkerr.IntegrityError.New("malformed packed changelog object: %v", err)
		}
		for _, b := range bodies {
			data, err := json.Marshal(b)
			if err != nil {
				return nil, lkerr.IntegrityError.Wrap(err)
			}
			rev, err := unmarshalRevision(data)
			if err != nil {
				return nil, err
			}
			out = append(out, rev)
		}
	}
	return out, nil
}

func sortRevisions(revs []Revision) {
	sort.Slice(revs, func(i, j int) bool {
		if revs[i].Epoch != revs[j].Epoch {
			return revs[i].Epoch < revs[j].Epoch
		}
		return digest.Less(revs[i].ChildDigest(), revs[j].ChildDigest())
	})
}

// ancestorsOf returns every edge reachable backward from target, inclusive
// of the edges that define target itself (there may be several, if target
// is a merge point shared by several parent-distinct revisions).
func ancestorsOf(all []Revision, target digest.Digest) []Revision {
	byChild := make(map[digest.Digest][]Revision, len(all))
	for _, r := range all {
		byChild[r.ChildDigest()] = append(byChild[r.ChildDigest()], r)
	}
	seen := map[digest.Digest]bool{}
	var out []Revision
	queue := []digest.Digest{target}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.IsZero() || seen[d] {
			continue
		}
		seen[d] = true
		for _, r := range byChild[d] {
			out = append(out, r)
			queue = append(queue, r.ParentDigest)
		}
	}
	sortRevisions(out)
	return out
}

// ancestorEpochs maps every ancestor digest of target (inclusive) to the
// greatest epoch at which it was defined, plus the implicit root at epoch
// -1 so intersections are never empty.
func ancestorEpochs(all []Revision, target digest.Digest) map[digest.Digest]int64 {
	out := map[digest.Digest]int64{digest.Zero: -1}
	for _, r := range ancestorsOf(all, target) {
		d := r.ChildDigest()
		if e, ok := out[d]; !ok || r.Epoch > e {
			out[d] = r.Epoch
		}
	}
	return out
}

func edgeKey(r Revision) string {
	return r.ParentDigest.String() + ">" + r.ChildDigest().String() + "@" + encodeEpoch(r.Epoch)
}
