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

// Package series implements the algorithmic core: mapping a
// Frame write to immutable segments plus a changelog revision, and
// reconstructing a consistent view at a given revision by walking the DAG
// and resolving shadowed intervals.
package series

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/jtolds/gls"
	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/schema"
	"github.com/bertrandchenal/lakota/segment"
)

// DefaultSegmentRows is the target row count per segment.
const DefaultSegmentRows = 100_000

// DefaultCodec is the codec new segments compress with unless overridden.
const DefaultCodec = "lz4"

// Series orchestrates writes and reads for one named table within a
// collection.
type Series struct {
	Name        string
	Schema      *schema.Schema
	Store       *objectstore.Store
	Changelog   *changelog.Changelog
	Author      string
	SegmentRows int
	Codec       string
	log         *zap.Logger
}

// Option configures a Series at construction time.
type Option func(*Series)

func WithAuthor(author string) Option   { return func(s *Series) { s.Author = author } }
func WithSegmentRows(n int) Option      { return func(s *Series) { s.SegmentRows = n } }
func WithCodec(codec string) Option     { return func(s *Series) { s.Codec = codec } }
func WithLogger(log *zap.Logger) Option { return func(s *Series) { s.log = log } }

// New returns a Series named name, sharing schema s, storing segments and
// payloads in store and revisions in cl.
func New(name string, s *schema.Schema, store *objectstore.Store, cl *changelog.Changelog, opts ...Option) *Series {
	sr := &Series{
		Name:        name,
		Schema:      s,
		Store:       store,
		Changelog:   cl,
		SegmentRows: DefaultSegmentRows,
		Codec:       DefaultCodec,
	}
	for _, opt := range opts {
		opt(sr)
	}
	if sr.log == nil {
		sr.log = zap.NewNop()
	}
	return sr
}

// Write slices f into segments, stores them, and commits a revision
// referencing them under this series' name. The
// second return value is a non-fatal lkerr.ConcurrencyNotice when the
// collection now has more than one head.
func (s *Series) Write(ctx context.Context, f *schema.Frame) (digest.Digest, error, error) {
	if f.Len() == 0 {
		return digest.Zero, nil, lkerr.SchemaError.New("series %q: cannot write an empty frame", s.Name)
	}
	parent, hasParent, err := s.Changelog.PickHead(ctx)
	if err != nil {
		return digest.Zero, nil, err
	}
	var parentRev *changelog.Revision
	if hasParent {
		parentRev = &parent
	}

	var segDigests []digest.Digest
	for _, part := range segment.SliceFrame(f, s.SegmentRows) {
		desc, err := segment.Write(ctx, s.Store, s.Schema, part, s.Codec)
		if err != nil {
			return digest.Zero, nil, err
		}
		d, err := segment.PutDescriptor(ctx, s.Store, desc)
		if err != nil {
			return digest.Zero, nil, err
		}
		segDigests = append(segDigests, d)
	}

	entry := Entry{Series: s.Name, Start: f.Key(0), Stop: f.Key(f.Len() - 1), Segments: segDigests}
	payloadBytes, err := MarshalPayload(Payload{Entries: []Entry{entry}})
	if err != nil {
		return digest.Zero, nil, err
	}
	child, err := s.Changelog.Commit(ctx, parentRev, payloadBytes, s.Author)
	if err != nil {
		return digest.Zero, nil, err
	}

	heads, err := s.Changelog.Leafs(ctx)
	if err != nil {
		return child, nil, err
	}
	// Merge edges share a child digest, so count distinct children rather
	// than head edges.
	children := map[digest.Digest]bool{}
	for _, h := range heads {
		children[h.ChildDigest()] = true
	}
	var notice error
	if len(children) > 1 {
		notice = lkerr.ConcurrencyNotice.New("series %q: collection has %d forked heads after write", s.Name, len(children))
	}
	s.log.Info("series: write",
		zap.String("series", s.Name),
		zap.String("child", child.String()),
		zap.Int("segments", len(segDigests)))
	return child, notice, nil
}

// liveSegment is one segment still contributing rows to the resolved view,
// net of the portions later revisions have shadowed.
type liveSegment struct {
	desc     *segment.Descriptor
	interval keyInterval
	shadows  []keyInterval
	seq      int64
}

// Read resolves this series' rows in [lo, hi] as of revision at (the
// current head if at is nil).
func (s *Series) Read(ctx context.Context, lo, hi []schema.Value, at *digest.Digest) (*schema.Frame, error) {
	var target digest.Digest
	if at != nil {
		target = *at
	} else {
		head, ok, err := s.Changelog.PickHead(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return emptyFrame(s.Schema), nil
		}
		target = head.ChildDigest()
	}

	revs, err := s.Changelog.Ancestors(ctx, target)
	if err != nil {
		return nil, err
	}

	live := newLiveIndex(s.Schema)
	for _, rev := range revs {
		payloadBytes, err := s.Store.Get(ctx, rev.PayloadDigest)
		if err != nil {
			return nil, fatalIfMissing(err)
		}
		payload, err := UnmarshalPayload(payloadBytes)
		if err != nil {
			return nil, err
		}
		for _, entry := range payload.Entries {
			if entry.Series != s.Name {
				continue
			}
			writeInterval := keyInterval{start: entry.Start, stop: entry.Stop}
			shadow(live, writeInterval)
			for _, segDigest := range entry.Segments {
				desc, err := segment.GetDescriptor(ctx, s.Store, segDigest)
				if err != nil {
					return nil, fatalIfMissing(err)
				}
				live.insert(liveSegment{desc: desc, interval: keyInterval{start: desc.Start, stop: desc.Stop}})
			}
		}
	}

	readRange := keyInterval{start: lo, stop: hi}
	segs := live.items()
	frames := make([]*schema.Frame, len(segs))
	var wg sync.WaitGroup
	errs := make([]error, len(segs))
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	materialize := func(i int) {
		seg := segs[i]
		if !overlaps(s.Schema, seg.interval, readRange) {
			return
		}
		full, err := segment.Read(ctx, s.Store, s.Schema, seg.desc)
		if err != nil {
			errs[i] = fatalIfMissing(err)
			return
		}
		frames[i] = filterFrame(s.Schema, full, func(key []schema.Value) bool {
			if !within(s.Schema, key, readRange) {
				return false
			}
			for _, sh := range seg.shadows {
				if within(s.Schema, key, sh) {
					return false
				}
			}
			return true
		})
	}
	if len(segs) <= workers {
		wg.Add(len(segs))
		for i := range segs {
			gls.Go(func(i int) func() {
				return func() { defer wg.Done(); materialize(i) }
			}(i))
		}
	} else {
		jobs := make(chan int, workers)
		wg.Add(len(segs))
		for w := 0; w < workers; w++ {
			gls.Go(func() func() {
				return func() {
					for i := range jobs {
						materialize(i)
						wg.Done()
					}
				}
			}())
		}
		for i := range segs {
			jobs <- i
		}
		close(jobs)
	}
	wg.Wait()

	var out []*schema.Frame
	for i, f := range frames {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if f != nil && f.Len() > 0 {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return emptyFrame(s.Schema), nil
	}
	merged := schema.Concat(s.Schema, out...)
	// A write inside an older segment leaves that segment's rows on both sides of it.
	order := make([]int, merged.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { c, _ := merged.CompareKeys(order[a], order[b]); return c < 0 })
	for name, vals := range merged.Columns {
		sorted := make([]schema.Value, len(order))
		for i, j := range order {
			sorted[i] = vals[j]
		}
		merged.Columns[name] = sorted
	}
	return merged, nil
}

// fatalIfMissing upgrades a NotFound on an object a revision references:
// a revision pointing at a missing object is corruption, not absence of
// history.
func fatalIfMissing(err error) error {
	if lkerr.Has(lkerr.NotFound, err) {
		return lkerr.IntegrityError.Wrap(err)
	}
	return err
}

// shadow applies a newly-written interval I to the live index in place:
// any live segment it fully covers is dropped, any it partially overlaps
// gets I recorded as a shadow range to filter out at read time, and
// untouched segments pass through unchanged.
func shadow(live *liveIndex, I keyInterval) {
	current := live.items()
	kept := make([]liveSegment, 0, len(current))
	for _, seg := range current {
		switch {
		case !overlaps(live.schema, seg.interval, I):
			kept = append(kept, seg)
		case contains(live.schema, I, seg.interval):
			// fully shadowed by the new write; drop it
		default:
			seg.shadows = append(seg.shadows, intersect(live.schema, seg.interval, I))
			kept = append(kept, seg)
		}
	}
	live.replace(kept)
}

func filterFrame(s *schema.Schema, f *schema.Frame, keep func([]schema.Value) bool) *schema.Frame {
	cols := make(map[string][]schema.Value, len(s.Columns))
	for _, c := range s.Columns {
		cols[c.Name] = []schema.Value{}
	}
	for i := 0; i < f.Len(); i++ {
		if !keep(f.Key(i)) {
			continue
		}
		for _, c := range s.Columns {
			cols[c.Name] = append(cols[c.Name], f.Columns[c.Name][i])
		}
	}
	return &schema.Frame{Schema: s, Columns: cols}
}

func emptyFrame(s *schema.Schema) *schema.Frame {
	cols := make(map[string][]schema.Value, len(s.Columns))
	for _, c := range s.Columns {
		cols[c.Name] = []schema.Value{}
	}
	return &schema.Frame{Schema: s, Columns: cols}
}
