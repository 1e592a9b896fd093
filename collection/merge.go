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

package collection

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/series"
)

// taggedEntry is one delta entry plus the provenance of the revision it
// came from, the information the union step orders by.
type taggedEntry struct {
	entry  series.Entry
	epoch  int64
	digest digest.Digest
	author string
}

// Merge converges every current head into a single logical tip by
// committing one revision per head, all sharing the same child digest.
// It is a no-op (didMerge = false) when the collection is not currently
// forked.
func (c *Collection) Merge(ctx context.Context, author string) (digest.Digest, bool, error) {
	heads, err := c.Changelog.Leafs(ctx)
	if err != nil {
		return digest.Zero, false, err
	}
	// Collapse merge edges first: several head edges sharing one child
	// digest are a single effective head, and an already-converged
	// collection must stay a no-op.
	byChild := map[digest.Digest]changelog.Revision{}
	var order []digest.Digest
	for _, h := range heads {
		d := h.ChildDigest()
		if _, ok := byChild[d]; !ok {
			byChild[d] = h
			order = append(order, d)
		}
	}
	if len(order) <= 1 {
		if len(order) == 0 {
			return digest.Zero, false, nil
		}
		return order[0], false, nil
	}
	heads = heads[:0]
	for _, d := range order {
		heads = append(heads, byChild[d])
	}

	headDigests := make([]digest.Digest, len(heads))
	for i, h := range heads {
		headDigests[i] = h.ChildDigest()
	}
	lca, err := c.Changelog.LowestCommonAncestor(ctx, headDigests)
	if err != nil {
		return digest.Zero, false, err
	}

	var tagged []taggedEntry
	for _, h := range heads {
		delta, err := c.Changelog.Walk(ctx, lca, h.ChildDigest())
		if err != nil {
			return digest.Zero, false, err
		}
		for _, rev := range delta {
			payloadBytes, err := c.Store.Get(ctx, rev.PayloadDigest)
			if err != nil {
				return digest.Zero, false, err
			}
			payload, err := series.UnmarshalPayload(payloadBytes)
			if err != nil {
				return digest.Zero, false, err
			}
			for _, e := range payload.Entries {
				tagged = append(tagged, taggedEntry{entry: e, epoch: rev.Epoch, digest: rev.ChildDigest(), author: rev.Author})
			}
		}
	}

	// Order entries so that later-epoch writes are replayed last and
	// therefore shadow earlier, overlapping ones when series.Read walks
	// this merge payload, the same epoch-wins rule a single changelog
	// walk already applies. Entries whose source intervals never overlap
	// are unaffected by replay order, which is how disjoint writes from
	// different heads combine additively.
	sort.SliceStable(tagged, func(i, j int) bool {
		a, b := tagged[i], tagged[j]
		if a.epoch != b.epoch {
			return a.epoch < b.epoch
		}
		if a.digest != b.digest {
			return digest.Less(a.digest, b.digest)
		}
		return a.author > b.author
	})

	entries := make([]series.Entry, len(tagged))
	for i, t := range tagged {
		entries[i] = t.entry
	}
	payloadBytes, err := series.MarshalPayload(series.Payload{Entries: entries})
	if err != nil {
		return digest.Zero, false, err
	}

	var child digest.Digest
	for _, h := range heads {
		head := h
		child, err = c.Changelog.Commit(ctx, &head, payloadBytes, author)
		if err != nil {
			return digest.Zero, false, err
		}
	}
	c.log.Info("collection: merge",
		zap.String("collection", c.Name),
		zap.Int("heads", len(heads)),
		zap.String("lca", lca.String()),
		zap.String("child", child.String()),
		zap.Int("entries", len(entries)))
	return child, true, nil
}
