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
	"github.com/google/btree"

	"github.com/bertrandchenal/lakota/schema"
)

// liveIndex holds a series' currently-live segments ordered by start key;
// shadow resolution walks every live segment once per written interval.
// An ascending walk is not always the row order: a write landing inside an
// older segment leaves that segment's rows on both sides of it, so Read
// sorts the stitched rows by key.
type liveIndex struct {
	schema *schema.Schema
	tree   *btree.BTreeG[liveSegment]
	seq    int64
}

func newLiveIndex(s *schema.Schema) *liveIndex {
	idx := &liveIndex{schema: s}
	idx.tree = btree.NewG(32, idx.less)
	return idx
}

// less orders by start key, falling back to insertion order on ties so
// two segments with identical start keys never collide in the tree.
func (idx *liveIndex) less(a, b liveSegment) bool {
	if c := cmp(idx.schema, a.interval.start, b.interval.start); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (idx *liveIndex) insert(seg liveSegment) {
	seg.seq = idx.seq
	idx.seq++
	idx.tree.ReplaceOrInsert(seg)
}

func (idx *liveIndex) items() []liveSegment {
	out := make([]liveSegment, 0, idx.tree.Len())
	idx.tree.Ascend(func(item liveSegment) bool {
		out = append(out, item)
		return true
	})
	return out
}

// replace discards the current contents in favor of kept, without
// touching the insertion sequence counter so future inserts keep sorting
// after whatever survived.
func (idx *liveIndex) replace(kept []liveSegment) {
	idx.tree.Clear(false)
	for _, seg := range kept {
		idx.tree.ReplaceOrInsert(seg)
	}
}
