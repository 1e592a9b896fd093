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

package sync

import (
	"context"

	"github.com/bertrandchenal/lakota/collection"
	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/segment"
	"github.com/bertrandchenal/lakota/series"
)

// seriesDependencies returns the DependencyFunc for a collection's
// changelog: a series payload references segment descriptors, and each
// descriptor references its column objects in src. Columns are listed
// before the descriptor that names them.
func seriesDependencies(ctx context.Context, src *objectstore.Store) DependencyFunc {
	return func(payload []byte) ([]digest.Digest, error) {
		p, err := series.UnmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		var out []digest.Digest
		for _, e := range p.Entries {
			for _, seg := range e.Segments {
				desc, err := segment.GetDescriptor(ctx, src, seg)
				if err != nil {
					return nil, err
				}
				for _, col := range desc.Columns {
					out = append(out, col.Digest)
				}
				out = append(out, seg)
			}
		}
		return out, nil
	}
}

// PullCollection pulls every revision in remote's changelog not yet
// reachable from local's heads into local, copying segments and payloads
// first. It reports whether any work was done.
func PullCollection(ctx context.Context, local, remote *collection.Collection) (bool, error) {
	return Transfer(ctx, local.Changelog, local.Store, remote.Changelog, remote.Store, seriesDependencies(ctx, remote.Store), nil)
}

// PushCollection pushes every revision in local's changelog not yet
// reachable from remote's heads into remote. A push across
// differently-named collections (local named "rainfall", remote named
// "precipitation") works the same way: only the destination's prefix
// differs, which the caller controls by which Collection it passes in.
func PushCollection(ctx context.Context, local, remote *collection.Collection) (bool, error) {
	return Transfer(ctx, remote.Changelog, remote.Store, local.Changelog, local.Store, seriesDependencies(ctx, local.Store), nil)
}
