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

	"github.com/bertrandchenal/lakota/repo"
)

// PullRepo pulls every collection remote knows about: the registry
// changelog itself is transferred first (so local learns about any
// collection remote declared that local doesn't have yet, schema blob
// included), then every collection name now known to both repos has its
// own changelog transferred. When both registries already hold commits,
// the transferred registry is forked and the registry is read at the head
// PickHead selects, so collections declared only on the other branch are
// not listed and not transferred.
func PullRepo(ctx context.Context, local, remote *repo.Repo) (bool, error) {
	return transferRepo(ctx, local, remote)
}

// PushRepo pushes every collection local knows about into remote,
// registering any collection remote doesn't have yet.
func PushRepo(ctx context.Context, local, remote *repo.Repo) (bool, error) {
	return transferRepo(ctx, remote, local)
}

// transferRepo copies dst <- src: the registry, then each collection dst
// now knows about that src also declares.
func transferRepo(ctx context.Context, dst, src *repo.Repo) (bool, error) {
	registryChanged, err := Transfer(ctx, dst.Registry(), dst.Store(), src.Registry(), src.Store(), repo.RegistryDependencies, nil)
	if err != nil {
		return false, err
	}

	dstNames, err := dst.Ls(ctx)
	if err != nil {
		return false, err
	}
	srcNames := map[string]bool{}
	names, err := src.Ls(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		srcNames[n] = true
	}

	anyChanged := registryChanged
	for _, name := range dstNames {
		if !srcNames[name] {
			continue
		}
		dstCol, err := dst.Collection(ctx, name)
		if err != nil {
			return false, err
		}
		srcCol, err := src.Collection(ctx, name)
		if err != nil {
			return false, err
		}
		changed, err := PullCollection(ctx, dstCol, srcCol)
		if err != nil {
			return false, err
		}
		anyChanged = anyChanged || changed
	}
	return anyChanged, nil
}
