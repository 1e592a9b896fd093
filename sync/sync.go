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

// Package sync implements push/pull replication between two
// changelogs: every revision on the source not yet reachable from a
// destination head is copied over, dependency objects first, so a crash
// mid-transfer never leaves a revision pointing at a missing object.
package sync

import (
	"context"
	"runtime"
	"sync"

	"github.com/jtolds/gls"
	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
)

// DependencyFunc extracts the extra objects a revision's payload
// references that must be copied before the payload itself — segment
// columns for a series payload, schema blobs for a registry payload.
type DependencyFunc func(payload []byte) ([]digest.Digest, error)

// edgeKey identifies a revision by its full (parent, child, epoch) triple,
// independent of any particular changelog's internal bookkeeping.
type edgeKey struct {
	parent digest.Digest
	child  digest.Digest
	epoch  int64
}

func keyOf(rev changelog.Revision) edgeKey {
	return edgeKey{parent: rev.ParentDigest, child: rev.ChildDigest(), epoch: rev.Epoch}
}

// Transfer copies every src revision not already present in dst:
//  1. read dst's heads and src's full log,
//  2. compute the revisions in src's log absent from dst's ancestor set,
//  3. for each, copy dependency objects, then the payload, then the
//     revision object,
//  4. report whether any work was done.
//
// Transfer is symmetric: local.Pull(remote) is Transfer(local, remote) and
// local.Push(remote) is Transfer(remote, local) — same function, opposite
// argument order.
func Transfer(ctx context.Context, dstCl *changelog.Changelog, dstStore *objectstore.Store, srcCl *changelog.Changelog, srcStore *objectstore.Store, deps DependencyFunc, log *zap.Logger) (bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dstHeads, err := dstCl.Leafs(ctx)
	if err != nil {
		return false, err
	}
	present := map[edgeKey]bool{}
	for _, h := range dstHeads {
		ancestors, err := dstCl.Ancestors(ctx, h.ChildDigest())
		if err != nil {
			return false, err
		}
		for _, r := range ancestors {
			present[keyOf(r)] = true
		}
	}

	srcLog, err := srcCl.Log(ctx)
	if err != nil {
		return false, err
	}
	var missing []changelog.Revision
	for _, r := range srcLog {
		if !present[keyOf(r)] {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	// Parent epochs come from the source log so imported filenames encode
	// the same endpoints they had on the source.
	epochByChild := make(map[digest.Digest]int64, len(srcLog))
	for _, r := range srcLog {
		if e, ok := epochByChild[r.ChildDigest()]; !ok || r.Epoch > e {
			epochByChild[r.ChildDigest()] = r.Epoch
		}
	}

	errs := make([]error, len(missing))
	copyOne := func(i int) {
		errs[i] = copyRevision(ctx, dstCl, dstStore, srcStore, deps, missing[i], epochByChild[missing[i].ParentDigest])
	}
	fanOut(len(missing), copyOne)
	for _, err := range errs {
		if err != nil {
			return false, err
		}
	}

	log.Info("sync: transfer", zap.Int("revisions", len(missing)))
	return true, nil
}

// copyRevision copies one revision's dependency objects, then its payload,
// then the revision object itself. Reads from srcStore retry only
// BackendError, up to maxRetries attempts, and surface the final error;
// writes to dst are not retried.
func copyRevision(ctx context.Context, dstCl *changelog.Changelog, dstStore *objectstore.Store, srcStore *objectstore.Store, deps DependencyFunc, rev changelog.Revision, parentEpoch int64) error {
	payload, err := retryGet(ctx, srcStore, rev.PayloadDigest)
	if err != nil {
		return err
	}
	if deps != nil {
		refs, err := deps(payload)
		if err != nil {
			return err
		}
		for _, d := range refs {
			if dstStore.Has(ctx, d) {
				continue
			}
			body, err := retryGet(ctx, srcStore, d)
			if err != nil {
				return err
			}
			if _, err := dstStore.Put(ctx, body); err != nil {
				return err
			}
		}
	}
	if _, err := dstStore.Put(ctx, payload); err != nil {
		return err
	}
	return dstCl.Import(ctx, rev, parentEpoch)
}

const maxRetries = 3

func retryGet(ctx context.Context, store *objectstore.Store, d digest.Digest) ([]byte, error) {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var data []byte
		data, err = store.Get(ctx, d)
		if err == nil {
			return data, nil
		}
		if !lkerr.Has(lkerr.BackendError, err) {
			return nil, err
		}
	}
	return nil, err
}

// fanOut runs fn(i) for i in [0, n) — directly when n fits within
// runtime.NumCPU(), else through a bounded worker pool.
func fanOut(n int, fn func(i int)) {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	if n <= workers {
		wg.Add(n)
		for i := 0; i < n; i++ {
			gls.Go(func(i int) func() {
				return func() { defer wg.Done(); fn(i) }
			}(i))
		}
	} else {
		jobs := make(chan int, workers)
		wg.Add(n)
		for w := 0; w < workers; w++ {
			gls.Go(func() func() {
				return func() {
					for i := range jobs {
						fn(i)
						wg.Done()
					}
				}
			}())
		}
		for i := 0; i < n; i++ {
			jobs <- i
		}
		close(jobs)
	}
	wg.Wait()
}
