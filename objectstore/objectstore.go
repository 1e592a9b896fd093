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

// Package objectstore is a thin content-addressed skin over a pod: Put
// computes the digest and writes (prefix, digest) if absent; Get resolves
// a digest back to bytes. There are no object types — the caller already
// knows what shape to parse based on the prefix the digest came from.
package objectstore

import (
	"context"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/pod"
)

// Store is a content-addressed object store layered over pod under a
// fixed key prefix.
type Store struct {
	pod    pod.Pod
	prefix string
	log    *zap.Logger
}

// New returns a Store that addresses objects under prefix in pod.
func New(p pod.Pod, prefix string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pod: p, prefix: prefix, log: log}
}

// key renders a digest as the on-disk address split
// "<first-byte>/<second-byte>/<rest-of-digest>".
func key(prefix string, d digest.Digest) string {
	return prefix + "/" + d.Head(1) + "/" + d.String()[2:4] + "/" + d.String()[4:]
}

// Put computes the digest of payload, writes it if absent, and returns
// the digest. Writes are idempotent: storing the same bytes twice is a
// no-op at the pod layer.
func (s *Store) Put(ctx context.Context, payload []byte) (digest.Digest, error) {
	d := digest.Of(payload)
	if err := s.pod.Write(ctx, key(s.prefix, d), payload); err != nil {
		return d, lkerr.BackendError.Wrap(err)
	}
	s.log.Debug("objectstore: put", zap.String("digest", d.String()), zap.Int("bytes", len(payload)))
	return d, nil
}

// Get resolves digest to its payload. A missing object is reported as
// lkerr.NotFound; a payload whose hash no longer matches digest is
// reported as lkerr.IntegrityError.
func (s *Store) Get(ctx context.Context, d digest.Digest) ([]byte, error) {
	data, err := s.pod.Read(ctx, key(s.prefix, d))
	if err != nil {
		if lkerr.Has(lkerr.NotFound, err) {
			return nil, lkerr.NotFound.New("object %s", d)
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	if got := digest.Of(data); got != d {
		return nil, lkerr.IntegrityError.New("object %s: content hashes to %s", d, got)
	}
	return data, nil
}

// Has reports whether digest resolves in the store, without validating
// its integrity (used by pull/push to skip objects already present).
func (s *Store) Has(ctx context.Context, d digest.Digest) bool {
	_, err := s.pod.Read(ctx, key(s.prefix, d))
	return err == nil
}
