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

// Package cachedpod composes an ordered list of pods into one: reads
// fall through to the authoritative pod on a local miss and populate the
// local cache; writes only ever touch the local
// pod, leaving propagation to the caller (push); listings always go to
// the last, authoritative pod so upstream deletions and new revisions
// become visible through a warm cache.
package cachedpod

import (
	"context"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/pod"
)

// Pod composes pods []0..n-1 as [local, ..., remote]: index 0 is tried
// first on read and is the only one touched on write; the last index is
// authoritative for Ls/Walk.
type Pod struct {
	pods []pod.Pod
	log  *zap.Logger
}

// New composes pods in cache order: the first is local (read/write
// target), the last is authoritative (listing target). At least one pod
// is required; a single pod degenerates to pass-through.
func New(pods []pod.Pod, log *zap.Logger) *Pod {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pod{pods: pods, log: log}
}

func (p *Pod) local() pod.Pod        { return p.pods[0] }
func (p *Pod) authoritative() pod.Pod { return p.pods[len(p.pods)-1] }

func (p *Pod) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := p.local().Read(ctx, key)
	if err == nil {
		return data, nil
	}
	if !lkerr.Has(lkerr.NotFound, err) || len(p.pods) == 1 {
		return nil, err
	}
	for i := 1; i < len(p.pods); i++ {
		data, err = p.pods[i].Read(ctx, key)
		if err == nil {
			p.log.Debug("cachedpod: populating local cache", zap.String("key", key))
			if werr := p.local().Write(ctx, key, data); werr != nil {
				p.log.Warn("cachedpod: failed to populate cache", zap.String("key", key), zap.Error(werr))
			}
			return data, nil
		}
		if !lkerr.Has(lkerr.NotFound, err) {
			return nil, err
		}
	}
	return nil, err
}

// Write stores only to the local pod. Propagating to upstream pods is the
// caller's responsibility (see the sync package's push algorithm).
func (p *Pod) Write(ctx context.Context, key string, data []byte) error {
	return p.local().Write(ctx, key, data)
}

func (p *Pod) Rm(ctx context.Context, key string) error {
	return p.local().Rm(ctx, key)
}

// Ls and Walk are never served from cache: they always ask the
// authoritative (last) pod, so a stale local cache never hides an
// upstream deletion or a new changelog entry.
func (p *Pod) Ls(ctx context.Context, prefix string) ([]string, error) {
	return p.authoritative().Ls(ctx, prefix)
}

func (p *Pod) Walk(ctx context.Context, prefix string) ([]string, error) {
	return p.authoritative().Walk(ctx, prefix)
}
