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

// Package memorypod implements the memory:// pod backend: a per-instance
// in-memory map, never a process-global one.
package memorypod

import (
	"context"
	"sort"
	"strings"

	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/bertrandchenal/lakota/lkerr"
)

// entry adapts a stored key/value pair to NonLockingReadMap's KeyGetter
// contract. The read-optimized lock-free map fits here because pod reads
// vastly outnumber writes once a repository is warm.
type entry struct {
	key   string
	value []byte
}

func (e entry) GetKey() string { return e.key }
func (e entry) ComputeSize() uint {
	return uint(len(e.key) + len(e.value))
}

// Pod is the in-memory backend. Create one with New; the zero value is not
// ready to use.
type Pod struct {
	m nlrm.NonLockingReadMap[entry, string]
}

// New returns a fresh, empty in-memory pod instance.
func New() *Pod {
	return &Pod{m: nlrm.New[entry, string]()}
}

func (p *Pod) Read(_ context.Context, key string) ([]byte, error) {
	e := p.m.Get(key)
	if e == nil {
		return nil, lkerr.NotFound.New("memory: %q", key)
	}
	// copy out so callers can't mutate our stored bytes
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (p *Pod) Write(_ context.Context, key string, data []byte) error {
	if existing := p.m.Get(key); existing != nil && sameBytes(existing.value, data) {
		return nil // idempotent no-op on identical bytes
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	p.m.Set(&entry{key: key, value: cp})
	return nil
}

func (p *Pod) Rm(_ context.Context, key string) error {
	if p.m.Remove(key) == nil {
		return lkerr.NotFound.New("memory: %q", key)
	}
	return nil
}

func (p *Pod) Ls(_ context.Context, prefix string) ([]string, error) {
	return list(p.m.GetAll(), prefix, false), nil
}

func (p *Pod) Walk(_ context.Context, prefix string) ([]string, error) {
	return list(p.m.GetAll(), prefix, true), nil
}

func list(all []*entry, prefix string, recursive bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range all {
		if !strings.HasPrefix(e.key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(e.key, prefix)
		rest = strings.TrimPrefix(rest, "/")
		if rest == "" {
			continue
		}
		if recursive {
			if _, ok := seen[e.key]; !ok {
				seen[e.key] = struct{}{}
				out = append(out, e.key)
			}
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[:idx]
		}
		full := strings.TrimSuffix(prefix, "/") + "/" + rest
		if _, ok := seen[full]; !ok {
			seen[full] = struct{}{}
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out
}

func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
