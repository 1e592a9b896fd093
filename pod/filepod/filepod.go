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

// Package filepod implements the file:// pod backend over a local
// directory tree: write-to-temp + rename for atomicity, one file per key.
package filepod

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bertrandchenal/lakota/lkerr"
)

// Pod stores every key as a file under root, with "/" in the key mapped
// to nested directories.
type Pod struct {
	root string
}

// New returns a pod rooted at root. The directory is created lazily on
// first write.
func New(root string) *Pod {
	return &Pod{root: root}
}

func (p *Pod) path(key string) string {
	return filepath.Join(p.root, filepath.FromSlash(key))
}

func (p *Pod) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(p.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lkerr.NotFound.New("file: %q", key)
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	return data, nil
}

// Write writes data atomically: it writes to a temp file in the same
// directory, then renames over the destination, so a reader never
// observes a partial write.
func (p *Pod) Write(_ context.Context, key string, data []byte) error {
	dst := p.path(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	if existing, err := os.ReadFile(dst); err == nil && sameBytes(existing, data) {
		return nil // idempotent no-op
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return lkerr.BackendError.Wrap(err)
	}
	return nil
}

func (p *Pod) Rm(_ context.Context, key string) error {
	if err := os.Remove(p.path(key)); err != nil {
		if os.IsNotExist(err) {
			return lkerr.NotFound.New("file: %q", key)
		}
		return lkerr.BackendError.Wrap(err)
	}
	return nil
}

func (p *Pod) Ls(_ context.Context, prefix string) ([]string, error) {
	return p.list(prefix, false)
}

func (p *Pod) Walk(_ context.Context, prefix string) ([]string, error) {
	return p.list(prefix, true)
}

func (p *Pod) list(prefix string, recursive bool) ([]string, error) {
	dir := p.path(prefix)
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no history yet: empty, not an error
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue // skip in-flight temp files
		}
		key := strings.TrimSuffix(prefix, "/") + "/" + entry.Name()
		if entry.IsDir() {
			if recursive {
				sub, err := p.list(key, true)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			} else {
				out = append(out, key)
			}
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
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
