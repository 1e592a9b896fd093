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

package repo

import (
	"strings"

	"go.uber.org/zap"

	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/pod"
	"github.com/bertrandchenal/lakota/pod/cachedpod"
	"github.com/bertrandchenal/lakota/pod/filepod"
	"github.com/bertrandchenal/lakota/pod/memorypod"
	"github.com/bertrandchenal/lakota/pod/s3pod"
)

// openPod resolves a single pod URI: "file:///path",
// "s3://bucket[/prefix]", or "memory://".
func openPod(uri string) (pod.Pod, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return filepod.New(strings.TrimPrefix(uri, "file://")), nil
	case strings.HasPrefix(uri, "memory://"):
		return memorypod.New(), nil
	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		return s3pod.New(s3pod.Config{Bucket: bucket, Prefix: prefix}), nil
	default:
		return nil, lkerr.SchemaError.New("repo: unrecognized pod URI scheme %q", uri)
	}
}

// openChain resolves one or more URIs into a single Pod: a single URI is
// returned as-is; several are composed through cachedpod with the first
// as the local cache and the last as authoritative.
func openChain(uris []string, log *zap.Logger) (pod.Pod, error) {
	if len(uris) == 0 {
		return nil, lkerr.SchemaError.New("repo: no URIs given")
	}
	if len(uris) == 1 {
		return openPod(uris[0])
	}
	pods := make([]pod.Pod, len(uris))
	for i, uri := range uris {
		p, err := openPod(uri)
		if err != nil {
			return nil, err
		}
		pods[i] = p
	}
	return cachedpod.New(pods, log), nil
}
