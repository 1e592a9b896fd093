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

package changelog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
)

// epochMask keeps the epoch to a 44-bit millisecond counter, rendered
// as 11 hex digits.
const epochMask = (int64(1) << 44) - 1

// filenameDigestLen is the truncated digest width used in changelog
// filenames; the full digest always lives in the revision body, so
// truncation here is purely an addressing convenience for prefix scans.
const filenameDigestLen = 8

// Revision is one edge in a collection's changelog DAG: a parent pointer,
// a payload digest, the epoch it was written at, and the author token
// used to break ties.
type Revision struct {
	Epoch         int64         `json:"epoch"`
	ParentDigest  digest.Digest `json:"parent_digest"`
	PayloadDigest digest.Digest `json:"payload_digest"`
	Author        string        `json:"author"`
}

// ChildDigest is this revision's own identity: a digest over its payload
// digest and author token. The revisions a merge commits have distinct
// ParentDigest but identical ChildDigest.
func (r Revision) ChildDigest() digest.Digest {
	return digest.OfParts(r.PayloadDigest[:], []byte(r.Author))
}

func encodeEpoch(epoch int64) string {
	return fmt.Sprintf("%011x", epoch&epochMask)
}

// encodeFilename builds the full filename given both a revision and the
// epoch of the parent it is built on (the zero epoch for a root revision).
func encodeFilename(parentEpoch int64, r Revision) string {
	child := r.ChildDigest()
	return fmt.Sprintf("%s-%s.%s-%s",
		encodeEpoch(parentEpoch), r.ParentDigest.Head(filenameDigestLen),
		encodeEpoch(r.Epoch), child.Head(filenameDigestLen))
}

// body is the JSON-serialized form stored at a changelog filename. It
// carries the full digests; the filename's truncated digests exist only
// to make parent discovery a prefix scan.
type body struct {
	Epoch         int64  `json:"epoch"`
	ParentDigest  string `json:"parent_digest"`
	PayloadDigest string `json:"payload_digest"`
	Author        string `json:"author"`
}

func marshalRevision(r Revision) ([]byte, error) {
	b := body{
		Epoch:         r.Epoch,
		ParentDigest:  r.ParentDigest.String(),
		PayloadDigest: r.PayloadDigest.String(),
		Author:        r.Author,
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, lkerr.IntegrityError.Wrap(err)
	}
	return data, nil
}

func unmarshalRevision(data []byte) (Revision, error) {
	var b body
	if err := json.Unmarshal(data, &b); err != nil {
		return Revision{}, lkerr.IntegrityError.New("malformed revision body: %v", err)
	}
	parent, err := digest.Parse(b.ParentDigest)
	if err != nil {
		return Revision{}, lkerr.IntegrityError.New("malformed revision parent digest: %v", err)
	}
	payload, err := digest.Parse(b.PayloadDigest)
	if err != nil {
		return Revision{}, lkerr.IntegrityError.New("malformed revision payload digest: %v", err)
	}
	return Revision{
		Epoch:         b.Epoch,
		ParentDigest:  parent,
		PayloadDigest: payload,
		Author:        b.Author,
	}, nil
}

// isFilenameKey reports whether key (with prefix already stripped) looks
// like a changelog revision filename, as opposed to a packed-log object
// living under a different sub-prefix.
func isFilenameKey(key string) bool {
	dot := strings.IndexByte(key, '.')
	dash := strings.IndexByte(key, '-')
	return dot > 0 && dash > 0 && dash < dot
}
