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

// Package s3pod implements the s3:// pod backend: lazy client
// initialization from aws-sdk-go-v2, path-style support for
// S3-compatible endpoints (MinIO, etc.), and PutObject/GetObject as the
// whole of the write/read path. S3 has no append; pod keys are written
// whole every time, which fits objects that never change once created.
// Payloads above the configured part size go through a multipart upload
// so one oversized column segment never has to fit a single PUT.
package s3pod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/docker/go-units"

	"github.com/bertrandchenal/lakota/lkerr"
)

// DefaultPartSize is the multipart threshold and part size used when
// Config.PartSize is empty. 5 MiB is the smallest part S3 accepts.
const DefaultPartSize = "16MiB"

// Config describes how to reach an S3-compatible bucket.
type Config struct {
	AccessKeyID     string // AWS or S3-compatible access key
	SecretAccessKey string // AWS or S3-compatible secret key
	Region          string // AWS region (e.g., "us-east-1")
	Endpoint        string // custom endpoint for S3-compatible storage (MinIO, etc.)
	Bucket          string // S3 bucket name
	Prefix          string // object key prefix
	ForcePathStyle  bool   // required for MinIO and similar
	PartSize        string // multipart threshold/part size, e.g. "16MiB"
}

// Pod is the S3-backed pod.
type Pod struct {
	cfg Config

	mu       sync.Mutex
	client   *s3.Client
	partSize int64
	opened   bool
}

// New returns an S3 pod for cfg. The AWS client is created lazily on
// first use so constructing a Pod never touches the network.
func New(cfg Config) *Pod {
	return &Pod{cfg: cfg}
}

func (p *Pod) ensureOpen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		return nil
	}

	sizeStr := p.cfg.PartSize
	if sizeStr == "" {
		sizeStr = DefaultPartSize
	}
	partSize, err := units.RAMInBytes(sizeStr)
	if err != nil {
		return lkerr.BackendError.New("s3pod: bad part size %q: %v", sizeStr, err)
	}
	p.partSize = partSize

	var opts []func(*awsconfig.LoadOptions) error
	if p.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(p.cfg.Region))
	}
	if p.cfg.AccessKeyID != "" && p.cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.cfg.AccessKeyID, p.cfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return lkerr.BackendError.Wrap(fmt.Errorf("s3pod: load config: %w", err))
	}

	var s3Opts []func(*s3.Options)
	if p.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(p.cfg.Endpoint) })
	}
	if p.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	p.client = s3.NewFromConfig(cfg, s3Opts...)
	p.opened = true
	return nil
}

func (p *Pod) key(name string) string {
	pfx := strings.TrimSuffix(p.cfg.Prefix, "/")
	if pfx == "" {
		return name
	}
	return pfx + "/" + name
}

func (p *Pod) Read(ctx context.Context, key string) ([]byte, error) {
	if err := p.ensureOpen(ctx); err != nil {
		return nil, err
	}
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, lkerr.NotFound.New("s3: %q", key)
		}
		return nil, lkerr.BackendError.Wrap(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lkerr.BackendError.Wrap(err)
	}
	return data, nil
}

func (p *Pod) Write(ctx context.Context, key string, data []byte) error {
	if err := p.ensureOpen(ctx); err != nil {
		return err
	}
	if existing, err := p.Read(ctx, key); err == nil && sameBytes(existing, data) {
		return nil // idempotent no-op
	}
	if int64(len(data)) > p.partSize {
		return p.writeMultipart(ctx, key, data)
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.key(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	return nil
}

// writeMultipart uploads data in partSize chunks. The object only becomes
// visible on CompleteMultipartUpload, so a crashed upload never exposes a
// partial write; a failed one is aborted to free the staged parts.
func (p *Pod) writeMultipart(ctx context.Context, key string, data []byte) error {
	fullKey := aws.String(p.key(key))
	create, err := p.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    fullKey,
	})
	if err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	var parts []types.CompletedPart
	for i, off := 0, int64(0); off < int64(len(data)); i, off = i+1, off+p.partSize {
		end := off + p.partSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		num := int32(i + 1)
		part, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(p.cfg.Bucket),
			Key:        fullKey,
			UploadId:   create.UploadId,
			PartNumber: aws.Int32(num),
			Body:       bytes.NewReader(data[off:end]),
		})
		if err != nil {
			_, _ = p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(p.cfg.Bucket),
				Key:      fullKey,
				UploadId: create.UploadId,
			})
			return lkerr.BackendError.Wrap(err)
		}
		parts = append(parts, types.CompletedPart{ETag: part.ETag, PartNumber: aws.Int32(num)})
	}
	_, err = p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(p.cfg.Bucket),
		Key:             fullKey,
		UploadId:        create.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	return nil
}

func (p *Pod) Rm(ctx context.Context, key string) error {
	if err := p.ensureOpen(ctx); err != nil {
		return err
	}
	if _, err := p.Read(ctx, key); err != nil {
		return err // propagates NotFound
	}
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(p.key(key)),
	})
	if err != nil {
		return lkerr.BackendError.Wrap(err)
	}
	return nil
}

func (p *Pod) Ls(ctx context.Context, prefix string) ([]string, error) {
	return p.list(ctx, prefix, "/")
}

func (p *Pod) Walk(ctx context.Context, prefix string) ([]string, error) {
	return p.list(ctx, prefix, "")
}

// list mirrors the directory-vs-recursive distinction with S3's
// Delimiter parameter: "/" groups keys one level deep (Ls), "" flattens
// every key under the prefix (Walk).
func (p *Pod) list(ctx context.Context, prefix, delimiter string) ([]string, error) {
	if err := p.ensureOpen(ctx); err != nil {
		return nil, err
	}
	fullPrefix := strings.TrimSuffix(p.key(prefix), "/") + "/"
	var out []string
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(p.cfg.Bucket),
		Prefix:    aws.String(fullPrefix),
		Delimiter: nonEmpty(delimiter),
	})
	base := strings.TrimSuffix(p.cfg.Prefix, "/")
	strip := func(s string) string {
		if base != "" && strings.HasPrefix(s, base+"/") {
			return strings.TrimPrefix(s, base+"/")
		}
		return s
	}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, lkerr.BackendError.Wrap(err)
		}
		for _, obj := range page.Contents {
			out = append(out, strip(aws.ToString(obj.Key)))
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, strings.TrimSuffix(strip(aws.ToString(cp.Prefix)), "/"))
		}
	}
	return out, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
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
