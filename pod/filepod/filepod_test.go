package filepod

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bertrandchenal/lakota/lkerr"
)

func newTestPod(t *testing.T) *Pod {
	t.Helper()
	dir, err := os.MkdirTemp("", "filepod-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return New(dir)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	if err := p.Write(ctx, "00/ab/cdef", []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(ctx, "00/ab/cdef")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("Read = %q, want %q", got, "payload")
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	if _, err := p.Read(ctx, "nope"); !lkerr.Has(lkerr.NotFound, err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	p.Write(ctx, "shard/data", []byte("x"))
	entries, err := os.ReadDir(filepath.Join(p.root, "shard"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "data" {
		t.Fatalf("directory contains %v, want exactly [data]", entries)
	}
}

func TestLsAndWalk(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	p.Write(ctx, "col/a", []byte("1"))
	p.Write(ctx, "col/b", []byte("2"))
	p.Write(ctx, "col/sub/c", []byte("3"))

	ls, err := p.Ls(ctx, "col")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(ls) != 3 {
		t.Fatalf("Ls = %v, want 3 entries", ls)
	}

	walked, err := p.Walk(ctx, "col")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(walked) != 3 {
		t.Fatalf("Walk = %v, want 3 leaf files", walked)
	}
}

func TestLsOnMissingPrefixIsEmpty(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	keys, err := p.Ls(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("Ls = %v, want empty", keys)
	}
}

func TestRmRemovesFile(t *testing.T) {
	ctx := context.Background()
	p := newTestPod(t)
	p.Write(ctx, "k", []byte("v"))
	if err := p.Rm(ctx, "k"); err != nil {
		t.Fatalf("Rm: %v", err)
	}
	if _, err := p.Read(ctx, "k"); !lkerr.Has(lkerr.NotFound, err) {
		t.Fatalf("expected NotFound after Rm, got %v", err)
	}
}
