package objectstore

import (
	"context"
	"testing"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/pod/memorypod"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(memorypod.New(), "00", nil)
	d, err := s.Put(ctx, []byte("segment bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "segment bytes" {
		t.Fatalf("Get = %q, want %q", got, "segment bytes")
	}
}

func TestDigestOfGetMatchesDigest(t *testing.T) {
	ctx := context.Background()
	s := New(memorypod.New(), "00", nil)
	d, _ := s.Put(ctx, []byte("payload"))
	data, _ := s.Get(ctx, d)
	if digest.Of(data) != d {
		t.Fatalf("digest(get(d)) != d")
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New(memorypod.New(), "00", nil)
	_, err := s.Get(ctx, digest.Of([]byte("never written")))
	if !lkerr.Has(lkerr.NotFound, err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetCorruptedPayloadIsIntegrityError(t *testing.T) {
	ctx := context.Background()
	p := memorypod.New()
	s := New(p, "00", nil)
	d, _ := s.Put(ctx, []byte("original"))
	// corrupt the stored bytes directly through the pod, bypassing Put
	p.Write(ctx, key("00", d), []byte("corrupted"))
	_, err := s.Get(ctx, d)
	if !lkerr.Has(lkerr.IntegrityError, err) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(memorypod.New(), "00", nil)
	d1, err1 := s.Put(ctx, []byte("same"))
	d2, err2 := s.Put(ctx, []byte("same"))
	if err1 != nil || err2 != nil {
		t.Fatalf("Put errors: %v, %v", err1, err2)
	}
	if d1 != d2 {
		t.Fatalf("Put of identical bytes should yield the same digest")
	}
}

func TestHas(t *testing.T) {
	ctx := context.Background()
	s := New(memorypod.New(), "00", nil)
	d, _ := s.Put(ctx, []byte("present"))
	if !s.Has(ctx, d) {
		t.Fatalf("Has should report true for a stored digest")
	}
	if s.Has(ctx, digest.Of([]byte("absent"))) {
		t.Fatalf("Has should report false for an absent digest")
	}
}
