package series

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bertrandchenal/lakota/changelog"
	"github.com/bertrandchenal/lakota/lkerr"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/pod/memorypod"
	"github.com/bertrandchenal/lakota/schema"
	"github.com/bertrandchenal/lakota/segment"
)

func brusselsSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.Column{
		{Name: "timestamp", Type: schema.Timestamp, IsKey: true},
		{Name: "value", Type: schema.Float64},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func newTestSeries(t *testing.T, s *schema.Schema) *Series {
	t.Helper()
	store := objectstore.New(memorypod.New(), "objects", nil)
	tick := int64(1000)
	clock := func() time.Time {
		tick++
		return time.UnixMilli(tick)
	}
	cl := changelog.New(memorypod.New(), store, "clog", nil, changelog.WithClock(clock))
	return New("Brussels", s, store, cl, WithAuthor("alice"), WithSegmentRows(2))
}

func frameOf(t *testing.T, s *schema.Schema, days []int64, values []float64) *schema.Frame {
	t.Helper()
	ts := make([]schema.Value, len(days))
	vs := make([]schema.Value, len(values))
	for i := range days {
		ts[i] = days[i]
		vs[i] = values[i]
	}
	f, err := schema.NewFrame(s, map[string][]schema.Value{"timestamp": ts, "value": vs})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

// TestRoundTrip writes four rows and reads a prefix of them back.
func TestRoundTrip(t *testing.T) {
	s := brusselsSchema(t)
	sr := newTestSeries(t, s)
	ctx := context.Background()

	f := frameOf(t, s, []int64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	if _, notice, err := sr.Write(ctx, f); err != nil {
		t.Fatalf("Write: %v", err)
	} else if notice != nil {
		t.Fatalf("unexpected concurrency notice: %v", notice)
	}

	got, err := sr.Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(3)}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", got.Len())
	}
	for i, want := range []float64{1, 2, 3} {
		if got.Columns["value"][i] != want {
			t.Errorf("row %d = %v, want %v", i, got.Columns["value"][i], want)
		}
	}
}

// TestShadowOverwrite checks that a later, overlapping write shadows the
// rows it overlaps but leaves the untouched row intact.
func TestShadowOverwrite(t *testing.T) {
	s := brusselsSchema(t)
	sr := newTestSeries(t, s)
	ctx := context.Background()

	if _, _, err := sr.Write(ctx, frameOf(t, s, []int64{1, 2, 3, 4}, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if _, _, err := sr.Write(ctx, frameOf(t, s, []int64{2, 3, 4, 5}, []float64{10, 11, 12, 13})); err != nil {
		t.Fatalf("Write 2: %v", err)
	}

	got, err := sr.Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(5)}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", got.Len())
	}
	wantTS := []int64{1, 2, 3, 4, 5}
	wantVal := []float64{1, 10, 11, 12, 13}
	for i := range wantTS {
		if got.Columns["timestamp"][i] != wantTS[i] {
			t.Errorf("timestamp[%d] = %v, want %v", i, got.Columns["timestamp"][i], wantTS[i])
		}
		if got.Columns["value"][i] != wantVal[i] {
			t.Errorf("value[%d] = %v, want %v", i, got.Columns["value"][i], wantVal[i])
		}
	}
}

func TestReadEmptyHistoryReturnsEmptyFrame(t *testing.T) {
	s := brusselsSchema(t)
	sr := newTestSeries(t, s)
	ctx := context.Background()

	got, err := sr.Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(10)}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", got.Len())
	}
}

func TestWriteRejectsEmptyFrame(t *testing.T) {
	s := brusselsSchema(t)
	sr := newTestSeries(t, s)
	ctx := context.Background()
	empty := &schema.Frame{Schema: s, Columns: map[string][]schema.Value{
		"timestamp": {}, "value": {},
	}}
	if _, _, err := sr.Write(ctx, empty); err == nil {
		t.Fatalf("expected an error writing an empty frame")
	}
}

func TestForkedWriteSurfacesConcurrencyNotice(t *testing.T) {
	s := brusselsSchema(t)
	sr := newTestSeries(t, s)
	ctx := context.Background()

	if _, _, err := sr.Write(ctx, frameOf(t, s, []int64{1, 2}, []float64{1, 2})); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	_, ok, err := sr.Changelog.PickHead(ctx)
	if err != nil || !ok {
		t.Fatalf("PickHead: ok=%v err=%v", ok, err)
	}

	// Simulate a second writer racing Write 1 against the same (empty)
	// parent: commit a second root directly through the changelog, since
	// Series.Write always extends the head PickHead selects and cannot fork
	// the changelog on its own.
	entry := Entry{Series: sr.Name, Start: []schema.Value{int64(3)}, Stop: []schema.Value{int64(3)}}
	payload, err := MarshalPayload(Payload{Entries: []Entry{entry}})
	if err != nil {
		t.Fatalf("MarshalPayload: %v", err)
	}
	if _, err := sr.Changelog.Commit(ctx, nil, payload, "bob"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_, notice, err := sr.Write(ctx, frameOf(t, s, []int64{4, 5}, []float64{4, 5}))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if notice == nil {
		t.Fatalf("expected a concurrency notice after forking the changelog")
	}
}

// TestCorruptSegmentReadIsIntegrityError flips one byte of a stored
// segment column object and checks the next read reports corruption.
func TestCorruptSegmentReadIsIntegrityError(t *testing.T) {
	s := brusselsSchema(t)
	p := memorypod.New()
	store := objectstore.New(p, "objects", nil)
	cl := changelog.New(memorypod.New(), store, "clog", nil)
	sr := New("Brussels", s, store, cl, WithAuthor("alice"), WithSegmentRows(10))
	ctx := context.Background()

	if _, _, err := sr.Write(ctx, frameOf(t, s, []int64{1, 2, 3}, []float64{1, 2, 3})); err != nil {
		t.Fatalf("Write: %v", err)
	}

	head, ok, err := cl.PickHead(ctx)
	if err != nil || !ok {
		t.Fatalf("PickHead: ok=%v err=%v", ok, err)
	}
	payloadBytes, err := store.Get(ctx, head.PayloadDigest)
	if err != nil {
		t.Fatalf("Get payload: %v", err)
	}
	payload, err := UnmarshalPayload(payloadBytes)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	desc, err := segment.GetDescriptor(ctx, store, payload.Entries[0].Segments[0])
	if err != nil {
		t.Fatalf("GetDescriptor: %v", err)
	}
	col := desc.Columns["value"]

	keys, err := p.Walk(ctx, "objects")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	tail := col.Digest.String()[4:]
	var target string
	for _, k := range keys {
		if strings.HasSuffix(k, tail) {
			target = k
		}
	}
	if target == "" {
		t.Fatalf("no pod key found for column digest %s", col.Digest)
	}
	data, err := p.Read(ctx, target)
	if err != nil {
		t.Fatalf("Read column object: %v", err)
	}
	corrupt := append([]byte(nil), data...)
	corrupt[0] ^= 0xff
	if err := p.Write(ctx, target, corrupt); err != nil {
		t.Fatalf("Write corrupt bytes: %v", err)
	}

	_, err = sr.Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(3)}, nil)
	if !lkerr.Has(lkerr.IntegrityError, err) {
		t.Fatalf("Read after corruption = %v, want IntegrityError", err)
	}
}

// TestMissingSegmentReadIsIntegrityError: a revision pointing at a segment
// object that no longer resolves is corruption, not empty history.
func TestMissingSegmentReadIsIntegrityError(t *testing.T) {
	s := brusselsSchema(t)
	p := memorypod.New()
	store := objectstore.New(p, "objects", nil)
	cl := changelog.New(memorypod.New(), store, "clog", nil)
	sr := New("Brussels", s, store, cl, WithAuthor("alice"), WithSegmentRows(10))
	ctx := context.Background()

	if _, _, err := sr.Write(ctx, frameOf(t, s, []int64{1, 2, 3}, []float64{1, 2, 3})); err != nil {
		t.Fatalf("Write: %v", err)
	}

	head, ok, err := cl.PickHead(ctx)
	if err != nil || !ok {
		t.Fatalf("PickHead: ok=%v err=%v", ok, err)
	}
	payloadBytes, err := store.Get(ctx, head.PayloadDigest)
	if err != nil {
		t.Fatalf("Get payload: %v", err)
	}
	payload, err := UnmarshalPayload(payloadBytes)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	desc, err := segment.GetDescriptor(ctx, store, payload.Entries[0].Segments[0])
	if err != nil {
		t.Fatalf("GetDescriptor: %v", err)
	}
	col := desc.Columns["value"]

	keys, err := p.Walk(ctx, "objects")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	tail := col.Digest.String()[4:]
	for _, k := range keys {
		if strings.HasSuffix(k, tail) {
			if err := p.Rm(ctx, k); err != nil {
				t.Fatalf("Rm: %v", err)
			}
		}
	}

	_, err = sr.Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(3)}, nil)
	if !lkerr.Has(lkerr.IntegrityError, err) {
		t.Fatalf("Read with missing segment = %v, want IntegrityError", err)
	}
}
