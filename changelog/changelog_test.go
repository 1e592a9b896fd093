package changelog

import (
	"context"
	"testing"
	"time"

	"github.com/bertrandchenal/lakota/digest"
	"github.com/bertrandchenal/lakota/objectstore"
	"github.com/bertrandchenal/lakota/pod/memorypod"
)

func testChangelog(t *testing.T, ms int64) *Changelog {
	t.Helper()
	store := objectstore.New(memorypod.New(), "objects", nil)
	tick := ms
	clock := func() time.Time {
		tick++
		return time.UnixMilli(tick)
	}
	return New(memorypod.New(), store, "clog", nil, WithClock(clock))
}

func TestCommitDefaultsAuthorWhenEmpty(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	if _, err := c.Commit(ctx, nil, []byte("payload"), ""); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	log, err := c.Log(ctx)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("Log returned %d revisions, want 1", len(log))
	}
	if log[0].Author == "" {
		t.Fatalf("expected a generated author token, got empty string")
	}
}

func TestImportPreservesChildDigest(t *testing.T) {
	ctx := context.Background()
	src := testChangelog(t, 1000)
	rootChild, err := src.Commit(ctx, nil, []byte("root"), "alice")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	log, _ := src.Log(ctx)
	root := log[0]

	dst := testChangelog(t, 5000)
	if err := dst.Import(ctx, root, 0); err != nil {
		t.Fatalf("Import: %v", err)
	}

	dstLog, err := dst.Log(ctx)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(dstLog) != 1 {
		t.Fatalf("Log returned %d revisions, want 1", len(dstLog))
	}
	if dstLog[0].ChildDigest() != rootChild {
		t.Fatalf("imported child digest mismatch")
	}
	if dstLog[0].Epoch != root.Epoch {
		t.Fatalf("Import changed the epoch: got %d, want %d", dstLog[0].Epoch, root.Epoch)
	}
}

func TestCommitLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	child1, err := c.Commit(ctx, nil, []byte("payload-1"), "alice")
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	log, err := c.Log(ctx)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 1 {
		t.Fatalf("Log returned %d revisions, want 1", len(log))
	}
	if log[0].ChildDigest() != child1 {
		t.Fatalf("logged child digest mismatch")
	}
	if !log[0].ParentDigest.IsZero() {
		t.Fatalf("root revision should have a zero parent digest")
	}
}

func TestLeafsAndPickHeadSingleChain(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	child1, err := c.Commit(ctx, nil, []byte("p1"), "alice")
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	log, _ := c.Log(ctx)
	rev1 := log[0]
	if rev1.ChildDigest() != child1 {
		t.Fatalf("unexpected child digest")
	}
	child2, err := c.Commit(ctx, &rev1, []byte("p2"), "alice")
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	heads, err := c.Leafs(ctx)
	if err != nil {
		t.Fatalf("Leafs: %v", err)
	}
	if len(heads) != 1 {
		t.Fatalf("Leafs returned %d heads, want 1", len(heads))
	}
	if heads[0].ChildDigest() != child2 {
		t.Fatalf("head mismatch")
	}

	head, ok, err := c.PickHead(ctx)
	if err != nil || !ok {
		t.Fatalf("PickHead: ok=%v err=%v", ok, err)
	}
	if head.ChildDigest() != child2 {
		t.Fatalf("PickHead returned the wrong head")
	}
}

func TestPickHeadEmptyChangelog(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)
	_, ok, err := c.PickHead(ctx)
	if err != nil {
		t.Fatalf("PickHead: %v", err)
	}
	if ok {
		t.Fatalf("PickHead should report no head on an empty changelog")
	}
}

func TestForkProducesTwoLeafs(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	rootChild, err := c.Commit(ctx, nil, []byte("root"), "alice")
	if err != nil {
		t.Fatalf("Commit root: %v", err)
	}
	log, _ := c.Log(ctx)
	root := log[0]
	if root.ChildDigest() != rootChild {
		t.Fatalf("unexpected root digest")
	}

	if _, err := c.Commit(ctx, &root, []byte("branch-a"), "alice"); err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	if _, err := c.Commit(ctx, &root, []byte("branch-b"), "bob"); err != nil {
		t.Fatalf("Commit B: %v", err)
	}

	heads, err := c.Leafs(ctx)
	if err != nil {
		t.Fatalf("Leafs: %v", err)
	}
	if len(heads) != 2 {
		t.Fatalf("Leafs returned %d heads, want 2", len(heads))
	}
}

func TestAncestorsAndWalk(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	rootChild, _ := c.Commit(ctx, nil, []byte("root"), "alice")
	log, _ := c.Log(ctx)
	root := log[0]
	_ = rootChild

	midChild, err := c.Commit(ctx, &root, []byte("mid"), "alice")
	if err != nil {
		t.Fatalf("Commit mid: %v", err)
	}
	log, _ = c.Log(ctx)
	var mid Revision
	for _, r := range log {
		if r.ChildDigest() == midChild {
			mid = r
		}
	}

	tipChild, err := c.Commit(ctx, &mid, []byte("tip"), "alice")
	if err != nil {
		t.Fatalf("Commit tip: %v", err)
	}

	ancestors, err := c.Ancestors(ctx, tipChild)
	if err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	if len(ancestors) != 3 {
		t.Fatalf("Ancestors(tip) returned %d revisions, want 3", len(ancestors))
	}

	delta, err := c.Walk(ctx, midChild, tipChild)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(delta) != 1 {
		t.Fatalf("Walk(mid, tip) returned %d revisions, want 1", len(delta))
	}
	if delta[0].ChildDigest() != tipChild {
		t.Fatalf("Walk(mid, tip) returned the wrong revision")
	}
}

func TestLowestCommonAncestorAfterFork(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	rootChild, _ := c.Commit(ctx, nil, []byte("root"), "alice")
	log, _ := c.Log(ctx)
	root := log[0]

	aChild, err := c.Commit(ctx, &root, []byte("branch-a"), "alice")
	if err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	bChild, err := c.Commit(ctx, &root, []byte("branch-b"), "bob")
	if err != nil {
		t.Fatalf("Commit B: %v", err)
	}

	lca, err := c.LowestCommonAncestor(ctx, []digest.Digest{aChild, bChild})
	if err != nil {
		t.Fatalf("LowestCommonAncestor: %v", err)
	}
	if lca != rootChild {
		t.Fatalf("LowestCommonAncestor = %s, want root %s", lca, rootChild)
	}
}

func TestLowestCommonAncestorWithNoHistory(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)
	lca, err := c.LowestCommonAncestor(ctx, []digest.Digest{digest.Zero, digest.Zero})
	if err != nil {
		t.Fatalf("LowestCommonAncestor: %v", err)
	}
	if !lca.IsZero() {
		t.Fatalf("LowestCommonAncestor of two roots should be zero, got %s", lca)
	}
}

func TestPackPreservesLogAndLeafs(t *testing.T) {
	ctx := context.Background()
	c := testChangelog(t, 1000)

	rootChild, _ := c.Commit(ctx, nil, []byte("root"), "alice")
	log, _ := c.Log(ctx)
	root := log[0]
	tipChild, err := c.Commit(ctx, &root, []byte("tip"), "alice")
	if err != nil {
		t.Fatalf("Commit tip: %v", err)
	}

	beforeLog, err := c.Log(ctx)
	if err != nil {
		t.Fatalf("Log before pack: %v", err)
	}

	if err := c.Pack(ctx); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	afterLog, err := c.Log(ctx)
	if err != nil {
		t.Fatalf("Log after pack: %v", err)
	}
	if len(afterLog) != len(beforeLog) {
		t.Fatalf("Log after pack has %d entries, want %d", len(afterLog), len(beforeLog))
	}

	heads, err := c.Leafs(ctx)
	if err != nil {
		t.Fatalf("Leafs after pack: %v", err)
	}
	if len(heads) != 1 || heads[0].ChildDigest() != tipChild {
		t.Fatalf("Leafs after pack did not return the tip")
	}
	_ = rootChild
}
