package sync

import (
	"context"
	"testing"

	"github.com/bertrandchenal/lakota/repo"
	"github.com/bertrandchenal/lakota/schema"
)

// TestPushUnderDifferentName: local declares "rainfall", remote declares
// "precipitation"; pushing rainfall's data into precipitation makes it
// readable there under the new name.
func TestPushUnderDifferentName(t *testing.T) {
	ctx := context.Background()
	local, err := repo.Open([]string{"memory://"})
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	remote, err := repo.Open([]string{"memory://"})
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}

	s := testSchema(t)
	rainfall, err := local.CreateCollection(ctx, "rainfall", s)
	if err != nil {
		t.Fatalf("CreateCollection rainfall: %v", err)
	}
	precipitation, err := remote.CreateCollection(ctx, "precipitation", s)
	if err != nil {
		t.Fatalf("CreateCollection precipitation: %v", err)
	}

	if _, _, err := rainfall.Series("Brussels").Write(ctx, frame(t, s, []int64{1, 2}, []float64{3, 4})); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := PushCollection(ctx, rainfall, precipitation); err != nil {
		t.Fatalf("PushCollection: %v", err)
	}

	got, err := precipitation.Series("Brussels").Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(2)}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	for i, want := range []float64{3, 4} {
		if got.Columns["value"][i] != want {
			t.Errorf("value[%d] = %v, want %v", i, got.Columns["value"][i], want)
		}
	}
}

// TestPullRepoLearnsNewCollectionFromRegistry verifies the registry itself
// syncs first, so a collection declared only on remote becomes visible
// (and its data pullable) on local after a single PullRepo call.
func TestPullRepoLearnsNewCollectionFromRegistry(t *testing.T) {
	ctx := context.Background()
	local, err := repo.Open([]string{"memory://"})
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	remote, err := repo.Open([]string{"memory://"})
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}

	s := testSchema(t)
	weather, err := remote.CreateCollection(ctx, "weather", s)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, _, err := weather.Series("Brussels").Write(ctx, frame(t, s, []int64{1}, []float64{5})); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed, err := PullRepo(ctx, local, remote)
	if err != nil {
		t.Fatalf("PullRepo: %v", err)
	}
	if !changed {
		t.Fatalf("expected PullRepo to report work done")
	}

	names, err := local.Ls(ctx)
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(names) != 1 || names[0] != "weather" {
		t.Fatalf("Ls = %v, want [weather]", names)
	}

	col, err := local.Collection(ctx, "weather")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	got, err := col.Series("Brussels").Read(ctx, []schema.Value{int64(1)}, []schema.Value{int64(1)}, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", got.Len())
	}
}
