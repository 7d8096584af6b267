package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"oddspress/internal/types"
)

func newTestFileBackend(t *testing.T, cap int) *FileBackend {
	t.Helper()
	f, err := NewFileBackend(t.TempDir(), cap, time.Hour)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	return f
}

func testArticle(id string) types.Article {
	return types.Article{
		ID:           id,
		Type:         types.TypeAnalysis,
		Title:        "Title for " + id,
		MarketTicker: "TICKER-" + id,
		Probability:  55,
		GeneratedAt:  time.Now().UTC(),
		CloseTime:    time.Now().UTC().Add(48 * time.Hour),
		Status:       types.StatusActive,
		WordCount:    450,
	}
}

func TestFileSetGetDelete(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	if err := f.Set(ctx, "markets", []byte(`{"cached":true}`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found, err := f.Get(ctx, "markets")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected key to be present")
	}
	if string(value) != `{"cached":true}` {
		t.Fatalf("unexpected value: %s", value)
	}

	if err := f.Delete(ctx, "markets"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := f.Get(ctx, "markets"); found {
		t.Fatal("expected key to be absent after delete")
	}
}

func TestFileGetMissingKey(t *testing.T) {
	f := newTestFileBackend(t, 50)

	_, found, err := f.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Fatal("expected missing key to be absent")
	}
}

func TestFileTTLExpiry(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	current := time.Now()
	f.now = func() time.Time { return current }

	if err := f.Set(ctx, "ephemeral", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, found, _ := f.Get(ctx, "ephemeral"); !found {
		t.Fatal("expected fresh key to be present")
	}

	current = current.Add(2 * time.Minute)
	if _, found, _ := f.Get(ctx, "ephemeral"); found {
		t.Fatal("expected expired key to be absent")
	}

	// The expired entry is also purged from disk.
	current = current.Add(-2 * time.Minute)
	if _, found, _ := f.Get(ctx, "ephemeral"); found {
		t.Fatal("expected purged key to stay absent")
	}
}

func TestFileUpsertIdempotent(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	a := testArticle("Z")
	a.Title = "first title"
	if err := f.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	a.Title = "second title"
	if err := f.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("second UpsertArticle failed: %v", err)
	}

	articles, err := f.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected exactly 1 article, got %d", len(articles))
	}
	if articles[0].Title != "second title" {
		t.Fatalf("expected replacement title, got %q", articles[0].Title)
	}
}

func TestFileUpsertReplacesInPlace(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := f.UpsertArticle(ctx, testArticle(id)); err != nil {
			t.Fatalf("UpsertArticle failed: %v", err)
		}
	}

	// Re-upserting "b" keeps its position rather than moving it to the front.
	updated := testArticle("b")
	updated.Status = types.StatusResolved
	if err := f.UpsertArticle(ctx, updated); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	articles, err := f.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	wantOrder := []string{"c", "b", "a"}
	for i, want := range wantOrder {
		if articles[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, articles[i].ID)
		}
	}
	if articles[1].Status != types.StatusResolved {
		t.Fatal("expected replaced article to carry new status")
	}
}

func TestFileCapacityEviction(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	for i := 0; i < 55; i++ {
		if err := f.UpsertArticle(ctx, testArticle(fmt.Sprintf("id-%02d", i))); err != nil {
			t.Fatalf("UpsertArticle %d failed: %v", i, err)
		}
	}

	articles, err := f.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 50 {
		t.Fatalf("expected 50 articles after eviction, got %d", len(articles))
	}

	// Most recent first: id-54 down to id-05. The first five upserts were
	// evicted oldest-first.
	if articles[0].ID != "id-54" {
		t.Fatalf("expected most recent article first, got %s", articles[0].ID)
	}
	if articles[49].ID != "id-05" {
		t.Fatalf("expected id-05 as oldest retained article, got %s", articles[49].ID)
	}

	if _, found, _ := f.GetArticleByID(ctx, "id-00"); found {
		t.Fatal("expected evicted article to be absent")
	}
}

func TestFileGetArticleByID(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	if err := f.UpsertArticle(ctx, testArticle("lookup")); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	a, found, err := f.GetArticleByID(ctx, "lookup")
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if !found || a.ID != "lookup" {
		t.Fatalf("unexpected lookup result: found=%v article=%+v", found, a)
	}

	if _, found, _ := f.GetArticleByID(ctx, "missing"); found {
		t.Fatal("expected missing article to be absent")
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	f1, err := NewFileBackend(dir, 50, time.Hour)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	if err := f1.UpsertArticle(ctx, testArticle("persisted")); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	f2, err := NewFileBackend(dir, 50, time.Hour)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, found, _ := f2.GetArticleByID(ctx, "persisted"); !found {
		t.Fatal("expected article to survive a reopen")
	}
}

func TestFileConcurrentUpserts(t *testing.T) {
	f := newTestFileBackend(t, 50)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- f.UpsertArticle(ctx, testArticle(fmt.Sprintf("c-%d", i)))
		}(i)
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent UpsertArticle failed: %v", err)
		}
	}

	articles, err := f.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 20 {
		t.Fatalf("expected 20 articles, got %d", len(articles))
	}

	seen := make(map[string]bool)
	for _, a := range articles {
		if seen[a.ID] {
			t.Fatalf("duplicate id in collection: %s", a.ID)
		}
		seen[a.ID] = true
	}
}
