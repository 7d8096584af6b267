package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"oddspress/internal/types"
)

func newTestSQLiteBackend(t *testing.T, cap int) *SQLiteBackend {
	t.Helper()
	s, err := NewSQLiteBackend(t.TempDir(), cap, time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteKV(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	if err := s.Set(ctx, "markets", []byte(`[1,2,3]`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, found, err := s.Get(ctx, "markets")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || string(value) != `[1,2,3]` {
		t.Fatalf("unexpected get result: found=%v value=%s", found, value)
	}

	// Overwrite under the same key.
	if err := s.Set(ctx, "markets", []byte(`[4]`), time.Hour); err != nil {
		t.Fatalf("overwrite Set failed: %v", err)
	}
	value, _, _ = s.Get(ctx, "markets")
	if string(value) != `[4]` {
		t.Fatalf("expected overwritten value, got %s", value)
	}

	if err := s.Delete(ctx, "markets"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := s.Get(ctx, "markets"); found {
		t.Fatal("expected key absent after delete")
	}
}

func TestSQLiteKVExpiry(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	if err := s.Set(ctx, "blip", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, found, _ := s.Get(ctx, "blip"); found {
		t.Fatal("expected expired key to be absent")
	}
}

func TestSQLiteUpsertIdempotent(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	a := testArticle("Z")
	a.Title = "first title"
	if err := s.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	a.Title = "second title"
	if err := s.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("second UpsertArticle failed: %v", err)
	}

	articles, err := s.ListArticles(ctx)
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

func TestSQLiteOrderingMostRecentFirst(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.UpsertArticle(ctx, testArticle(id)); err != nil {
			t.Fatalf("UpsertArticle failed: %v", err)
		}
	}

	// Replacing "a" keeps its position at the back.
	updated := testArticle("a")
	updated.Status = types.StatusResolved
	if err := s.UpsertArticle(ctx, updated); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	articles, err := s.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	wantOrder := []string{"c", "b", "a"}
	for i, want := range wantOrder {
		if articles[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, articles[i].ID)
		}
	}
}

func TestSQLiteReadTimeCapKeepsOldRows(t *testing.T) {
	s := newTestSQLiteBackend(t, 5)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := s.UpsertArticle(ctx, testArticle(fmt.Sprintf("id-%d", i))); err != nil {
			t.Fatalf("UpsertArticle failed: %v", err)
		}
	}

	articles, err := s.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles failed: %v", err)
	}
	if len(articles) != 5 {
		t.Fatalf("expected list bounded to 5, got %d", len(articles))
	}
	if articles[0].ID != "id-7" {
		t.Fatalf("expected most recent first, got %s", articles[0].ID)
	}

	// Unlike the write-capped backends, rows beyond the cap stay reachable.
	if _, found, _ := s.GetArticleByID(ctx, "id-0"); !found {
		t.Fatal("expected old row to stay reachable by id")
	}
}

func TestSQLiteExtraFieldsRoundTrip(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	a := testArticle("ext")
	a.Extra = map[string]json.RawMessage{
		"editor_note": json.RawMessage(`"pinned"`),
		"revision":    json.RawMessage(`3`),
	}
	if err := s.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	got, found, err := s.GetArticleByID(ctx, "ext")
	if err != nil {
		t.Fatalf("GetArticleByID failed: %v", err)
	}
	if !found {
		t.Fatal("expected article present")
	}
	if string(got.Extra["editor_note"]) != `"pinned"` {
		t.Fatalf("extra editor_note did not round-trip: %s", got.Extra["editor_note"])
	}
	if string(got.Extra["revision"]) != `3` {
		t.Fatalf("extra revision did not round-trip: %s", got.Extra["revision"])
	}
}

func TestSQLiteFullArticleRoundTrip(t *testing.T) {
	s := newTestSQLiteBackend(t, 50)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	a := types.Article{
		ID:                "full",
		Type:              types.TypeResults,
		Title:             "The Fed Held Rates",
		Teaser:            "It saw it coming.",
		Content:           "Body text.",
		MarketTicker:      "FED-25DEC",
		MarketTitle:       "Fed decision",
		Probability:       88,
		Outcome:           "YES",
		GeneratedAt:       now,
		CloseTime:         now.Add(-time.Hour),
		Volume:            12345,
		Status:            types.StatusResolved,
		WordCount:         2,
		OriginalArticleID: "orig-id",
	}
	if err := s.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("UpsertArticle failed: %v", err)
	}

	got, found, err := s.GetArticleByID(ctx, "full")
	if err != nil || !found {
		t.Fatalf("GetArticleByID failed: found=%v err=%v", found, err)
	}
	if got.Type != types.TypeResults || got.Status != types.StatusResolved {
		t.Fatalf("enum fields did not round-trip: %+v", got)
	}
	if got.Outcome != "YES" || got.OriginalArticleID != "orig-id" {
		t.Fatalf("optional fields did not round-trip: %+v", got)
	}
	if !got.GeneratedAt.Equal(now) {
		t.Fatalf("generated_at did not round-trip: %v vs %v", got.GeneratedAt, now)
	}
	if !got.CloseTime.Equal(now.Add(-time.Hour)) {
		t.Fatalf("close_time did not round-trip: %v", got.CloseTime)
	}
}
