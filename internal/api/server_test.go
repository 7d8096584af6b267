package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oddspress/internal/api"
	"oddspress/internal/config"
	"oddspress/internal/market"
	"oddspress/internal/orchestrator"
	"oddspress/internal/store"
	"oddspress/internal/types"
)

type staticSource struct {
	markets []types.Candidate
}

func (s *staticSource) OpenMarkets(ctx context.Context, limit int) ([]types.Candidate, error) {
	return s.markets, nil
}

func (s *staticSource) Market(ctx context.Context, ticker string) (*types.Candidate, error) {
	return nil, nil
}

func (s *staticSource) Enrich(ctx context.Context, cand types.Candidate) market.Enriched {
	return market.Enriched{Candidate: cand, Probability: cand.Price()}
}

type staticGenerator struct{}

func (staticGenerator) GenerateAnalysis(ctx context.Context, m market.Enriched) (*types.Article, error) {
	return &types.Article{
		ID:           "analysis-" + m.Ticker,
		Type:         types.TypeAnalysis,
		Title:        "Analysis of " + m.Ticker,
		MarketTicker: m.Ticker,
		Status:       types.StatusActive,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

func (staticGenerator) GenerateResults(ctx context.Context, m market.Enriched, original *types.Article) (*types.Article, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, markets []types.Candidate) (http.Handler, store.Backend) {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir(), 50, time.Hour)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	cfg := config.PipelineConfig{
		MaxMarketsToFetch:   10,
		MaxArticlesPerCycle: 5,
		MaxResultsPerCycle:  2,
	}
	orch := orchestrator.New(cfg, &staticSource{markets: markets}, staticGenerator{}, backend)
	return api.NewRouter(backend, orch), backend
}

func TestListArticlesEmptyReturnsEmptyArray(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "[]" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestListArticlesReturnsStored(t *testing.T) {
	router, backend := newTestRouter(t, nil)
	seed := types.Article{
		ID:           "a1",
		Type:         types.TypeAnalysis,
		Title:        "Fed cuts in December?",
		MarketTicker: "FED-25DEC",
		Status:       types.StatusActive,
		GeneratedAt:  time.Now().UTC(),
	}
	if err := backend.UpsertArticle(context.Background(), seed); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles", nil))

	var got []types.Article
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" || got[0].Type != types.TypeAnalysis {
		t.Fatalf("unexpected articles: %+v", got)
	}
}

func TestGetArticleNotFound(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles/missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "article not found" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestGetArticleByID(t *testing.T) {
	router, backend := newTestRouter(t, nil)
	seed := types.Article{
		ID:          "a2",
		Type:        types.TypeResults,
		Title:       "How the December cut played out",
		Outcome:     "YES",
		Status:      types.StatusResolved,
		GeneratedAt: time.Now().UTC(),
	}
	if err := backend.UpsertArticle(context.Background(), seed); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/articles/a2", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got types.Article
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if got.ID != "a2" || got.Outcome != "YES" || got.Status != types.StatusResolved {
		t.Fatalf("unexpected article: %+v", got)
	}
}

func TestRefreshRunsGeneration(t *testing.T) {
	markets := []types.Candidate{{
		Ticker:    "FED-25DEC",
		Title:     "Fed cuts in December?",
		LastPrice: 50,
		Volume:    5000,
		CloseTime: time.Now().UTC().Add(72 * time.Hour),
	}}
	router, backend := newTestRouter(t, markets)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["generated"] != 1 {
		t.Fatalf("expected 1 generated article, got %v", body)
	}

	if _, found, _ := backend.GetArticleByID(context.Background(), "analysis-FED-25DEC"); !found {
		t.Fatal("expected generated article stored")
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
