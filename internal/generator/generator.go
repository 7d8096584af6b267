// Package generator turns enriched market candidates into articles by way of
// an LLM provider. Exactly one provider implementation is active per
// deployment, selected at construction from config.
package generator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"oddspress/internal/config"
	"oddspress/internal/market"
	"oddspress/internal/store"
	"oddspress/internal/types"
)

// ErrMalformedResponse indicates the provider's response did not contain the
// expected JSON object. The candidate is discarded for the cycle; no retry.
var ErrMalformedResponse = errors.New("malformed generation response")

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a system directive and a user prompt, returning the raw
	// response text.
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Generator builds prompts, invokes the provider, and assembles articles.
type Generator struct {
	provider Provider
	model    string
	minWords int
	audit    *store.ExchangeLog

	now func() time.Time
}

// New creates a Generator. audit may be nil to disable exchange logging.
func New(cfg config.GenerationConfig, provider Provider, audit *store.ExchangeLog) *Generator {
	return &Generator{
		provider: provider,
		model:    cfg.Model,
		minWords: cfg.MinWords,
		audit:    audit,
		now:      time.Now,
	}
}

// articlePayload is the JSON object every provider must return.
type articlePayload struct {
	Title   string `json:"title"`
	Teaser  string `json:"teaser"`
	Content string `json:"content"`
}

// GenerateAnalysis produces an analysis article for an open market.
func (g *Generator) GenerateAnalysis(ctx context.Context, m market.Enriched) (*types.Article, error) {
	payload, err := g.complete(ctx, analysisSystemPrompt, buildAnalysisPrompt(m))
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	article := &types.Article{
		ID:           ArticleID(m.Ticker, now),
		Type:         types.TypeAnalysis,
		Title:        payload.Title,
		Teaser:       payload.Teaser,
		Content:      payload.Content,
		MarketTicker: m.Ticker,
		MarketTitle:  m.Title,
		Probability:  m.Probability,
		GeneratedAt:  now,
		CloseTime:    m.CloseTime,
		Volume:       m.Volume,
		Status:       types.StatusActive,
		WordCount:    wordCount(payload.Content),
	}

	g.checkLength(article)
	return article, nil
}

// GenerateResults produces a post-resolution follow-up. original may be nil
// when the analysis article is no longer available; the link fields are then
// left unset.
func (g *Generator) GenerateResults(ctx context.Context, m market.Enriched, original *types.Article) (*types.Article, error) {
	outcome := m.Result
	if outcome == "" {
		// Settled markets occasionally omit the result field; fall back to
		// the side the final price implies.
		if m.Probability > 50 {
			outcome = "YES"
		} else {
			outcome = "NO"
		}
	}

	finalProb := m.Probability
	originalProb := finalProb
	if original != nil {
		originalProb = original.Probability
	}

	payload, err := g.complete(ctx, resultsSystemPrompt, buildResultsPrompt(m, outcome, finalProb, originalProb))
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	article := &types.Article{
		ID:           ResultsArticleID(m.Ticker, now),
		Type:         types.TypeResults,
		Title:        payload.Title,
		Teaser:       payload.Teaser,
		Content:      payload.Content,
		MarketTicker: m.Ticker,
		MarketTitle:  m.Title,
		Probability:  finalProb,
		Outcome:      outcome,
		GeneratedAt:  now,
		CloseTime:    m.CloseTime,
		Volume:       m.Volume,
		Status:       types.StatusResolved,
		WordCount:    wordCount(payload.Content),
	}
	if original != nil {
		article.OriginalArticleID = original.ID
	}

	g.checkLength(article)
	return article, nil
}

func (g *Generator) complete(ctx context.Context, system, user string) (articlePayload, error) {
	response, err := g.provider.Complete(ctx, system, user)

	if g.audit != nil {
		exchange := store.Exchange{
			Timestamp: g.now(),
			Provider:  g.provider.Name(),
			Model:     g.model,
			Prompt:    user,
			Response:  response,
		}
		if err != nil {
			exchange.Error = err.Error()
		}
		if _, auditErr := g.audit.Save(exchange); auditErr != nil {
			log.Printf("Failed to cache LLM exchange: %v", auditErr)
		}
	}

	if err != nil {
		return articlePayload{}, fmt.Errorf("generation call failed: %w", err)
	}

	return parseArticleResponse(response)
}

// checkLength logs undersized articles. They are returned and stored anyway;
// there is no regeneration pass.
func (g *Generator) checkLength(a *types.Article) {
	if g.minWords > 0 && a.WordCount < g.minWords {
		log.Printf("Article %s under length: %d words (minimum %d)", a.ID, a.WordCount, g.minWords)
	}
}

// parseArticleResponse extracts the article JSON object from raw provider
// output, stripping markdown code fences the model sometimes wraps it in.
func parseArticleResponse(text string) (articlePayload, error) {
	cleaned := stripCodeFences(text)

	var payload articlePayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		// Last resort: take everything between the outermost braces.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start >= 0 && end > start {
			if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err2 == nil {
				return payload, nil
			}
		}
		return articlePayload{}, fmt.Errorf("%w: %v (response was: %.300s)", ErrMalformedResponse, err, text)
	}
	return payload, nil
}

func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ArticleID derives a deterministic id from the ticker and the UTC hour
// bucket, so repeated generation within the same hour converges on one id
// while later hours get fresh ids.
func ArticleID(ticker string, t time.Time) string {
	bucket := t.UTC().Format("2006010215")
	sum := md5.Sum([]byte(ticker + "-" + bucket))
	return hex.EncodeToString(sum[:])[:12]
}

// ResultsArticleID derives the follow-up id by suffixing the analysis scheme.
func ResultsArticleID(ticker string, t time.Time) string {
	return ArticleID(ticker, t) + "-results"
}
