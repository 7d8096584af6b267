// Package orchestrator owns the two periodic pipeline tasks: article
// generation and resolution checking. Failures are isolated per candidate or
// per article; one bad item never aborts the rest of a cycle.
package orchestrator

import (
	"context"
	"log"
	"time"

	"oddspress/internal/config"
	"oddspress/internal/market"
	"oddspress/internal/scorer"
	"oddspress/internal/store"
	"oddspress/internal/types"
)

// openMarketsFetchLimit is how many markets each generation cycle pulls
// before ranking down to the configured candidate pool.
const openMarketsFetchLimit = 100

// MarketSource is the slice of the market client the pipeline consumes.
type MarketSource interface {
	OpenMarkets(ctx context.Context, limit int) ([]types.Candidate, error)
	Market(ctx context.Context, ticker string) (*types.Candidate, error)
	Enrich(ctx context.Context, cand types.Candidate) market.Enriched
}

// ContentGenerator produces articles from enriched candidates.
type ContentGenerator interface {
	GenerateAnalysis(ctx context.Context, m market.Enriched) (*types.Article, error)
	GenerateResults(ctx context.Context, m market.Enriched, original *types.Article) (*types.Article, error)
}

// Orchestrator composes source, scorer, generator, and storage. All
// collaborators are passed in at construction; there is no global state.
type Orchestrator struct {
	cfg     config.PipelineConfig
	source  MarketSource
	gen     ContentGenerator
	backend store.Backend
	scorer  *scorer.Scorer

	tickerLocks *keyedMutex
	pause       time.Duration
	now         func() time.Time
}

// New creates an Orchestrator.
func New(cfg config.PipelineConfig, source MarketSource, gen ContentGenerator, backend store.Backend) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		source:      source,
		gen:         gen,
		backend:     backend,
		scorer:      scorer.New(cfg.ExcludedTickerPrefixes),
		tickerLocks: newKeyedMutex(),
		pause:       time.Duration(cfg.CallPauseMillis) * time.Millisecond,
		now:         time.Now,
	}
}

// RunGeneration executes one generation cycle and returns the number of
// newly stored articles. It is safe to call synchronously (the manual
// trigger) while a scheduled cycle runs: the per-ticker locks keep the dedup
// check honest.
func (o *Orchestrator) RunGeneration(ctx context.Context) (int, error) {
	cands, err := o.source.OpenMarkets(ctx, openMarketsFetchLimit)
	if err != nil {
		log.Printf("Failed to fetch markets: %v", err)
		return 0, nil
	}

	ranked := o.scorer.Rank(o.scorer.Filter(cands), o.cfg.MaxMarketsToFetch, o.now())
	if len(ranked) == 0 {
		log.Println("No candidate markets found, skipping generation")
		return 0, nil
	}

	existing, err := o.activeAnalysisTickers(ctx)
	if err != nil {
		log.Printf("Failed to list existing articles: %v", err)
		return 0, nil
	}

	generated := 0
	for _, cand := range ranked {
		if generated >= o.cfg.MaxArticlesPerCycle {
			break
		}
		if existing[cand.Ticker] {
			continue
		}

		if o.generateOne(ctx, cand) {
			generated++
		}

		if ctx.Err() != nil {
			break
		}
	}

	log.Printf("Generation cycle complete: %d new articles", generated)
	return generated, nil
}

// generateOne handles a single candidate end to end. Any failure is logged
// and reported as false; the caller moves on to the next candidate.
func (o *Orchestrator) generateOne(ctx context.Context, cand types.Candidate) bool {
	unlock := o.tickerLocks.Lock(cand.Ticker)
	defer unlock()

	// Recheck under the lock: a concurrent cycle may have stored an article
	// for this ticker after our snapshot.
	fresh, err := o.activeAnalysisTickers(ctx)
	if err != nil {
		log.Printf("Failed to recheck articles for %s: %v", cand.Ticker, err)
		return false
	}
	if fresh[cand.Ticker] {
		return false
	}

	enriched := o.source.Enrich(ctx, cand)
	o.interCallPause(ctx)

	article, err := o.gen.GenerateAnalysis(ctx, enriched)
	if err != nil {
		log.Printf("Failed to generate article for %s: %v", cand.Ticker, err)
		return false
	}
	o.interCallPause(ctx)

	if err := o.backend.UpsertArticle(ctx, *article); err != nil {
		log.Printf("Failed to store article for %s: %v", cand.Ticker, err)
		return false
	}

	log.Printf("Generated article for %s: %.50s...", cand.Ticker, article.Title)
	return true
}

// RunResolutionCheck executes one resolution cycle: it flips every expired
// active analysis article to resolved, then generates follow-up results
// articles for as many as the per-cycle bound allows. The status flip is
// committed before results generation is attempted and is never reverted.
func (o *Orchestrator) RunResolutionCheck(ctx context.Context) (int, error) {
	articles, err := o.backend.ListArticles(ctx)
	if err != nil {
		log.Printf("Failed to list articles for resolution check: %v", err)
		return 0, nil
	}

	resultsGenerated := 0
	for i := range articles {
		article := articles[i]
		if !article.IsResolvable(o.now()) {
			continue
		}

		article.Status = types.StatusResolved
		if err := o.backend.UpsertArticle(ctx, article); err != nil {
			log.Printf("Failed to mark %s resolved: %v", article.ID, err)
			continue
		}
		log.Printf("Marked article as resolved: %s", article.MarketTicker)

		if resultsGenerated >= o.cfg.MaxResultsPerCycle {
			continue
		}
		if o.generateResults(ctx, article) {
			resultsGenerated++
		}

		if ctx.Err() != nil {
			break
		}
	}

	log.Printf("Resolution check complete: %d results articles", resultsGenerated)
	return resultsGenerated, nil
}

// generateResults is best effort: its failure leaves the already-committed
// status flip in place and the original article without a results link.
func (o *Orchestrator) generateResults(ctx context.Context, original types.Article) bool {
	detail, err := o.source.Market(ctx, original.MarketTicker)
	if err != nil {
		log.Printf("Failed to fetch resolution data for %s: %v", original.MarketTicker, err)
		return false
	}
	o.interCallPause(ctx)

	if detail == nil || detail.Result == "" {
		// Close time passed but the market has not settled yet; a later
		// cycle will pick it up via the detail endpoint. The original stays
		// resolved either way.
		return false
	}

	enriched := market.Enriched{
		Candidate:         *detail,
		Probability:       detail.Price(),
		CloseTimeReadable: original.CloseTime.UTC().Format("January 2, 2006"),
	}

	results, err := o.gen.GenerateResults(ctx, enriched, &original)
	if err != nil {
		log.Printf("Failed to generate results for %s: %v", original.MarketTicker, err)
		return false
	}
	o.interCallPause(ctx)

	if err := o.backend.UpsertArticle(ctx, *results); err != nil {
		log.Printf("Failed to store results article for %s: %v", original.MarketTicker, err)
		return false
	}

	original.ResultsArticleID = results.ID
	if err := o.backend.UpsertArticle(ctx, original); err != nil {
		// The results article exists and carries original_article_id; only
		// the back link is missing.
		log.Printf("Failed to link results article on %s: %v", original.ID, err)
	}

	log.Printf("Generated results article for %s", original.MarketTicker)
	return true
}

func (o *Orchestrator) activeAnalysisTickers(ctx context.Context) (map[string]bool, error) {
	articles, err := o.backend.ListArticles(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make(map[string]bool)
	for i := range articles {
		if articles[i].Type == types.TypeAnalysis && articles[i].Status == types.StatusActive {
			tickers[articles[i].MarketTicker] = true
		}
	}
	return tickers, nil
}

// interCallPause spaces out consecutive external calls within a batch to
// avoid upstream throttling.
func (o *Orchestrator) interCallPause(ctx context.Context) {
	if o.pause <= 0 {
		return
	}
	timer := time.NewTimer(o.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
