package types

import (
	"encoding/json"
	"time"
)

// ArticleType distinguishes pre-resolution analysis articles from
// post-resolution results articles.
type ArticleType string

const (
	TypeAnalysis ArticleType = "analysis"
	TypeResults  ArticleType = "results"
)

// ArticleStatus tracks whether the underlying market is still open.
// The only legal transition is active -> resolved.
type ArticleStatus string

const (
	StatusActive   ArticleStatus = "active"
	StatusResolved ArticleStatus = "resolved"
)

// Candidate is a market as returned by the source API. Candidates are
// transient: they are scored and either turned into articles or dropped,
// never persisted directly.
type Candidate struct {
	Ticker       string    `json:"ticker"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle"`
	YesBid       float64   `json:"yes_bid"`
	LastPrice    float64   `json:"last_price"`
	Volume       int64     `json:"volume"`
	Volume24h    int64     `json:"volume_24h"`
	OpenInterest int64     `json:"open_interest"`
	CloseTime    time.Time `json:"close_time"`
	Result       string    `json:"result,omitempty"`

	// Score is filled in by the scorer; zero until ranked.
	Score float64 `json:"-"`
}

// Price returns the probability-like price used for scoring and articles:
// the yes bid when the book has one, otherwise the last trade, otherwise an
// even 50.
func (c Candidate) Price() float64 {
	if c.YesBid > 0 {
		return c.YesBid
	}
	if c.LastPrice > 0 {
		return c.LastPrice
	}
	return 50
}

// PricePoint is one sample of a market's price history.
type PricePoint struct {
	YesPrice float64   `json:"yes_price"`
	Time     time.Time `json:"ts"`
}

// Article is a generated piece of content tied to a market. The JSON field
// names are the persisted record layout shared by every storage backend and
// the read API.
type Article struct {
	ID                string        `json:"id"`
	Type              ArticleType   `json:"article_type"`
	Title             string        `json:"title"`
	Teaser            string        `json:"teaser"`
	Content           string        `json:"content"`
	MarketTicker      string        `json:"market_ticker"`
	MarketTitle       string        `json:"market_title"`
	Probability       float64       `json:"probability"`
	Outcome           string        `json:"outcome,omitempty"`
	GeneratedAt       time.Time     `json:"generated_at"`
	CloseTime         time.Time     `json:"close_time"`
	Volume            int64         `json:"volume"`
	Status            ArticleStatus `json:"status"`
	WordCount         int           `json:"word_count"`
	OriginalArticleID string        `json:"original_article_id,omitempty"`
	ResultsArticleID  string        `json:"results_article_id,omitempty"`

	// Extra holds fields outside the core layout. Only the sqlite backend
	// persists it; the other backends drop it.
	Extra map[string]json.RawMessage `json:"-"`
}

// IsResolvable reports whether a resolution pass should consider this
// article: an active analysis article whose close time is known and has
// passed.
func (a *Article) IsResolvable(now time.Time) bool {
	return a.Type == TypeAnalysis &&
		a.Status == StatusActive &&
		!a.CloseTime.IsZero() &&
		now.UTC().After(a.CloseTime.UTC())
}
