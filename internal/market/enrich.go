package market

import (
	"context"
	"fmt"
	"time"

	"oddspress/internal/types"
)

// Enriched is a candidate plus the derived context an article prompt needs.
type Enriched struct {
	types.Candidate

	Probability       float64
	CloseTimeReadable string
	DaysUntilClose    int
	HasDaysUntilClose bool

	History        []types.PricePoint
	PriceChange    float64
	HasPriceChange bool
}

// Enrich derives probability and close-time context and, best effort, recent
// price movement from the history endpoint. A history fetch failure degrades
// the enrichment rather than failing it.
func (c *Client) Enrich(ctx context.Context, cand types.Candidate) Enriched {
	e := Enriched{
		Candidate:         cand,
		Probability:       cand.Price(),
		CloseTimeReadable: "Unknown",
	}

	if !cand.CloseTime.IsZero() {
		e.CloseTimeReadable = cand.CloseTime.UTC().Format("January 2, 2006 at 3:04 PM UTC")
		e.DaysUntilClose = int(time.Until(cand.CloseTime).Hours() / 24)
		e.HasDaysUntilClose = true
	}

	if cand.Ticker != "" {
		history, err := c.MarketHistory(ctx, cand.Ticker, 50)
		if err == nil && len(history) >= 2 {
			e.History = history
			// History is newest first.
			e.PriceChange = history[0].YesPrice - history[len(history)-1].YesPrice
			e.HasPriceChange = true
		}
	}

	return e
}

// PriceMovement formats recent movement for prompts.
func (e Enriched) PriceMovement() string {
	if !e.HasPriceChange {
		return "No recent data available"
	}
	direction := "up"
	change := e.PriceChange
	if change < 0 {
		direction = "down"
		change = -change
	}
	return fmt.Sprintf("%s %.0f percentage points recently", direction, change)
}

// SubtitleOrTitle returns the subtitle when present, else the title.
func (e Enriched) SubtitleOrTitle() string {
	if e.Subtitle != "" {
		return e.Subtitle
	}
	return e.Title
}
