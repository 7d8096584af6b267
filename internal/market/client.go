// Package market is the client for the prediction-market source API. It
// exposes the grouped (events), listing (markets), detail, history, and
// keyword search surfaces the pipeline consumes. Methods return errors; the
// orchestrator decides whether an error means skip, empty, or abort.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"oddspress/internal/config"
	"oddspress/internal/types"
)

// Client talks to the market source API.
type Client struct {
	baseURL  string
	email    string
	password string
	client   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a market client from config. Credentials are optional: without
// them only public endpoints are used.
func New(cfg config.MarketConfig) *Client {
	return &Client{
		baseURL:  cfg.APIBase,
		email:    cfg.Email,
		password: cfg.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// marketJSON is the wire shape of a market object.
type marketJSON struct {
	Ticker       string  `json:"ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	YesBid       float64 `json:"yes_bid"`
	LastPrice    float64 `json:"last_price"`
	Volume       int64   `json:"volume"`
	Volume24h    int64   `json:"volume_24h"`
	OpenInterest int64   `json:"open_interest"`
	CloseTime    string  `json:"close_time"`
	Result       string  `json:"result"`
}

type marketsResponse struct {
	Markets []marketJSON `json:"markets"`
	Cursor  string       `json:"cursor"`
}

type marketResponse struct {
	Market marketJSON `json:"market"`
}

type historyResponse struct {
	History []historyPointJSON `json:"history"`
}

type historyPointJSON struct {
	YesPrice float64 `json:"yes_price"`
	TS       int64   `json:"ts"`
}

// Event is a top-level market grouping (e.g. an election night).
type Event struct {
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Category    string `json:"category"`
}

type eventsResponse struct {
	Events []Event `json:"events"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// ensureAuthenticated refreshes the bearer token when credentials are
// configured and the current token is missing or stale. Tokens are good for
// 24 hours upstream; refresh after 23.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.email == "" || c.password == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}

	c.token = lr.Token
	c.tokenExpiry = time.Now().Add(23 * time.Hour)
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("market API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market API returned status %d: %.200s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse market API response: %w", err)
	}
	return nil
}

// OpenMarkets fetches currently open markets, up to limit.
func (c *Client) OpenMarkets(ctx context.Context, limit int) ([]types.Candidate, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("status", "open")

	var mr marketsResponse
	if err := c.get(ctx, "/markets", query, &mr); err != nil {
		return nil, err
	}

	cands := make([]types.Candidate, 0, len(mr.Markets))
	for _, m := range mr.Markets {
		cands = append(cands, m.toCandidate())
	}
	return cands, nil
}

// Market fetches the detail record for one ticker, including the resolution
// result once the market has settled.
func (c *Client) Market(ctx context.Context, ticker string) (*types.Candidate, error) {
	var mr marketResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker), nil, &mr); err != nil {
		return nil, err
	}
	cand := mr.Market.toCandidate()
	return &cand, nil
}

// MarketHistory fetches recent price history, newest first.
func (c *Client) MarketHistory(ctx context.Context, ticker string, limit int) ([]types.PricePoint, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var hr historyResponse
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker)+"/history", query, &hr); err != nil {
		return nil, err
	}

	points := make([]types.PricePoint, 0, len(hr.History))
	for _, h := range hr.History {
		points = append(points, types.PricePoint{
			YesPrice: h.YesPrice,
			Time:     time.Unix(h.TS, 0).UTC(),
		})
	}
	return points, nil
}

// Events fetches open top-level event groupings.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("status", "open")

	var er eventsResponse
	if err := c.get(ctx, "/events", query, &er); err != nil {
		return nil, err
	}
	return er.Events, nil
}

// Search fetches open markets matching a keyword.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]types.Candidate, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("status", "open")
	query.Set("query", keyword)

	var mr marketsResponse
	if err := c.get(ctx, "/markets", query, &mr); err != nil {
		return nil, err
	}

	cands := make([]types.Candidate, 0, len(mr.Markets))
	for _, m := range mr.Markets {
		cands = append(cands, m.toCandidate())
	}
	return cands, nil
}

func (m marketJSON) toCandidate() types.Candidate {
	c := types.Candidate{
		Ticker:       m.Ticker,
		Title:        m.Title,
		Subtitle:     m.Subtitle,
		YesBid:       m.YesBid,
		LastPrice:    m.LastPrice,
		Volume:       m.Volume,
		Volume24h:    m.Volume24h,
		OpenInterest: m.OpenInterest,
		Result:       m.Result,
	}
	if m.CloseTime != "" {
		if t, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
			c.CloseTime = t.UTC()
		}
	}
	return c
}
