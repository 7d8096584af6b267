package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"oddspress/internal/types"
)

// SQLiteBackend is the durable relational store. Unlike the file and redis
// backends it never deletes articles: the cap bounds only what ListArticles
// returns, so older rows stay reachable by id. Unrecognized fields
// round-trip through the extra column.
type SQLiteBackend struct {
	db         *sql.DB
	cap        int
	defaultTTL time.Duration
}

// NewSQLiteBackend opens or creates the database under dir.
func NewSQLiteBackend(dir string, cap int, defaultTTL time.Duration) (*SQLiteBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "oddspress.db"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteBackend{db: db, cap: cap, defaultTTL: defaultTTL}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT
	);

	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		article_type TEXT NOT NULL,
		title TEXT NOT NULL,
		teaser TEXT,
		content TEXT,
		market_ticker TEXT,
		market_title TEXT,
		probability REAL,
		outcome TEXT,
		generated_at TEXT NOT NULL,
		close_time TEXT,
		volume INTEGER,
		status TEXT NOT NULL,
		word_count INTEGER,
		original_article_id TEXT,
		results_article_id TEXT,
		extra TEXT,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(position);
	CREATE INDEX IF NOT EXISTS idx_articles_ticker ON articles(market_ticker);
	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s: %w", key, err)
	}

	if expiresAt.Valid {
		expiry, perr := time.Parse(time.RFC3339Nano, expiresAt.String)
		if perr == nil && time.Now().After(expiry) {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
			return nil, false, nil
		}
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := time.Now().UTC()
	var expiresAt any
	if ttl > 0 {
		expiresAt = now.Add(ttl).Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, value, now.Format(time.RFC3339Nano), expiresAt)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

const articleColumns = `id, article_type, title, teaser, content,
	market_ticker, market_title, probability, outcome,
	generated_at, close_time, volume, status, word_count,
	original_article_id, results_article_id, extra`

func (s *SQLiteBackend) ListArticles(ctx context.Context) ([]types.Article, error) {
	limit := s.cap
	if limit <= 0 {
		limit = -1 // no bound
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		ORDER BY position DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var articles []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *SQLiteBackend) UpsertArticle(ctx context.Context, a types.Article) error {
	var extraJSON any
	if len(a.Extra) > 0 {
		data, err := json.Marshal(a.Extra)
		if err != nil {
			return fmt.Errorf("encode extra fields: %w", err)
		}
		extraJSON = string(data)
	}

	// New rows take the next position (front of the ordering); replaced rows
	// keep theirs.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (`+articleColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM articles))
		ON CONFLICT(id) DO UPDATE SET
			article_type = excluded.article_type,
			title = excluded.title,
			teaser = excluded.teaser,
			content = excluded.content,
			market_ticker = excluded.market_ticker,
			market_title = excluded.market_title,
			probability = excluded.probability,
			outcome = excluded.outcome,
			generated_at = excluded.generated_at,
			close_time = excluded.close_time,
			volume = excluded.volume,
			status = excluded.status,
			word_count = excluded.word_count,
			original_article_id = excluded.original_article_id,
			results_article_id = excluded.results_article_id,
			extra = excluded.extra
	`,
		a.ID, string(a.Type), a.Title, a.Teaser, a.Content,
		a.MarketTicker, a.MarketTitle, a.Probability, nullableString(a.Outcome),
		a.GeneratedAt.UTC().Format(time.RFC3339Nano), timeOrNil(a.CloseTime), a.Volume,
		string(a.Status), a.WordCount,
		nullableString(a.OriginalArticleID), nullableString(a.ResultsArticleID), extraJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert article %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteBackend) GetArticleByID(ctx context.Context, id string) (*types.Article, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles WHERE id = ?
	`, id)

	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get article %s: %w", id, err)
	}
	return &a, true, nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (types.Article, error) {
	var a types.Article
	var articleType, status, generatedAt string
	var teaser, content, ticker, title, outcome, closeTime, originalID, resultsID, extra sql.NullString
	var probability sql.NullFloat64
	var volume, wordCount sql.NullInt64

	err := row.Scan(
		&a.ID, &articleType, &a.Title, &teaser, &content,
		&ticker, &title, &probability, &outcome,
		&generatedAt, &closeTime, &volume, &status, &wordCount,
		&originalID, &resultsID, &extra,
	)
	if err != nil {
		return a, err
	}

	a.Type = types.ArticleType(articleType)
	a.Status = types.ArticleStatus(status)
	a.Teaser = teaser.String
	a.Content = content.String
	a.MarketTicker = ticker.String
	a.MarketTitle = title.String
	a.Probability = probability.Float64
	a.Outcome = outcome.String
	a.Volume = volume.Int64
	a.WordCount = int(wordCount.Int64)
	a.OriginalArticleID = originalID.String
	a.ResultsArticleID = resultsID.String

	if t, perr := time.Parse(time.RFC3339Nano, generatedAt); perr == nil {
		a.GeneratedAt = t
	}
	if closeTime.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, closeTime.String); perr == nil {
			a.CloseTime = t
		}
	}
	if extra.Valid && extra.String != "" {
		if uerr := json.Unmarshal([]byte(extra.String), &a.Extra); uerr != nil {
			return a, fmt.Errorf("decode extra fields for %s: %w", a.ID, uerr)
		}
	}
	return a, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
