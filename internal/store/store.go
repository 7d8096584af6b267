// Package store persists generated articles and cached values across three
// interchangeable backends: flat JSON files, redis, and sqlite.
//
// Backends behave identically except for the capacity bound: file and redis
// evict oldest-first at write time, while the sqlite backend keeps every row
// and bounds only what ListArticles returns. The durable backend is the one
// place history is deliberately retained.
package store

import (
	"context"
	"fmt"
	"time"

	"oddspress/internal/config"
	"oddspress/internal/types"
)

// Backend is the uniform storage contract. Implementations must be safe for
// concurrent use; UpsertArticle is atomic per article id.
type Backend interface {
	// Get returns the value for key, reporting absence for missing and
	// expired entries. Expired entries are lazily purged.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. ttl <= 0 applies the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ListArticles returns the article collection most-recent-first, bounded
	// by the configured cap.
	ListArticles(ctx context.Context) ([]types.Article, error)

	// UpsertArticle is idempotent by id: an existing article is replaced in
	// place, a new one is inserted at the front of the ordering.
	UpsertArticle(ctx context.Context, article types.Article) error

	// GetArticleByID returns one article, reporting absence.
	GetArticleByID(ctx context.Context, id string) (*types.Article, bool, error)

	Close() error
}

// New constructs the backend named by config. Selection happens exactly once
// here; callers hold only the interface.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		dir, err := cfg.CacheDirPath()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		return NewFileBackend(dir, cfg.Storage.MaxArticles, ttlFromConfig(cfg))
	case config.BackendRedis:
		return NewRedisBackend(cfg.Storage.RedisURL, cfg.Storage.MaxArticles, ttlFromConfig(cfg))
	case config.BackendSQLite:
		dir, err := cfg.CacheDirPath()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		return NewSQLiteBackend(dir, cfg.Storage.MaxArticles, ttlFromConfig(cfg))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func ttlFromConfig(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Storage.TTLSeconds) * time.Second
}
