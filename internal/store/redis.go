package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"oddspress/internal/types"
)

const redisNamespace = "oddspress:"

// RedisBackend stores values in a shared redis instance with native TTL
// expiry. The article collection lives as one JSON value; upserts are
// serialized in-process so read-modify-write cycles don't interleave.
type RedisBackend struct {
	client     *redis.Client
	cap        int
	defaultTTL time.Duration

	mu sync.Mutex // guards the articles read-modify-write
}

// NewRedisBackend connects to the given redis URL and verifies the
// connection.
func NewRedisBackend(redisURL string, cap int, defaultTTL time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBackend{
		client:     client,
		cap:        cap,
		defaultTTL: defaultTTL,
	}, nil
}

func (r *RedisBackend) articlesKey() string {
	return redisNamespace + "articles"
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisNamespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, redisNamespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisNamespace+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) ListArticles(ctx context.Context) ([]types.Article, error) {
	articles, err := r.readArticles(ctx)
	if err != nil {
		return nil, err
	}
	if r.cap > 0 && len(articles) > r.cap {
		articles = articles[:r.cap]
	}
	return articles, nil
}

func (r *RedisBackend) UpsertArticle(ctx context.Context, article types.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	articles, err := r.readArticles(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range articles {
		if articles[i].ID == article.ID {
			articles[i] = article
			replaced = true
			break
		}
	}
	if !replaced {
		articles = append([]types.Article{article}, articles...)
	}
	if r.cap > 0 && len(articles) > r.cap {
		articles = articles[:r.cap]
	}

	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	// The collection never expires; only ad hoc keys carry TTLs.
	if err := r.client.Set(ctx, r.articlesKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("redis save articles: %w", err)
	}
	return nil
}

func (r *RedisBackend) GetArticleByID(ctx context.Context, id string) (*types.Article, bool, error) {
	articles, err := r.readArticles(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range articles {
		if articles[i].ID == id {
			a := articles[i]
			return &a, true, nil
		}
	}
	return nil, false, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) readArticles(ctx context.Context) ([]types.Article, error) {
	data, err := r.client.Get(ctx, r.articlesKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get articles: %w", err)
	}

	var articles []types.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return articles, nil
}
