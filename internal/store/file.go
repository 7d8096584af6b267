package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"oddspress/internal/types"
)

const articlesFile = "articles.json"

// FileBackend stores values as JSON files in a cache directory. It survives
// process restarts but is meant for single-node deployments; cross-process
// writers are not coordinated.
type FileBackend struct {
	dir        string
	cap        int
	defaultTTL time.Duration

	mu  sync.RWMutex
	now func() time.Time
}

// NewFileBackend creates the cache directory if needed.
func NewFileBackend(dir string, cap int, defaultTTL time.Duration) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBackend{
		dir:        dir,
		cap:        cap,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// envelope wraps a stored value with its TTL metadata.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type articlesDoc struct {
	Articles  []types.Article `json:"articles"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (f *FileBackend) keyPath(key string) string {
	return filepath.Join(f.dir, SanitizeKey(key)+".json")
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.RLock()
	data, err := os.ReadFile(f.keyPath(key))
	f.mu.RUnlock()
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache key %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("decode cache key %s: %w", key, err)
	}

	if env.ExpiresAt != nil && f.now().After(*env.ExpiresAt) {
		// Lazily purge; the entry is already absent from the caller's view.
		_ = f.Delete(ctx, key)
		return nil, false, nil
	}

	return env.Value, true, nil
}

func (f *FileBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = f.defaultTTL
	}

	env := envelope{
		Value:     value,
		CreatedAt: f.now().UTC(),
	}
	if ttl > 0 {
		expires := f.now().UTC().Add(ttl)
		env.ExpiresAt = &expires
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache key %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeFile(f.keyPath(key), data)
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.keyPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache key %s: %w", key, err)
	}
	return nil
}

func (f *FileBackend) ListArticles(ctx context.Context) ([]types.Article, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	doc, err := f.readArticles()
	if err != nil {
		return nil, err
	}
	if f.cap > 0 && len(doc.Articles) > f.cap {
		doc.Articles = doc.Articles[:f.cap]
	}
	return doc.Articles, nil
}

func (f *FileBackend) UpsertArticle(ctx context.Context, article types.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readArticles()
	if err != nil {
		return err
	}

	replaced := false
	for i := range doc.Articles {
		if doc.Articles[i].ID == article.ID {
			doc.Articles[i] = article
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Articles = append([]types.Article{article}, doc.Articles...)
	}

	// Evict oldest-first once over capacity. Ordering is most-recent-first,
	// so the oldest entries are at the tail.
	if f.cap > 0 && len(doc.Articles) > f.cap {
		doc.Articles = doc.Articles[:f.cap]
	}

	doc.UpdatedAt = f.now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	return f.writeFile(filepath.Join(f.dir, articlesFile), data)
}

func (f *FileBackend) GetArticleByID(ctx context.Context, id string) (*types.Article, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	doc, err := f.readArticles()
	if err != nil {
		return nil, false, err
	}
	for i := range doc.Articles {
		if doc.Articles[i].ID == id {
			a := doc.Articles[i]
			return &a, true, nil
		}
	}
	return nil, false, nil
}

func (f *FileBackend) Close() error {
	return nil
}

func (f *FileBackend) readArticles() (*articlesDoc, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, articlesFile))
	if os.IsNotExist(err) {
		return &articlesDoc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}

	var doc articlesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return &doc, nil
}

// writeFile writes via a temp file and rename so readers never observe a
// partially written document.
func (f *FileBackend) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
