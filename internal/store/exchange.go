package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Exchange represents a prompt/response pair for auditing generation calls.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// ExchangeLog writes LLM exchanges to timestamped JSON files under the cache
// directory so failed or malformed generations can be inspected later.
type ExchangeLog struct {
	dir string
}

// NewExchangeLog creates an exchange log rooted at dir/llm.
func NewExchangeLog(dir string) *ExchangeLog {
	return &ExchangeLog{dir: filepath.Join(dir, "llm")}
}

// Save serializes an exchange and writes it to a timestamped file, returning
// the path written.
func (l *ExchangeLog) Save(exchange Exchange) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility.
	filename := exchange.Timestamp.UTC().Format("2006-01-02T15-04-05.000000000") + ".json"
	path := filepath.Join(l.dir, filename)

	data, err := json.MarshalIndent(exchange, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
