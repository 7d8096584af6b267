package orchestrator

import "sync"

// keyedMutex hands out one mutex per key. It serializes the
// check-generate-store window per ticker so a manual refresh racing a
// scheduled cycle cannot produce two active analysis articles for the same
// market.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function. Mutexes
// are retained for the process lifetime; the key space is tickers, which is
// small.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
