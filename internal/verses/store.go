// Package verses provides verse-text lookup with book-name normalization.
package verses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when a verse is not present in the store.
// Lookup misses are an expected outcome of noisy detection, not a failure.
var ErrNotFound = errors.New("verses: not found")

// Store looks up verse text by canonical book name, chapter and verse.
type Store interface {
	Lookup(ctx context.Context, book string, chapter, verse int) (string, error)
}

// MemoryStore is an in-memory Store used by tests and demos.
type MemoryStore struct {
	mu    sync.RWMutex
	texts map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{texts: make(map[string]string)}
}

// Put stores verse text under the given coordinates.
func (m *MemoryStore) Put(book string, chapter, verse int, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[verseKey(book, chapter, verse)] = text
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, book string, chapter, verse int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.texts[verseKey(book, chapter, verse)]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func verseKey(book string, chapter, verse int) string {
	return fmt.Sprintf("%s/%d/%d", strings.ToLower(book), chapter, verse)
}
