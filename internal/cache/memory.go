package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/taxpilot/fieldmap/internal/mapping"
)

// MemoryStore implements Store with a process-local map. Used in tests and
// as a fallback when no cache path is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*mapping.Document
}

// NewMemoryStore creates an empty in-memory mapping cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*mapping.Document)}
}

func memKey(formType, formVersion string) string {
	return formType + "\x00" + formVersion
}

// Get loads the cached document for a form template.
func (s *MemoryStore) Get(_ context.Context, formType, formVersion string) (*mapping.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[memKey(formType, formVersion)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", formType, formVersion, ErrNotFound)
	}
	return doc, nil
}

// Put stores a document, replacing any prior entry for the same key.
func (s *MemoryStore) Put(_ context.Context, doc *mapping.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[memKey(doc.FormType, doc.FormVersion)] = doc
	return nil
}

// List returns all cached documents in unspecified order.
func (s *MemoryStore) List(_ context.Context) ([]*mapping.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]*mapping.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
