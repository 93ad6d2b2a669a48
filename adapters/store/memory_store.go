package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/farmgate/ports"
)

type memoryDocument struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func (d memoryDocument) expired(now time.Time) bool {
	return !d.expiresAt.IsZero() && !now.Before(d.expiresAt)
}

// MemoryStore is an in-memory implementation of the DocumentStore interface.
// It is meant for tests and single instance development setups.
type MemoryStore struct {
	collections map[string]map[string]memoryDocument
	mu          sync.Mutex
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an in-memory store that expires documents
// according to now
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memoryDocument),
		now:         now,
	}
}

// lookup must be called with mu held
func (s *MemoryStore) lookup(collection, id string) (memoryDocument, bool) {
	docs, ok := s.collections[collection]
	if !ok {
		return memoryDocument{}, false
	}
	doc, ok := docs[id]
	if !ok {
		return memoryDocument{}, false
	}
	if doc.expired(s.now()) {
		delete(docs, id)
		return memoryDocument{}, false
	}
	return doc, true
}

// put must be called with mu held
func (s *MemoryStore) put(collection, id string, data []byte, expiresAt time.Time) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memoryDocument)
		s.collections[collection] = docs
	}
	docs[id] = memoryDocument{data: append([]byte(nil), data...), expiresAt: expiresAt}
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get retrieves a document
func (s *MemoryStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.lookup(collection, id)
	if !ok {
		return nil, ports.ErrNotFound
	}
	return append([]byte(nil), doc.data...), nil
}

// Set stores a document, replacing any previous version
func (s *MemoryStore) Set(ctx context.Context, collection, id string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, data, s.expiry(ttl))
	return nil
}

// Update runs fn while holding the store lock, so concurrent updates of the
// same document are serialized
func (s *MemoryStore) Update(ctx context.Context, collection, id string, ttl time.Duration, fn ports.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	doc, exists := s.lookup(collection, id)
	if exists {
		current = append([]byte(nil), doc.data...)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	expiresAt := s.expiry(ttl)
	if ttl == ports.KeepTTL && exists {
		expiresAt = doc.expiresAt
	}
	s.put(collection, id, next, expiresAt)
	return nil
}

// DeleteWhere removes all matching documents in a collection
func (s *MemoryStore) DeleteWhere(ctx context.Context, collection string, match ports.MatchFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	deleted := 0
	now := s.now()
	for id, doc := range docs {
		if doc.expired(now) {
			delete(docs, id)
			continue
		}
		if match(id, doc.data) {
			delete(docs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of live documents in a collection
func (s *MemoryStore) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, doc := range s.collections[collection] {
		if !doc.expired(now) {
			n++
		}
	}
	return n
}
