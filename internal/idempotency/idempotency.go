// Package idempotency remembers which order a checkout request key produced,
// so a retried request returns the original order instead of a second one.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Claim is the outcome of claiming a key.
type Claim struct {
	// Acquired is true when the caller now owns the key and must finish
	// with Complete or Abandon.
	Acquired bool
	// OrderID is set when an earlier request with the same key completed.
	OrderID string
}

// InFlight reports that another request holds the key right now.
func (c Claim) InFlight() bool {
	return !c.Acquired && c.OrderID == ""
}

type Store interface {
	Claim(ctx context.Context, key string) (Claim, error)
	Complete(ctx context.Context, key, orderID string) error
	Abandon(ctx context.Context, key string) error
}

type memoryEntry struct {
	orderID string
	expires time.Time
}

// MemoryStore keeps claims in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return Claim{OrderID: e.orderID}, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(s.ttl)}
	return Claim{Acquired: true}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{orderID: orderID, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
