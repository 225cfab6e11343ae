package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/iconidentify/xreply/internal/domain"
)

// MemoryStore is an in-memory Store. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Tier]map[string]json.RawMessage

	subs *subscribers
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		data: map[Tier]map[string]json.RawMessage{
			TierSync:  {},
			TierLocal: {},
		},
		subs: newSubscribers(logger),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, tier Tier, key string) (json.RawMessage, error) {
	if err := checkTier(tier); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[tier][key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return clone(v), nil
}

// GetAll implements Store.
func (s *MemoryStore) GetAll(ctx context.Context, tier Tier) (map[string]json.RawMessage, error) {
	if err := checkTier(tier); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(s.data[tier]))
	for k, v := range s.data[tier] {
		out[k] = clone(v)
	}
	return out, nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, tier Tier, values map[string]json.RawMessage) error {
	if err := checkTier(tier); err != nil {
		return err
	}
	changes := make([]Change, 0, len(values))

	s.mu.Lock()
	for k, v := range values {
		if old, ok := s.data[tier][k]; ok && bytes.Equal(old, v) {
			continue
		}
		s.data[tier][k] = clone(v)
		changes = append(changes, Change{Tier: tier, Key: k, Value: clone(v)})
	}
	s.mu.Unlock()

	s.subs.notify(changes...)
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(ctx context.Context, tier Tier, keys ...string) error {
	if err := checkTier(tier); err != nil {
		return err
	}
	var changes []Change

	s.mu.Lock()
	for _, k := range keys {
		if _, ok := s.data[tier][k]; ok {
			delete(s.data[tier], k)
			changes = append(changes, Change{Tier: tier, Key: k, Removed: true})
		}
	}
	s.mu.Unlock()

	s.subs.notify(changes...)
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe() (uint64, <-chan Change) {
	return s.subs.Subscribe()
}

// Unsubscribe implements Store.
func (s *MemoryStore) Unsubscribe(id uint64) {
	s.subs.Unsubscribe(id)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.subs.closeAll()
	return nil
}

func clone(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
