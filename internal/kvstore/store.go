// Package kvstore provides the two-tier key/value store behind all persisted
// settings, plus change notification for subscribers.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iconidentify/xreply/internal/domain"
)

// Tier selects one of the two storage areas.
type Tier string

const (
	// TierSync holds user settings, modes, personas and the license key.
	TierSync Tier = "sync"
	// TierLocal holds device-only data such as history and the license cache.
	TierLocal Tier = "local"
)

// String returns the string representation of the Tier.
func (t Tier) String() string {
	return string(t)
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierSync || t == TierLocal
}

// Change describes one key written or removed.
type Change struct {
	Tier    Tier            `json:"tier"`
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Removed bool            `json:"removed,omitempty"`
}

// Store is a key/value store with two tiers.
type Store interface {
	// Get returns the raw value of key, or domain.ErrKeyNotFound.
	Get(ctx context.Context, tier Tier, key string) (json.RawMessage, error)
	// GetAll returns every key in tier.
	GetAll(ctx context.Context, tier Tier) (map[string]json.RawMessage, error)
	// Set writes all values atomically.
	Set(ctx context.Context, tier Tier, values map[string]json.RawMessage) error
	// Remove deletes keys; absent keys are ignored.
	Remove(ctx context.Context, tier Tier, keys ...string) error
	// Subscribe returns a channel receiving every change. Call Unsubscribe when done.
	Subscribe() (uint64, <-chan Change)
	// Unsubscribe closes and removes a subscription.
	Unsubscribe(id uint64)
	// Close releases resources held by the store.
	Close() error
}

var errInvalidTier = errors.New("invalid storage tier")

func checkTier(tier Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %q", errInvalidTier, tier)
	}
	return nil
}

// GetJSON decodes key into v. It returns false when the key is absent.
func GetJSON(ctx context.Context, s Store, tier Tier, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, tier, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", tier, key, err)
	}
	return true, nil
}

// SetJSON encodes v and writes it under key.
func SetJSON(ctx context.Context, s Store, tier Tier, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", tier, key, err)
	}
	return s.Set(ctx, tier, map[string]json.RawMessage{key: data})
}

// subscribers fans changes out to listeners. Sends never block; a full
// subscriber buffer drops the change for that subscriber.
type subscribers struct {
	logger *slog.Logger

	mu    sync.RWMutex
	chans map[uint64]chan Change
	seq   uint64
}

func newSubscribers(logger *slog.Logger) *subscribers {
	if logger == nil {
		logger = slog.Default()
	}
	return &subscribers{
		logger: logger,
		chans:  make(map[uint64]chan Change),
	}
}

func (s *subscribers) Subscribe() (uint64, <-chan Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	id := s.seq
	ch := make(chan Change, 100)
	s.chans[id] = ch

	s.logger.Debug("store subscriber added", "subscriber_id", id, "total_subscribers", len(s.chans))
	return id, ch
}

func (s *subscribers) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.chans[id]; ok {
		close(ch)
		delete(s.chans, id)
		s.logger.Debug("store subscriber removed", "subscriber_id", id, "total_subscribers", len(s.chans))
	}
}

func (s *subscribers) notify(changes ...Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ch := range s.chans {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
				s.logger.Warn("store subscriber buffer full, dropping change", "subscriber_id", id, "key", c.Key)
			}
		}
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.chans {
		close(ch)
		delete(s.chans, id)
	}
}
