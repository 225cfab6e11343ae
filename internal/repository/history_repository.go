package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/settings"
)

// HistoryLimit is the number of replies kept.
const HistoryLimit = 10

// KVHistoryRepository implements HistoryRepository in the local tier.
type KVHistoryRepository struct {
	store kvstore.Store
	limit int

	// mu serializes the read-modify-write in Append.
	mu sync.Mutex
}

// NewKVHistoryRepository creates a history repository. A limit <= 0 uses HistoryLimit.
func NewKVHistoryRepository(store kvstore.Store, limit int) *KVHistoryRepository {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &KVHistoryRepository{store: store, limit: limit}
}

// List implements HistoryRepository.
func (r *KVHistoryRepository) List(ctx context.Context) ([]domain.HistoryItem, error) {
	raw, err := r.store.Get(ctx, kvstore.TierLocal, settings.KeyReplyHistory)
	if isNotFound(err) {
		return []domain.HistoryItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var items []domain.HistoryItem
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		// A corrupt history is treated as empty rather than blocking new writes.
		return []domain.HistoryItem{}, nil
	}
	return items, nil
}

// Append implements HistoryRepository.
func (r *KVHistoryRepository) Append(ctx context.Context, item domain.HistoryItem) ([]domain.HistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	next := make([]domain.HistoryItem, 0, len(items)+1)
	next = append(next, item)
	next = append(next, items...)
	if len(next) > r.limit {
		next = next[:r.limit]
	}

	if err := kvstore.SetJSON(ctx, r.store, kvstore.TierLocal, settings.KeyReplyHistory, next); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return next, nil
}

// Clear implements HistoryRepository.
func (r *KVHistoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Remove(ctx, kvstore.TierLocal, settings.KeyReplyHistory)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrKeyNotFound)
}
