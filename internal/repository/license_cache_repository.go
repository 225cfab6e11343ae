package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/settings"
)

// DefaultLicenseCacheTTL is how long a validated license stays fresh.
const DefaultLicenseCacheTTL = 60 * time.Second

// KVLicenseCacheRepository implements LicenseCacheRepository in the local tier.
type KVLicenseCacheRepository struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewKVLicenseCacheRepository creates a license cache. A ttl <= 0 uses
// DefaultLicenseCacheTTL; a nil clock uses time.Now.
func NewKVLicenseCacheRepository(store kvstore.Store, ttl time.Duration, now func() time.Time) *KVLicenseCacheRepository {
	if ttl <= 0 {
		ttl = DefaultLicenseCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &KVLicenseCacheRepository{store: store, ttl: ttl, now: now}
}

// Get implements LicenseCacheRepository.
func (r *KVLicenseCacheRepository) Get(ctx context.Context) (*domain.LicenseInfo, bool, error) {
	raw, err := r.store.Get(ctx, kvstore.TierLocal, settings.KeyCachedLicenseInfo)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read license cache: %w", err)
	}

	var info domain.LicenseInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.CachedAt == 0 {
		return nil, false, nil
	}
	return &info, info.FreshAt(r.now(), r.ttl), nil
}

// GetFresh implements LicenseCacheRepository.
func (r *KVLicenseCacheRepository) GetFresh(ctx context.Context) (*domain.LicenseInfo, error) {
	info, fresh, err := r.Get(ctx)
	if err != nil || !fresh {
		return nil, err
	}
	return info, nil
}

// Put implements LicenseCacheRepository.
func (r *KVLicenseCacheRepository) Put(ctx context.Context, info domain.LicenseInfo) error {
	info.CachedAt = r.now().UnixMilli()
	return kvstore.SetJSON(ctx, r.store, kvstore.TierLocal, settings.KeyCachedLicenseInfo, info)
}

// Clear implements LicenseCacheRepository.
func (r *KVLicenseCacheRepository) Clear(ctx context.Context) error {
	return r.store.Remove(ctx, kvstore.TierLocal, settings.KeyCachedLicenseInfo)
}
