package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/internal/settings"
	"github.com/iconidentify/xreply/pkg/license"
)

// LicenseState is the popup's license state.
type LicenseState string

const (
	LicenseStateLoading     LicenseState = "loading"
	LicenseStateActive      LicenseState = "active"
	LicenseStateExpired     LicenseState = "expired"
	LicenseStateInvalid     LicenseState = "invalid"
	LicenseStateNoLicense   LicenseState = "no_license"
	LicenseStateUnavailable LicenseState = "unavailable"
)

// PricingURL is opened from the expired license state.
const PricingURL = "https://shadowintern.xyz/pricing"

// EmptyState is the call to action shown instead of the usage card.
type EmptyState struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	CTA     string `json:"cta"`
	// URL is set when the action opens a page rather than the settings.
	URL string `json:"url,omitempty"`
}

// Usage is the plan card of an active license.
type Usage struct {
	Plan           string  `json:"plan"`
	Remaining      string  `json:"remaining"`
	RemainingClass string  `json:"remainingClass,omitempty"`
	ProgressPct    float64 `json:"progressPct"`
	ProgressClass  string  `json:"progressClass,omitempty"`
}

// LicenseStatus is the rendered license view.
type LicenseStatus struct {
	State     LicenseState        `json:"state"`
	Pill      string              `json:"pill"`
	PillClass string              `json:"pillClass"`
	Offline   bool                `json:"offline"`
	Usage     *Usage              `json:"usage,omitempty"`
	Empty     *EmptyState         `json:"emptyState,omitempty"`
	Info      *domain.LicenseInfo `json:"info,omitempty"`
}

var (
	emptyNoLicense = &EmptyState{
		Title:   "Set up in 30 seconds",
		Message: "We send the tweet text to Shadow Intern API to generate your reply.",
		CTA:     "Set up",
	}
	emptyUnavailable = &EmptyState{
		Title:   "Connection error",
		Message: "Unable to validate license. Please check your connection.",
		CTA:     "Retry",
	}
	emptyInvalid = &EmptyState{
		Title:   "License invalid or expired",
		Message: "Please update your license key in settings or upgrade your plan.",
		CTA:     "Fix license",
	}
	emptyExpired = &EmptyState{
		Title:   "License expired",
		Message: "Your license has expired. Please renew or upgrade your plan.",
		CTA:     "Upgrade plan",
		URL:     PricingURL,
	}
)

// LicenseService owns the license cache lifecycle and renders status.
type LicenseService struct {
	config repository.ConfigRepository
	cache  repository.LicenseCacheRepository
	client license.Client
	logger *slog.Logger
	now    func() time.Time
	events domain.EventEmitter
}

// NewLicenseService creates a new license service.
func NewLicenseService(
	config repository.ConfigRepository,
	cache repository.LicenseCacheRepository,
	client license.Client,
	logger *slog.Logger,
) *LicenseService {
	return &LicenseService{
		config: config,
		cache:  cache,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// SetEventEmitter sets the activity feed for license events.
func (s *LicenseService) SetEventEmitter(emitter domain.EventEmitter) {
	s.events = emitter
}

// CachedStatus renders the fresh cached entry without a network call. With
// no key it reports the no-license state; with nothing cached, loading.
func (s *LicenseService) CachedStatus(ctx context.Context) (*LicenseStatus, error) {
	key, err := s.config.LicenseKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("load license key: %w", err)
	}
	if key == "" {
		return s.render(nil, &domain.LicenseError{Code: domain.LicenseCodeNoKey}, false), nil
	}

	cached, err := s.cache.GetFresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("read license cache: %w", err)
	}
	if cached == nil {
		return &LicenseStatus{State: LicenseStateLoading, Pill: "LOADING", PillClass: "loading"}, nil
	}
	return s.render(cached, nil, false), nil
}

// Status fetches fresh license info and renders it. A network failure falls
// back to the fresh cached entry, marked offline.
func (s *LicenseService) Status(ctx context.Context) (*LicenseStatus, error) {
	res, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if res.err == nil {
		return s.render(res.info, nil, false), nil
	}
	if domain.IsNetwork(res.err) && res.cached != nil {
		s.logger.Info("license server unreachable, showing cached license", "error", res.err)
		return s.render(res.cached, nil, true), nil
	}
	return s.render(nil, res.err, false), nil
}

// Refresh revalidates the stored key and updates the cache. Network failures
// keep the cache as it is. Having no key is not an error.
func (s *LicenseService) Refresh(ctx context.Context) error {
	res, err := s.refresh(ctx)
	if err != nil {
		return err
	}
	var licErr *domain.LicenseError
	if errors.As(res.err, &licErr) && licErr.Code == domain.LicenseCodeNoKey {
		return nil
	}
	return res.err
}

// refreshResult is one fetch: the fresh info or the fetch error, plus the
// fresh cached entry read before fetching.
type refreshResult struct {
	info   *domain.LicenseInfo
	cached *domain.LicenseInfo
	err    error
}

// refresh runs one fetch and applies the cache rules: a success is stored,
// a rejection clears the cache, a network failure leaves it alone. The
// returned error is for storage failures only.
func (s *LicenseService) refresh(ctx context.Context) (*refreshResult, error) {
	key, err := s.config.LicenseKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("load license key: %w", err)
	}
	if key == "" {
		return &refreshResult{err: &domain.LicenseError{Code: domain.LicenseCodeNoKey}}, nil
	}

	cached, err := s.cache.GetFresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("read license cache: %w", err)
	}

	info, fetchErr := s.client.FetchInfo(ctx, key)
	switch {
	case fetchErr == nil:
		if err := s.cache.Put(ctx, *info); err != nil {
			return nil, fmt.Errorf("store license cache: %w", err)
		}
		s.logger.Debug("license refreshed", "plan", info.PlanCode)
	case domain.IsNetwork(fetchErr):
		s.logger.Warn("license fetch failed", "error", fetchErr)
	default:
		s.logger.Info("license rejected, clearing cache", "error", fetchErr)
		if err := s.cache.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear license cache: %w", err)
		}
		if s.events != nil {
			s.events.EmitWarning(domain.EventCategoryLicense, fetchErr.Error(), domain.EventMetadata{"status": domain.StatusOf(fetchErr)})
		}
	}
	return &refreshResult{info: info, cached: cached, err: fetchErr}, nil
}

// render builds the status for a license or an error.
func (s *LicenseService) render(info *domain.LicenseInfo, fetchErr error, offline bool) *LicenseStatus {
	var licErr *domain.LicenseError
	errors.As(fetchErr, &licErr)

	switch {
	case info == nil && (fetchErr == nil || (licErr != nil && licErr.Code == domain.LicenseCodeNoKey)):
		return &LicenseStatus{State: LicenseStateNoLicense, Pill: "NO LICENSE", PillClass: "no-license", Empty: emptyNoLicense}
	case info == nil && domain.IsNetwork(fetchErr):
		return &LicenseStatus{State: LicenseStateUnavailable, Pill: "STATUS UNAVAILABLE", PillClass: "expired", Empty: emptyUnavailable}
	case info == nil || !info.Valid:
		return &LicenseStatus{State: LicenseStateInvalid, Pill: "EXPIRED", PillClass: "expired", Empty: emptyInvalid}
	}

	expired := info.Expired(s.now())
	if expired && !offline {
		return &LicenseStatus{State: LicenseStateExpired, Pill: "EXPIRED", PillClass: "expired", Empty: emptyExpired, Info: info}
	}

	status := &LicenseStatus{
		State:     LicenseStateActive,
		Pill:      "ACTIVE",
		PillClass: "active",
		Offline:   offline,
		Usage:     usageOf(info),
		Info:      info,
	}
	// Offline cached data keeps the usage card and only flips the pill.
	if expired {
		status.State = LicenseStateExpired
		status.Pill = "EXPIRED"
		status.PillClass = "expired"
	}
	return status
}

func usageOf(info *domain.LicenseInfo) *Usage {
	u := &Usage{
		Plan:        settings.FormatPlanName(info.PlanCode),
		Remaining:   "Unlimited",
		ProgressPct: 100,
	}
	if info.RemainingToday == nil {
		return u
	}

	remaining := *info.RemainingToday
	u.Remaining = strconv.Itoa(remaining)

	limit := 0
	if info.LimitPerDay != nil {
		limit = *info.LimitPerDay
	}
	switch {
	case remaining == 0:
		u.RemainingClass = "zero"
	case limit > 0 && float64(remaining) <= float64(limit)*0.2:
		u.RemainingClass = "low"
	}

	if limit == 0 {
		return u
	}
	pct := float64(remaining) * 100 / float64(limit)
	u.ProgressPct = min(100, max(0, pct))
	u.ProgressClass = u.RemainingClass
	return u
}

// WatchKeyChanges clears the license cache whenever the license key is
// written or removed. It blocks until ctx is done.
func (s *LicenseService) WatchKeyChanges(ctx context.Context, store kvstore.Store) {
	id, changes := store.Subscribe()
	defer store.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Tier != kvstore.TierSync || c.Key != settings.KeyLicenseKey {
				continue
			}
			if err := s.cache.Clear(ctx); err != nil {
				s.logger.Warn("failed to clear license cache", "error", err)
				continue
			}
			s.logger.Info("license key changed, cache cleared")
			if s.events != nil {
				s.events.EmitInfo(domain.EventCategoryLicense, "License key changed", nil)
			}
		}
	}
}
