package domain

import (
	"time"
)

// LicenseInfo is the validated state of a license key.
type LicenseInfo struct {
	Valid          bool   `json:"valid"`
	LicenseKey     string `json:"licenseKey,omitempty"`
	PlanCode       string `json:"planCode,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
	LimitPerDay    *int   `json:"limitPerDay"`
	RemainingToday *int   `json:"remainingToday"` // nil means unlimited
	CachedAt       int64  `json:"cachedAt,omitempty"`
}

var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ExpiryTime parses ExpiresAt. The second result is false when no expiry is
// set or it cannot be parsed.
func (l *LicenseInfo) ExpiryTime() (time.Time, bool) {
	if l == nil || l.ExpiresAt == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, l.ExpiresAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Expired reports whether the license expiry lies before now.
func (l *LicenseInfo) Expired(now time.Time) bool {
	t, ok := l.ExpiryTime()
	return ok && t.Before(now)
}

// Active reports whether the server flag and the local expiry check both pass.
func (l *LicenseInfo) Active(now time.Time) bool {
	return l != nil && l.Valid && !l.Expired(now)
}

// Unlimited reports whether the license has no daily counter.
func (l *LicenseInfo) Unlimited() bool {
	return l == nil || l.RemainingToday == nil
}

// FreshAt reports whether a cached entry is still within ttl at now.
func (l *LicenseInfo) FreshAt(now time.Time, ttl time.Duration) bool {
	if l == nil || l.CachedAt == 0 {
		return false
	}
	age := now.Sub(time.UnixMilli(l.CachedAt))
	return age <= ttl
}
