// Package license is the HTTP client for the remote license validation API.
package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
)

const (
	relayFallback   = "Shadow Intern license validation failed"
	statusFallback  = "License validation failed"
	invalidFallback = "License invalid or expired"
)

// Client validates license keys remotely.
type Client interface {
	// Validate gates a generate call: it fails on any rejection and on an
	// explicit valid=false answer.
	Validate(ctx context.Context, key string) error
	// FetchInfo returns the plan and usage for key. Every failure is a
	// *domain.LicenseError with one of the domain.LicenseCode* codes.
	FetchInfo(ctx context.Context, key string) (*domain.LicenseInfo, error)
}

type validateRequest struct {
	Key string `json:"key"`
}

type validateResponse struct {
	Valid          *bool  `json:"valid"`
	LicenseKey     string `json:"licenseKey"`
	PlanCode       string `json:"planCode"`
	ExpiresAt      string `json:"expiresAt"`
	LimitPerDay    *int   `json:"limitPerDay"`
	RemainingToday *int   `json:"remainingToday"`
	Reason         string `json:"reason"`
	Error          string `json:"error"`
}

// HTTPClient implements Client against the license endpoint.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a new license client.
func NewClient(cfg config.RemoteConfig) *HTTPClient {
	return &HTTPClient{
		url: cfg.LicenseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// post sends {key} and returns the status with the decoded body. Decoding
// errors leave the body zero-valued.
func (c *HTTPClient) post(ctx context.Context, key string) (int, *validateResponse, error) {
	body, err := json.Marshal(validateRequest{Key: key})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &domain.NetworkError{Op: "validate license", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &domain.NetworkError{Op: "validate license", Err: fmt.Errorf("read response: %w", err)}
	}

	var out validateResponse
	_ = json.Unmarshal(respBody, &out)
	return resp.StatusCode, &out, nil
}

// Validate implements Client.
func (c *HTTPClient) Validate(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrMissingLicenseKey
	}

	status, resp, err := c.post(ctx, key)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return domain.NewRemoteError("validate license", status, resp.Error, relayFallback)
	}
	if resp.Valid != nil && !*resp.Valid {
		return &domain.LicenseError{
			Code:    domain.LicenseCodeInvalid,
			Status:  http.StatusForbidden,
			Reason:  resp.Reason,
			Message: firstNonEmpty(resp.Error, invalidFallback),
		}
	}
	return nil
}

// FetchInfo implements Client.
func (c *HTTPClient) FetchInfo(ctx context.Context, key string) (*domain.LicenseInfo, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &domain.LicenseError{Code: domain.LicenseCodeNoKey}
	}

	status, resp, err := c.post(ctx, key)
	if err != nil {
		if domain.IsNetwork(err) {
			return nil, &domain.LicenseError{
				Code:    domain.LicenseCodeNetwork,
				Message: err.Error(),
				Err:     err,
			}
		}
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, &domain.LicenseError{
			Code:    domain.LicenseCodeInvalid,
			Status:  status,
			Message: firstNonEmpty(resp.Error, statusFallback),
		}
	}
	if resp.Valid == nil || !*resp.Valid {
		return nil, &domain.LicenseError{
			Code:    domain.LicenseCodeInvalid,
			Status:  status,
			Reason:  resp.Reason,
			Message: firstNonEmpty(resp.Error, invalidFallback),
		}
	}

	info := &domain.LicenseInfo{
		Valid:          true,
		LicenseKey:     resp.LicenseKey,
		PlanCode:       resp.PlanCode,
		ExpiresAt:      resp.ExpiresAt,
		RemainingToday: resp.RemainingToday,
	}
	// A zero daily limit means no limit is reported.
	if resp.LimitPerDay != nil && *resp.LimitPerDay != 0 {
		info.LimitPerDay = resp.LimitPerDay
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
