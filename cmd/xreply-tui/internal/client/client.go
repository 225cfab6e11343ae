// Package client is a small HTTP client for the xreply server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// Client wraps xreply API access.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xreply api (%d): %s", e.Status, e.Message)
}

// Settings is the global settings view with the length presets.
type Settings struct {
	Settings       domain.GlobalSettings `json:"settings"`
	LengthSegments []LengthSegment       `json:"lengthSegments"`
}

// LengthSegment is one of the length presets.
type LengthSegment struct {
	Label    string `json:"label"`
	MaxChars int    `json:"maxChars"`
}

// Modes lists every mode and the enabled subset.
type Modes struct {
	Modes  []domain.ModeConfig `json:"modes"`
	Active []domain.ModeConfig `json:"active"`
	Notice string              `json:"notice,omitempty"`
}

// Personas is the persona list with the active selection.
type Personas struct {
	Personas        []domain.Persona `json:"personas"`
	ActivePersonaID string           `json:"activePersonaId"`
	MaxPersonas     int              `json:"maxPersonas"`
}

// Events is one page of the activity log.
type Events struct {
	Events  []domain.Event `json:"events"`
	Total   int            `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// Ready reports whether the server is up and has a license key.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	var payload struct {
		Status   string `json:"status"`
		Licensed *bool  `json:"licensed"`
	}
	if err := c.do(ctx, http.MethodGet, "/ready", nil, &payload); err != nil {
		return false, err
	}
	return payload.Licensed != nil && *payload.Licensed, nil
}

// License returns the rendered license status. cached skips the remote check.
func (c *Client) License(ctx context.Context, cached bool) (*service.LicenseStatus, error) {
	path := "/api/v1/license"
	if cached {
		path += "?cached=true"
	}
	var st service.LicenseStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetLicenseKey stores a new license key.
func (c *Client) SetLicenseKey(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/license/key", map[string]string{"licenseKey": key}, nil)
}

// Settings returns the global settings.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings applies a partial settings patch.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodPut, "/api/v1/settings", patch, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Modes returns every reply mode.
func (c *Client) Modes(ctx context.Context) (*Modes, error) {
	var m Modes
	if err := c.do(ctx, http.MethodGet, "/api/v1/modes", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SetModeEnabled toggles one mode, keeping its label and prompt.
func (c *Client) SetModeEnabled(ctx context.Context, mode domain.ModeConfig, enabled bool) (*Modes, error) {
	edit := service.ModeEdit{
		ID:             mode.ID,
		Label:          mode.Label,
		PromptTemplate: mode.PromptTemplate,
		Enabled:        &enabled,
	}
	body := map[string]any{"modes": []service.ModeEdit{edit}}

	var m Modes
	if err := c.do(ctx, http.MethodPut, "/api/v1/modes", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Personas returns the saved personas.
func (c *Client) Personas(ctx context.Context) (*Personas, error) {
	var p Personas
	if err := c.do(ctx, http.MethodGet, "/api/v1/personas", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddPersona creates a persona.
func (c *Client) AddPersona(ctx context.Context, name, description string) (*Personas, error) {
	body := map[string]string{"name": name, "description": description}
	var p Personas
	if err := c.do(ctx, http.MethodPost, "/api/v1/personas", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetActivePersona selects a persona. An empty id selects the default voice.
func (c *Client) SetActivePersona(ctx context.Context, id string) (*Personas, error) {
	var p Personas
	if err := c.do(ctx, http.MethodPost, "/api/v1/personas/active", map[string]string{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// History returns recent replies, newest first.
func (c *Client) History(ctx context.Context) ([]domain.HistoryItem, error) {
	var payload struct {
		Items []domain.HistoryItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/history", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// ClearHistory removes all history entries.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/history", nil, nil)
}

// PurgeCache drops every cached reply.
func (c *Client) PurgeCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cache", nil, nil)
}

// Events returns the newest activity entries.
func (c *Client) Events(ctx context.Context, limit int) (*Events, error) {
	if limit <= 0 {
		limit = 50
	}
	path := "/api/v1/events?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()

	var e Events
	if err := c.do(ctx, http.MethodGet, path, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "xreply-tui")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the server's {"error": ...} message.
func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
