// Package shadow is the HTTP client for the remote reply generation API.
package shadow

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
	// LicenseHeader carries the user's license key on generate calls.
	LicenseHeader = "X-License-Key"

	fallbackMessage = "Shadow Intern server error"
)

// Client generates replies remotely.
type Client interface {
	// Generate sends req authenticated with licenseKey and returns the reply
	// text verbatim.
	Generate(ctx context.Context, licenseKey string, req Request) (string, error)
}

// RequestSettings is the per-request generation configuration.
type RequestSettings struct {
	MaxChars       int    `json:"maxChars"`
	Tone           string `json:"tone"`
	Humanize       bool   `json:"humanize"`
	ModeID         string `json:"modeId"`
	ModeLabel      string `json:"modeLabel"`
	PromptTemplate string `json:"promptTemplate"`
}

// Request is the generate endpoint body. Persona is sent as null when unset.
type Request struct {
	Mode          string          `json:"mode"`
	TweetText     string          `json:"tweetText"`
	ImageURLs     []string        `json:"imageUrls"`
	HasVideo      bool            `json:"hasVideo"`
	VideoHints    []string        `json:"videoHints"`
	Settings      RequestSettings `json:"settings"`
	GeneralPrompt string          `json:"generalPrompt"`
	Persona       *domain.Persona `json:"persona"`
}

type generateResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error"`
}

// HTTPClient implements Client using HTTP requests to the generate endpoint.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a new generation client.
func NewClient(cfg config.RemoteConfig) *HTTPClient {
	return &HTTPClient{
		url: cfg.GenerateURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Generate implements Client. A non-2xx answer becomes a *domain.RemoteError
// carrying the server's message and status; a transport failure becomes a
// *domain.NetworkError.
func (c *HTTPClient) Generate(ctx context.Context, licenseKey string, req Request) (string, error) {
	if req.ImageURLs == nil {
		req.ImageURLs = []string{}
	}
	if req.VideoHints == nil {
		req.VideoHints = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(LicenseHeader, licenseKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.NetworkError{Op: "generate", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.NetworkError{Op: "generate", Err: fmt.Errorf("read response: %w", err)}
	}

	var genResp generateResponse
	decodeErr := json.Unmarshal(respBody, &genResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.NewRemoteError("generate", resp.StatusCode, genResp.Error, fallbackMessage)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("unmarshal response: %w", decodeErr)
	}
	if strings.TrimSpace(genResp.Reply) == "" {
		return "", domain.ErrEmptyReply
	}

	return genResp.Reply, nil
}
