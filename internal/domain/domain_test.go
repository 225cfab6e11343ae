package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// =============================================================================
// Settings Tests
// =============================================================================

func TestModeOverride_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantEnabled *bool
		wantLabel   string
		wantPrompt  string
	}{
		{"full override", `{"enabled":false,"label":"Yes","promptTemplate":"p"}`, boolPtr(false), "Yes", "p"},
		{"string enabled ignored", `{"enabled":"false","label":"L"}`, nil, "L", ""},
		{"numeric label ignored", `{"label":5,"promptTemplate":"x"}`, nil, "", "x"},
		{"not an object", `"agree"`, nil, "", ""},
		{"null", `null`, nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o ModeOverride
			if err := json.Unmarshal([]byte(tt.input), &o); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if (o.Enabled == nil) != (tt.wantEnabled == nil) {
				t.Fatalf("Enabled = %v, want %v", o.Enabled, tt.wantEnabled)
			}
			if o.Enabled != nil && *o.Enabled != *tt.wantEnabled {
				t.Errorf("Enabled = %v, want %v", *o.Enabled, *tt.wantEnabled)
			}
			if o.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", o.Label, tt.wantLabel)
			}
			if o.PromptTemplate != tt.wantPrompt {
				t.Errorf("PromptTemplate = %q, want %q", o.PromptTemplate, tt.wantPrompt)
			}
		})
	}
}

func TestModeOverrides_UnmarshalMap(t *testing.T) {
	var overrides ModeOverrides
	input := `{"agree":{"enabled":false},"bogus":{"label":"x"},"funny":[1,2]}`
	if err := json.Unmarshal([]byte(input), &overrides); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(overrides) != 3 {
		t.Fatalf("len = %d, want 3", len(overrides))
	}
	if overrides["agree"].Enabled == nil || *overrides["agree"].Enabled {
		t.Error("agree should be disabled")
	}
}

func TestPersona_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		persona Persona
		want    string
	}{
		{"named", Persona{ID: "persona-1-abc", Name: "Degen Dan"}, "Degen Dan"},
		{"trimmed", Persona{ID: "persona-1-abc", Name: "  Ann  "}, "Ann"},
		{"unnamed uses id suffix", Persona{ID: "persona-123-abcdwxyz"}, "Persona wxyz"},
		{"short id", Persona{ID: "ab"}, "Persona ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.persona.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPersona_IsEmpty(t *testing.T) {
	if !(Persona{ID: "x", Name: " ", Description: "\n"}).IsEmpty() {
		t.Error("whitespace persona should be empty")
	}
	if (Persona{Description: "sharp"}).IsEmpty() {
		t.Error("persona with description should not be empty")
	}
}

// =============================================================================
// Tweet Tests
// =============================================================================

func TestTweetData_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		tweet *TweetData
		want  bool
	}{
		{"nil", nil, true},
		{"no content", &TweetData{TweetID: "1"}, true},
		{"text only", &TweetData{Text: "gm"}, false},
		{"images only", &TweetData{Images: []string{"https://pbs.twimg.com/media/a.jpg"}}, false},
		{"video only", &TweetData{HasVideo: true, VideoHints: []string{VideoHint}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tweet.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewGenerateRequest(t *testing.T) {
	tweet := &TweetData{
		Text:       "hello",
		Images:     []string{"a"},
		HasVideo:   true,
		VideoHints: []string{VideoHint},
	}
	req := NewGenerateRequest("agree", tweet)
	if req.Mode != "agree" || req.TweetText != "hello" || !req.HasVideo {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.ImageURLs) != 1 || len(req.VideoHints) != 1 {
		t.Errorf("media not carried over: %+v", req)
	}
}

// =============================================================================
// License Tests
// =============================================================================

func TestLicenseInfo_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt string
		want      bool
	}{
		{"no expiry", "", false},
		{"past", "2025-05-01T00:00:00Z", true},
		{"future", "2025-07-01T00:00:00Z", false},
		{"date only past", "2025-01-01", true},
		{"garbage", "soon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &LicenseInfo{Valid: true, ExpiresAt: tt.expiresAt}
			if got := info.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
			if got := info.Active(now); got != !tt.want {
				t.Errorf("Active() = %v, want %v", got, !tt.want)
			}
		})
	}
}

func TestLicenseInfo_ActiveRequiresValidFlag(t *testing.T) {
	info := &LicenseInfo{Valid: false, ExpiresAt: "2099-01-01T00:00:00Z"}
	if info.Active(time.Now()) {
		t.Error("invalid license should not be active")
	}
}

func TestLicenseInfo_FreshAt(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ttl := 60 * time.Second
	tests := []struct {
		name     string
		cachedAt int64
		want     bool
	}{
		{"never cached", 0, false},
		{"just cached", now.UnixMilli(), true},
		{"59s old", now.Add(-59 * time.Second).UnixMilli(), true},
		{"exactly 60s", now.Add(-60 * time.Second).UnixMilli(), true},
		{"61s old", now.Add(-61 * time.Second).UnixMilli(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := &LicenseInfo{Valid: true, CachedAt: tt.cachedAt}
			if got := info.FreshAt(now, ttl); got != tt.want {
				t.Errorf("FreshAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLicenseInfo_Unlimited(t *testing.T) {
	remaining := 4
	if (&LicenseInfo{RemainingToday: &remaining}).Unlimited() {
		t.Error("counter present should not be unlimited")
	}
	if !(&LicenseInfo{}).Unlimited() {
		t.Error("absent counter should be unlimited")
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestRemoteError_Fallback(t *testing.T) {
	err := NewRemoteError("generate", 500, "", "Shadow Intern server error")
	if err.Error() != "Shadow Intern server error" {
		t.Errorf("Error() = %q", err.Error())
	}
	if StatusOf(fmt.Errorf("wrapped: %w", err)) != 500 {
		t.Error("StatusOf should see through wrapping")
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Op: "validate license", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("NetworkError should unwrap to inner error")
	}
	if !IsNetwork(fmt.Errorf("call: %w", err)) {
		t.Error("IsNetwork should be true for wrapped NetworkError")
	}
}

func TestIsNetwork_LicenseCode(t *testing.T) {
	if !IsNetwork(&LicenseError{Code: LicenseCodeNetwork}) {
		t.Error("NETWORK_ERROR license error should count as network")
	}
	if IsNetwork(&LicenseError{Code: LicenseCodeInvalid, Status: 403}) {
		t.Error("INVALID_LICENSE should not count as network")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing key", ErrMissingLicenseKey, http.StatusBadRequest},
		{"disabled mode", fmt.Errorf("relay: %w", ErrModeDisabled), http.StatusBadRequest},
		{"unknown mode", ErrUnknownMode, http.StatusBadRequest},
		{"not found", ErrTweetNotFound, http.StatusNotFound},
		{"license rejected", &LicenseError{Code: LicenseCodeInvalid, Status: 403}, 403},
		{"network", &NetworkError{Op: "x", Err: errors.New("eof")}, http.StatusBadGateway},
		{"remote 429", &RemoteError{Status: 429, Message: "Daily limit reached"}, 429},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }
