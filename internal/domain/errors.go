package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors. Messages that are shown to users verbatim are capitalized
// and punctuated as UI text rather than following Go error string style.
var (
	// ErrMissingLicenseKey is returned before any network call when no key is configured.
	ErrMissingLicenseKey = errors.New("Missing Shadow Intern license key")

	// ErrModeDisabled is returned when the selected mode has been switched off.
	ErrModeDisabled = errors.New("Selected mode is disabled. Update your options page.")

	// ErrUnknownMode is returned when a mode id is empty or not a preset.
	ErrUnknownMode = errors.New("unknown reply mode")

	// ErrNoActiveMode is returned when every mode is disabled.
	ErrNoActiveMode = errors.New("Enable at least one mode in the options page.")

	// ErrTweetNotFound is returned when no tweet container can be isolated.
	ErrTweetNotFound = errors.New("Could not find tweet. Please try clicking the button again.")

	// ErrEmptyTweet is returned when the tweet has neither text nor images.
	ErrEmptyTweet = errors.New("Tweet has no text or images to reply to.")

	// ErrTriggerNotFound is returned when the submitted markup has no trigger element.
	ErrTriggerNotFound = errors.New("trigger element not found")

	// ErrTooManyPersonas is returned when saving more than MaxPersonas.
	ErrTooManyPersonas = errors.New("Maximum 3 personas allowed")

	// ErrEmptyPersona is returned when adding a persona with neither a name nor a description.
	ErrEmptyPersona = errors.New("Persona needs a name or a description")

	// ErrInvalidImport is returned when an import payload cannot be read.
	ErrInvalidImport = errors.New("invalid settings file")

	// ErrPersonaNotFound is returned when a persona id is unknown.
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrKeyNotFound is returned by stores when a key is absent.
	ErrKeyNotFound = errors.New("key not found")

	// ErrEmptyReply is returned when the generator answers without text.
	ErrEmptyReply = errors.New("empty reply from server")
)

// MaxPersonas is the number of personas that may be saved.
const MaxPersonas = 3

// License error codes reported by the license client.
const (
	LicenseCodeNoKey   = "NO_LICENSE_KEY"
	LicenseCodeInvalid = "INVALID_LICENSE"
	LicenseCodeNetwork = "NETWORK_ERROR"
)

// RemoteError is a non-success answer from a remote service.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NewRemoteError creates a new RemoteError, substituting fallback when the
// server supplied no message.
func NewRemoteError(op string, status int, message, fallback string) *RemoteError {
	if message == "" {
		message = fallback
	}
	return &RemoteError{Op: op, Status: status, Message: message}
}

// NetworkError wraps a request that could not complete.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// LicenseError is the result of a failed license lookup.
type LicenseError struct {
	Code    string
	Status  int
	Reason  string
	Message string
	Err     error
}

func (e *LicenseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *LicenseError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a transport failure rather than a rejection.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var licErr *LicenseError
	return errors.As(err, &licErr) && licErr.Code == LicenseCodeNetwork
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Status
	}
	var licErr *LicenseError
	if errors.As(err, &licErr) {
		return licErr.Status
	}
	return 0
}

// HTTPStatus maps an error onto the status the relay API answers with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrMissingLicenseKey),
		errors.Is(err, ErrModeDisabled),
		errors.Is(err, ErrUnknownMode),
		errors.Is(err, ErrNoActiveMode),
		errors.Is(err, ErrEmptyTweet),
		errors.Is(err, ErrTooManyPersonas),
		errors.Is(err, ErrEmptyPersona),
		errors.Is(err, ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, ErrTweetNotFound),
		errors.Is(err, ErrTriggerNotFound),
		errors.Is(err, ErrPersonaNotFound),
		errors.Is(err, ErrKeyNotFound):
		return http.StatusNotFound
	case IsNetwork(err):
		return http.StatusBadGateway
	}
	if status := StatusOf(err); status >= 400 {
		return status
	}
	return http.StatusInternalServerError
}
