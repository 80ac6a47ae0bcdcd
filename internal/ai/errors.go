package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

var (
	ErrModelNotFound = errors.New("model not found")
	// ErrUserKeyUnsupported is returned when a user has a stored key for a
	// provider that only runs with the process-wide configuration.
	ErrUserKeyUnsupported = errors.New("provider does not accept user api keys")
	// ErrCredentialUnreadable is matched by stored credentials that exist but
	// cannot be decrypted.
	ErrCredentialUnreadable = errors.New("stored credential unreadable")
)

type ModelNotFoundError struct {
	ID string
}

func (e *ModelNotFoundError) Error() string { return fmt.Sprintf("model not found: %q", e.ID) }

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// CredentialMissingError carries what a client needs to prompt for a key.
type CredentialMissingError struct {
	Provider    string
	DisplayName string
	Setting     string
	HelpURL     string
	Cause       error
}

func newCredentialMissing(info ProviderInfo, cause error) *CredentialMissingError {
	return &CredentialMissingError{
		Provider:    info.Name,
		DisplayName: info.DisplayName,
		Setting:     info.Setting,
		HelpURL:     info.HelpURL,
		Cause:       cause,
	}
}

func (e *CredentialMissingError) Error() string {
	msg := fmt.Sprintf("%s api key is not configured (set %s or add your own key)", e.DisplayName, e.Setting)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CredentialMissingError) Unwrap() error { return e.Cause }

// UpstreamError is a failed vendor call.
type UpstreamError struct {
	Provider    string
	Status      int
	Message     string
	RateLimited bool
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.RateLimited
}

var rateLimitMarkers = []string{"rate limit", "rate_limit", "ratelimit", "quota", "resource_exhausted", "too many requests"}

func looksRateLimited(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func newUpstreamError(provider string, status int, msg string) *UpstreamError {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &UpstreamError{
		Provider:    provider,
		Status:      status,
		Message:     msg,
		RateLimited: status == http.StatusTooManyRequests || looksRateLimited(msg),
	}
}

// upstreamErrorFromResponse reads a bounded error body. Vendors wrap messages
// as {"error":{"message":...}} or {"error":"..."}; anything else is kept raw.
func upstreamErrorFromResponse(provider string, resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return newUpstreamError(provider, resp.StatusCode, extractErrorMessage(body))
}

func extractErrorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		parts := []string{nested.Error.Message}
		if nested.Error.Type != "" {
			parts = append(parts, "("+nested.Error.Type+")")
		}
		if nested.Error.Status != "" {
			parts = append(parts, "("+nested.Error.Status+")")
		}
		return strings.Join(parts, " ")
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}
	return string(body)
}
