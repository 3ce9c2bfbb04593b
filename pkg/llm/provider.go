package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProviderUnreachable       = errors.New("provider unreachable")
	ErrProviderMalformedResponse = errors.New("provider returned a malformed response")
)

// ModelLister is the discovery surface of an OpenAI-compatible server.
type ModelLister interface {
	// ListModels returns the model ids served at baseURL, in response order.
	ListModels(ctx context.Context, baseURL string) ([]string, error)

	// Ping reports whether the models endpoint answers with a success status.
	Ping(ctx context.Context, baseURL string) error
}

// DiscoveryError describes a failed call against the models endpoint.
type DiscoveryError struct {
	// URL is the attempted endpoint.
	URL string
	// Malformed is set when the server answered but the body lacked the
	// expected shape.
	Malformed bool
	// StatusCode is the HTTP status if one was received.
	StatusCode int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("malformed models response from %s: %v", e.URL, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider at %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to connect to provider at %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failure class.
func (e *DiscoveryError) Is(target error) bool {
	if e.Malformed {
		return target == ErrProviderMalformedResponse
	}
	return target == ErrProviderUnreachable
}

// NormalizeBaseURL trims whitespace and trailing slashes.
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// APIBase returns the OpenAI-compatible API root for baseURL.
func APIBase(baseURL string) string {
	return NormalizeBaseURL(baseURL) + "/v1"
}

// ModelsURL returns the models endpoint for baseURL.
func ModelsURL(baseURL string) string {
	return APIBase(baseURL) + "/models"
}
