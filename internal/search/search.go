// Package search implements the news search collaborator.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"briefing_agent/internal/model"
)

// Provider is the interface for news article search backends.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.Article, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderError is a transient backend failure (network error, rate limit,
// 5xx). Callers may retry it.
type ProviderError struct {
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search provider failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("search provider failure: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidQueryError marks a query the backend rejected as malformed.
// Retrying the same query cannot succeed.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Reason)
}

// IsRetryable reports whether a search failure is worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
