// Package llm implements the reasoning collaborator: query analysis and
// article summarization.
package llm

import (
	"context"
	"errors"
	"fmt"

	"briefing_agent/internal/model"
)

// Client is the interface for LLM-backed reasoning operations.
type Client interface {
	AnalyzeTopics(ctx context.Context, topics []string) ([]string, error)
	Summarize(ctx context.Context, article model.Article) (string, error)
}

// ProviderError is a transient backend failure. Callers may retry it.
type ProviderError struct {
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm provider failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("llm provider failure: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ContentPolicyError marks content the backend refused to process. It is
// fatal for that one article only; the run continues without it.
type ContentPolicyError struct {
	Reason string
}

func (e *ContentPolicyError) Error() string {
	return fmt.Sprintf("content policy rejection: %s", e.Reason)
}

// IsRetryable reports whether an LLM failure is worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
