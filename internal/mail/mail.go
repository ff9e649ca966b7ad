// Package mail implements the outbound email collaborator.
package mail

import (
	"context"
	"errors"
	"fmt"

	"briefing_agent/internal/model"
)

// Sender is the interface for delivering a formatted briefing.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (*model.DeliveryReceipt, error)
}

// ProviderError is a transient delivery failure. Callers may retry it.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("email provider failure: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// InvalidRecipientError marks an address that can never be delivered to.
type InvalidRecipientError struct {
	To     string
	Reason string
}

func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient %q: %s", e.To, e.Reason)
}

// IsRetryable reports whether a delivery failure is worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
