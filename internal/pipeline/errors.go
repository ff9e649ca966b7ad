package pipeline

import "fmt"

// Outcome is the terminal status of one run.
type Outcome string

// Run outcomes.
const (
	OutcomeDelivered     Outcome = "delivered"
	OutcomeEmpty         Outcome = "empty"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
	OutcomeFailed        Outcome = "failed"
)

// QuotaDeniedError aborts the run with outcome quota_exceeded.
type QuotaDeniedError struct {
	Category string
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("quota exhausted for category %s", e.Category)
}
