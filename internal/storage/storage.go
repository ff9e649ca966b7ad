// Package storage defines the persistence interface and its implementations.
//
// The deduplication and quota operations are the only state shared across
// concurrent runs; both are exposed as conditional writes so that runs in
// separate processes stay correct without in-process locking.
package storage

import (
	"context"
	"errors"
	"time"

	"briefing_agent/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// Preferences.
	UpsertPreferences(ctx context.Context, p *model.UserPreferences) error
	GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error)
	ListActiveUsers(ctx context.Context) ([]model.UserPreferences, error)

	// Deduplication. MarkDelivered is an atomic add-if-absent on the
	// (fingerprint, user) pair; re-marking an existing pair is a no-op.
	RecordArticle(ctx context.Context, fingerprint string, firstSeen time.Time) error
	IsDelivered(ctx context.Context, fingerprint, userID string) (bool, error)
	MarkDelivered(ctx context.Context, fingerprint, userID string) error
	SeenByAnyUser(ctx context.Context, fingerprint string) (bool, error)

	// Summaries. PutSummary is idempotent on (fingerprint, user).
	PutSummary(ctx context.Context, s *model.Summary) error
	ListSummaries(ctx context.Context, userID string) ([]model.Summary, error)

	// Quota. All grants are checked and incremented atomically: either every
	// counter is incremented or none is.
	TryConsumeQuota(ctx context.Context, grants []model.QuotaGrant) (bool, error)
	QuotaUsed(ctx context.Context, category, bucket string) (int, error)

	Close() error
}
