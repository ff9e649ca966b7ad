// Package dedup decides which candidate articles are novel for a user and
// records acceptance.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"briefing_agent/internal/model"
	"briefing_agent/internal/storage"
)

// Engine filters articles against a user's delivery history. Filtering is
// user-level only: an article another subscriber already received is still
// fresh for this one. Global first sightings are tracked for analytics.
type Engine struct {
	store storage.Storage
	log   *slog.Logger
	now   func() time.Time
}

// New creates an Engine over the given store.
func New(store storage.Storage, log *slog.Logger) *Engine {
	return &Engine{store: store, log: log, now: time.Now}
}

// Filter returns the articles whose fingerprints have never been delivered to
// userID. It is read-only and consistent with the latest committed state;
// near-simultaneous runs for the same user are resolved at Commit, which is
// idempotent.
func (e *Engine) Filter(ctx context.Context, articles []model.Article, userID string) ([]model.Article, error) {
	var fresh []model.Article
	seenGlobally := 0

	for _, a := range articles {
		fp := a.Fingerprint()

		delivered, err := e.store.IsDelivered(ctx, fp, userID)
		if err != nil {
			return nil, fmt.Errorf("check delivered %s: %w", fp, err)
		}
		if delivered {
			e.log.Debug("duplicate for user", "fingerprint", fp, "user_id", userID, "title", a.Title)
			continue
		}

		// Analytics only: never filters, each user's briefing is independent.
		seen, err := e.store.SeenByAnyUser(ctx, fp)
		if err != nil {
			return nil, fmt.Errorf("check seen %s: %w", fp, err)
		}
		if seen {
			seenGlobally++
		}

		fresh = append(fresh, a)
	}

	e.log.Info("deduplication",
		"user_id", userID,
		"candidates", len(articles),
		"fresh", len(fresh),
		"seen_by_others", seenGlobally,
	)
	return fresh, nil
}

// Commit records the articles as delivered to userID. Each mark is an atomic
// add-if-absent on the (fingerprint, user) pair; committing the same pair
// twice is a no-op, so a crashed run can safely re-execute its Store stage.
func (e *Engine) Commit(ctx context.Context, articles []model.Article, userID string) error {
	firstSeen := e.now().UTC()
	for _, a := range articles {
		fp := a.Fingerprint()
		if err := e.store.RecordArticle(ctx, fp, firstSeen); err != nil {
			return fmt.Errorf("record article %s: %w", fp, err)
		}
		if err := e.store.MarkDelivered(ctx, fp, userID); err != nil {
			return fmt.Errorf("mark delivered %s: %w", fp, err)
		}
	}
	return nil
}
