// Package quota enforces per-category, per-period call budgets against the
// external search provider.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"briefing_agent/internal/model"
	"briefing_agent/internal/storage"
)

// Category identifies a call budget.
type Category string

// Budget categories. Scheduled and interactive budgets reset daily, the
// aggregate monthly. Period buckets are computed from the wall-clock date in
// UTC, independent of any subscriber's local timezone.
const (
	CategoryScheduled   Category = "scheduled-briefing"
	CategoryInteractive Category = "interactive-query"
	CategoryMonthly     Category = "monthly-total"
)

const (
	dailyBucketLayout   = "2006-01-02"
	monthlyBucketLayout = "2006-01"
)

// Caps holds the hard limits per category. The monthly aggregate takes
// precedence: a call inside its daily budget is still denied once the
// aggregate is exhausted.
type Caps struct {
	ScheduledDaily   int
	InteractiveDaily int
	MonthlyTotal     int
}

// DefaultCaps returns the production budgets.
func DefaultCaps() Caps {
	return Caps{ScheduledDaily: 18, InteractiveDaily: 20, MonthlyTotal: 980}
}

// Ledger tracks and enforces call budgets through conditional writes on the
// backing store, so concurrent runs in separate processes share one budget.
type Ledger struct {
	store storage.Storage
	caps  Caps
	log   *slog.Logger
	now   func() time.Time
}

// New creates a Ledger over the given store.
func New(store storage.Storage, caps Caps, log *slog.Logger) *Ledger {
	return &Ledger{store: store, caps: caps, log: log, now: time.Now}
}

// SetNow overrides the clock (useful for testing period rollover).
func (l *Ledger) SetNow(now func() time.Time) {
	l.now = now
}

// TryConsume atomically checks and increments the category counter and the
// monthly aggregate. It is granted only if neither cap would be exceeded;
// on denial no counter is mutated.
func (l *Ledger) TryConsume(ctx context.Context, cat Category, amount int) (bool, error) {
	nowUTC := l.now().UTC()

	var limit int
	switch cat {
	case CategoryScheduled:
		limit = l.caps.ScheduledDaily
	case CategoryInteractive:
		limit = l.caps.InteractiveDaily
	default:
		return false, fmt.Errorf("unknown quota category %q", cat)
	}

	grants := []model.QuotaGrant{
		{Category: string(cat), Bucket: nowUTC.Format(dailyBucketLayout), Amount: amount, Cap: limit},
		{Category: string(CategoryMonthly), Bucket: nowUTC.Format(monthlyBucketLayout), Amount: amount, Cap: l.caps.MonthlyTotal},
	}

	granted, err := l.store.TryConsumeQuota(ctx, grants)
	if err != nil {
		return false, fmt.Errorf("try consume %s: %w", cat, err)
	}
	if !granted {
		l.log.Warn("quota denied", "category", string(cat), "amount", amount)
	}
	return granted, nil
}

// Used returns the consumed count for a category in the current period.
func (l *Ledger) Used(ctx context.Context, cat Category) (int, error) {
	nowUTC := l.now().UTC()
	bucket := nowUTC.Format(dailyBucketLayout)
	if cat == CategoryMonthly {
		bucket = nowUTC.Format(monthlyBucketLayout)
	}
	return l.store.QuotaUsed(ctx, string(cat), bucket)
}
