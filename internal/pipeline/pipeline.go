// Package pipeline sequences the eight-stage briefing workflow and enforces
// stage-level error policy.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"briefing_agent/internal/dedup"
	"briefing_agent/internal/llm"
	"briefing_agent/internal/mail"
	"briefing_agent/internal/model"
	"briefing_agent/internal/quota"
	"briefing_agent/internal/retry"
	"briefing_agent/internal/schedule"
	"briefing_agent/internal/search"
	"briefing_agent/internal/storage"
)

// TriggerKind identifies what fired a run.
type TriggerKind string

// Trigger kinds.
const (
	TriggerScheduled   TriggerKind = "scheduled"
	TriggerInteractive TriggerKind = "interactive"
)

const emailSubject = "Your Daily AI Briefing"

// RunState is the single mutable record threaded through one execution.
// Stages only append; no stage reads a later stage's output. It is discarded
// after the terminal stage, never persisted as-is.
type RunState struct {
	RunID     string
	Prefs     model.UserPreferences
	Trigger   TriggerKind
	Queries   []string
	Articles  []model.Article
	Deduped   []model.Article
	Summaries []model.Summary
	Body      string
	Errors    []string
	Meta      map[string]any
}

func (s *RunState) recordError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Result is what a run hands back. Errors carries every non-fatal failure
// encountered, so partial-failure detail is never silently lost.
type Result struct {
	RunID   string
	Outcome Outcome
	Errors  []string
	Meta    map[string]any
}

// Runner drives the pipeline. Runs for distinct users are independent; one
// Runner may execute them concurrently (the quota ledger and dedup engine are
// the only shared state, and both update their store conditionally).
type Runner struct {
	gate   *schedule.Gate
	ledger *quota.Ledger
	dedup  *dedup.Engine
	search search.Provider
	llm    llm.Client
	sender mail.Sender
	store  storage.Storage
	log    *slog.Logger

	maxResults   int
	searchPolicy retry.Policy
	llmPolicy    retry.Policy
	mailPolicy   retry.Policy
	now          func() time.Time
}

// NewRunner creates a Runner wired to its collaborators.
func NewRunner(
	gate *schedule.Gate,
	ledger *quota.Ledger,
	dedupEngine *dedup.Engine,
	provider search.Provider,
	client llm.Client,
	sender mail.Sender,
	store storage.Storage,
	maxResults int,
	log *slog.Logger,
) *Runner {
	return &Runner{
		gate:         gate,
		ledger:       ledger,
		dedup:        dedupEngine,
		search:       provider,
		llm:          client,
		sender:       sender,
		store:        store,
		log:          log,
		maxResults:   maxResults,
		searchPolicy: retry.DefaultPolicy(search.IsRetryable),
		llmPolicy:    retry.DefaultPolicy(llm.IsRetryable),
		mailPolicy:   retry.DefaultPolicy(mail.IsRetryable),
		now:          time.Now,
	}
}

// SetRetryPolicies overrides the per-collaborator retry policies (useful for
// testing). The per-collaborator error classifiers are kept.
func (r *Runner) SetRetryPolicies(p retry.Policy) {
	searchP, llmP, mailP := p, p, p
	searchP.Retryable = search.IsRetryable
	llmP.Retryable = llm.IsRetryable
	mailP.Retryable = mail.IsRetryable
	r.searchPolicy, r.llmPolicy, r.mailPolicy = searchP, llmP, mailP
}

// SetNow overrides the clock.
func (r *Runner) SetNow(now func() time.Time) {
	r.now = now
}

// Run executes the eight stages strictly in order for one user and trigger.
func (r *Runner) Run(ctx context.Context, prefs model.UserPreferences, trigger TriggerKind) Result {
	st := &RunState{
		RunID:   uuid.NewString(),
		Prefs:   prefs,
		Trigger: trigger,
		Meta:    map[string]any{},
	}
	started := r.now()
	log := r.log.With("run_id", st.RunID, "user_id", prefs.UserID, "trigger", string(trigger))

	outcome := r.run(ctx, st, log)

	st.Meta["duration_ms"] = r.now().Sub(started).Milliseconds()
	log.Info("run finished",
		"outcome", string(outcome),
		"errors", len(st.Errors),
		"summaries", len(st.Summaries),
	)
	return Result{RunID: st.RunID, Outcome: outcome, Errors: st.Errors, Meta: st.Meta}
}

func (r *Runner) run(ctx context.Context, st *RunState, log *slog.Logger) Outcome {
	prefs := st.Prefs

	// Stage 1: gate. Not being due is not an error.
	if st.Trigger == TriggerScheduled {
		due, err := r.gate.IsDue(prefs, r.now().UTC())
		if err != nil {
			st.recordError("schedule gate: %v", err)
			return OutcomeFailed
		}
		if !due {
			log.Debug("not due, skipping")
			return OutcomeSkipped
		}
	}

	// Stage 2: query analysis.
	if outcome := r.analyzeQueries(ctx, st, log); outcome != "" {
		return outcome
	}

	// Stage 3: search.
	if outcome := r.searchArticles(ctx, st, log); outcome != "" {
		return outcome
	}

	// Stage 4: deduplication. Rejected articles are dropped, not errors.
	deduped, err := r.dedup.Filter(ctx, st.Articles, prefs.UserID)
	if err != nil {
		st.recordError("deduplication: %v", err)
		return OutcomeFailed
	}
	st.Deduped = deduped
	st.Meta["duplicates_filtered"] = len(st.Articles) - len(deduped)

	// Stage 5: summarize.
	committed := r.summarize(ctx, st, log)

	// Stage 6: store. Idempotent under re-execution; allowed to finish even
	// when the run context is cancelled mid-stage.
	if len(st.Summaries) > 0 {
		storeCtx := context.WithoutCancel(ctx)
		for i := range st.Summaries {
			if err := r.store.PutSummary(storeCtx, &st.Summaries[i]); err != nil {
				st.recordError("store summary: %v", err)
				return OutcomeFailed
			}
		}
		if err := r.dedup.Commit(storeCtx, committed, prefs.UserID); err != nil {
			st.recordError("commit dedup records: %v", err)
			return OutcomeFailed
		}
		st.Meta["articles_stored"] = len(st.Summaries)
	}

	// Stage 7: format.
	if len(st.Summaries) == 0 {
		return OutcomeEmpty
	}
	st.Body = FormatBriefing(prefs, st.Summaries)

	// Stage 8: email. A failure here is recorded but never rolls back Store:
	// re-offering content the user may already have seen is worse than a
	// missed delivery.
	var receipt *model.DeliveryReceipt
	attempts, err := retry.Do(ctx, r.mailPolicy, func(ctx context.Context) error {
		var sendErr error
		receipt, sendErr = r.sender.Send(ctx, prefs.Email, emailSubject, st.Body)
		return sendErr
	})
	if err != nil {
		st.recordError("email after %d attempts: %v", attempts, err)
		return OutcomeFailed
	}
	st.Meta["message_id"] = receipt.MessageID
	return OutcomeDelivered
}

// analyzeQueries derives search queries from the user's topics, falling back
// to plain "<topic> news" queries when the reasoning collaborator is down.
func (r *Runner) analyzeQueries(ctx context.Context, st *RunState, log *slog.Logger) Outcome {
	var queries []string
	attempts, err := retry.Do(ctx, r.llmPolicy, func(ctx context.Context) error {
		var aerr error
		queries, aerr = r.llm.AnalyzeTopics(ctx, st.Prefs.Topics)
		return aerr
	})
	if err != nil {
		st.recordError("query analysis after %d attempts: %v", attempts, err)
		for _, topic := range st.Prefs.Topics {
			queries = append(queries, topic+" news")
			if len(queries) == 2 {
				break
			}
		}
		log.Warn("query analysis failed, using fallback queries", "error", err, "queries", len(queries))
	}
	if len(queries) == 0 {
		st.recordError("query analysis produced no queries")
		return OutcomeFailed
	}

	st.Queries = queries
	st.Meta["queries_generated"] = len(queries)
	return ""
}

// searchArticles runs every query through the quota ledger and the retry
// executor. Quota denial terminates the run and discards everything
// collected so far: downstream stages assume a complete candidate set.
func (r *Runner) searchArticles(ctx context.Context, st *RunState, log *slog.Logger) Outcome {
	category := quota.CategoryScheduled
	if st.Trigger == TriggerInteractive {
		category = quota.CategoryInteractive
	}

	failedQueries := 0
	for _, query := range st.Queries {
		granted, err := r.ledger.TryConsume(ctx, category, 1)
		if err != nil {
			st.recordError("quota ledger: %v", err)
			return OutcomeFailed
		}
		if !granted {
			st.recordError("%v", &QuotaDeniedError{Category: string(category)})
			st.Articles = nil
			return OutcomeQuotaExceeded
		}

		var found []model.Article
		attempts, err := retry.Do(ctx, r.searchPolicy, func(ctx context.Context) error {
			var serr error
			found, serr = r.search.Search(ctx, query, r.maxResults)
			return serr
		})
		if err != nil {
			failedQueries++
			st.recordError("search %q after %d attempts: %v", query, attempts, err)
			continue
		}
		st.Articles = append(st.Articles, found...)
		log.Debug("search query done", "query", query, "articles", len(found))
	}

	if failedQueries == len(st.Queries) {
		// Search exhausted its retries entirely.
		return OutcomeFailed
	}
	st.Meta["articles_found"] = len(st.Articles)
	return ""
}

// summarize generates summaries per surviving article. A single article's
// failure drops that article only. Returns the articles whose summaries were
// produced, for the Store stage's dedup commit.
func (r *Runner) summarize(ctx context.Context, st *RunState, log *slog.Logger) []model.Article {
	var committed []model.Article
	for _, article := range st.Deduped {
		a := article
		var text string
		attempts, err := retry.Do(ctx, r.llmPolicy, func(ctx context.Context) error {
			var serr error
			text, serr = r.llm.Summarize(ctx, a)
			return serr
		})
		if err != nil {
			st.recordError("summarize %q after %d attempts: %v", a.Title, attempts, err)
			continue
		}

		st.Summaries = append(st.Summaries, model.Summary{
			Fingerprint: a.Fingerprint(),
			UserID:      st.Prefs.UserID,
			Title:       a.Title,
			URL:         a.URL,
			Text:        text,
			GeneratedAt: r.now().UTC(),
		})
		committed = append(committed, a)
	}
	st.Meta["summaries_generated"] = len(st.Summaries)
	return committed
}
