// Package trigger turns timer firings into scheduled briefing runs.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"briefing_agent/internal/model"
	"briefing_agent/internal/pipeline"
	"briefing_agent/internal/storage"
)

// Runner is the interface for executing a briefing run.
type Runner interface {
	Run(ctx context.Context, prefs model.UserPreferences, trigger pipeline.TriggerKind) pipeline.Result
}

// Cron fans out scheduled briefing runs. It fires once a minute; the
// per-user schedule gate inside the pipeline decides which users are due.
// Each user gets at most one non-skipped run per UTC day, since the tick
// interval is finer than the send-time tolerance window.
type Cron struct {
	store  storage.Storage
	runner Runner
	log    *slog.Logger
	now    func() time.Time

	wg  sync.WaitGroup
	mu  sync.Mutex
	ran map[string]string // user id -> UTC date of the last non-skipped run
}

// NewCron creates a scheduled trigger backed by the given storage.
func NewCron(store storage.Storage, runner Runner, log *slog.Logger) *Cron {
	return &Cron{
		store:  store,
		runner: runner,
		log:    log,
		now:    time.Now,
		ran:    make(map[string]string),
	}
}

// Run starts the trigger loop, blocking until ctx is cancelled. In-flight
// runs are drained before it returns.
func (c *Cron) Run(ctx context.Context) error {
	sched := cron.New()
	if _, err := sched.AddFunc("* * * * *", func() { c.fanOut(ctx) }); err != nil {
		return err
	}
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()
	c.wg.Wait()
	return nil
}

func (c *Cron) fanOut(ctx context.Context) {
	users, err := c.store.ListActiveUsers(ctx)
	if err != nil {
		c.log.Error("list active users", "error", err)
		return
	}

	today := c.now().UTC().Format("2006-01-02")
	for _, prefs := range users {
		if ctx.Err() != nil {
			return
		}
		if c.ranToday(prefs.UserID, today) {
			continue
		}
		c.wg.Add(1)
		go func(p model.UserPreferences) {
			defer c.wg.Done()
			res := c.runner.Run(ctx, p, pipeline.TriggerScheduled)
			if res.Outcome == pipeline.OutcomeSkipped {
				return
			}
			c.markRan(p.UserID, today)
			if res.Outcome == pipeline.OutcomeFailed {
				c.log.Error("scheduled run failed", "user_id", p.UserID, "errors", res.Errors)
			}
		}(prefs)
	}
}

func (c *Cron) ranToday(userID, today string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ran[userID] == today
}

func (c *Cron) markRan(userID, today string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ran[userID] = today
}
