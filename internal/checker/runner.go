// Package checker runs batches of mod checks against a page source.
//
// A batch is strictly sequential: one fetch in flight at a time, a fixed
// pacing delay between items and a bounded number of retries per item.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"modcheck/internal/mods"
	"modcheck/internal/reconcile"
	"modcheck/internal/summary"
	"modcheck/internal/telemetry"
)

// Source supplies catalog data. Implementations must be safe for use by
// concurrent batches.
type Source interface {
	Name() string
	ModPage(ctx context.Context, modID string) (mods.PageData, error)
	Search(ctx context.Context, term string) ([]mods.SearchCandidate, error)
	ChangelogVersion(ctx context.Context, modID string) (string, error)
}

// Options tunes retry and pacing.
type Options struct {
	MaxRetries  int
	RetryDelay  time.Duration
	PacingDelay time.Duration
}

// DefaultOptions returns three retries two seconds apart and one second between items.
func DefaultOptions() Options {
	return Options{MaxRetries: 3, RetryDelay: 2 * time.Second, PacingDelay: time.Second}
}

// sleep waits for d or until ctx is done. Declared as a variable so tests
// can stub out actual sleeping.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var now = time.Now

// Runner executes batches. A Runner holds no per-batch state and may serve
// several batches at once.
type Runner struct {
	src  Source
	opts Options
}

// New returns a Runner reading from src.
func New(src Source, opts Options) *Runner {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Runner{src: src, opts: opts}
}

// Report is the outcome of one batch.
type Report struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Summary    summary.Summary    `json:"summary"`
	Results    []mods.CheckResult `json:"results"`
}

// Run checks every mod of list in order. Per-mod failures become error
// results and the batch continues; only malformed input or cancellation of
// ctx stop it. On cancellation the partial report is returned with an error
// wrapping ctx.Err() and no Complete event is emitted.
func (r *Runner) Run(ctx context.Context, list []mods.ModRef, emit Emit) (*Report, error) {
	if err := mods.Validate(list); err != nil {
		return nil, err
	}
	if emit == nil {
		emit = discard
	}
	declared := reconcile.NewIDSet(list)
	rep := &Report{
		ID:        uuid.NewString(),
		Source:    r.src.Name(),
		StartedAt: now().UTC(),
		Results:   make([]mods.CheckResult, 0, len(list)),
	}
	for i, m := range list {
		if err := ctx.Err(); err != nil {
			return rep, canceled(i, len(list), err)
		}
		emit(&Progress{Type: EventProgress, Current: i + 1, Total: len(list), ModName: m.Name})

		page, attempts, err := retry(ctx, r.opts, func(ctx context.Context) (mods.PageData, error) {
			return r.src.ModPage(ctx, m.ModID)
		})
		var res mods.CheckResult
		if err != nil {
			if ctx.Err() != nil {
				return rep, canceled(i, len(list), ctx.Err())
			}
			res = reconcile.Failed(m, err, attempts)
		} else {
			res = reconcile.Check(m, page, declared)
			res.Attempts = attempts
		}
		rep.Results = append(rep.Results, res)
		telemetry.EventCtx(ctx, "mod_checked", map[string]string{
			"run_id":   rep.ID,
			"mod_id":   m.ModID,
			"status":   string(res.Status),
			"attempts": strconv.Itoa(attempts),
		})

		if i < len(list)-1 {
			if err := sleep(ctx, r.opts.PacingDelay); err != nil {
				return rep, canceled(i+1, len(list), err)
			}
		}
	}
	rep.FinishedAt = now().UTC()
	rep.Summary = summary.Summarize(rep.Results)
	emit(&Complete{
		Type:      EventComplete,
		RunID:     rep.ID,
		Timestamp: rep.FinishedAt,
		Summary:   rep.Summary,
		Results:   rep.Results,
	})
	return rep, nil
}

func canceled(done, total int, err error) error {
	return fmt.Errorf("batch stopped after %d of %d mods: %w", done, total, err)
}

// retry calls fn until it succeeds, returns a permanent error, or the
// retry budget is spent. fn runs detached from ctx cancellation so an
// in-flight fetch is never cut short; the delays between attempts are not.
func retry[T any](ctx context.Context, opts Options, fn func(context.Context) (T, error)) (T, int, error) {
	var (
		zero     T
		lastErr  error
		attempts int
	)
	fetchCtx := context.WithoutCancel(ctx)
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, opts.RetryDelay); err != nil {
				return zero, attempts, err
			}
		}
		attempts++
		v, err := fn(fetchCtx)
		if err == nil {
			return v, attempts, nil
		}
		lastErr = err
		if errors.Is(err, mods.ErrNotFound) {
			break
		}
		telemetry.EventCtx(ctx, "fetch_attempt_failed", map[string]string{
			"attempt": strconv.Itoa(attempts),
			"error":   err.Error(),
		})
	}
	return zero, attempts, lastErr
}
