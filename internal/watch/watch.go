// Package watch re-checks stored watchlists and reports drift between runs.
package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"modcheck/internal/checker"
	"modcheck/internal/reconcile"
	"modcheck/internal/store"
	"modcheck/internal/telemetry"
)

// Checker runs watchlists through a Runner and persists the outcome.
type Checker struct {
	db     *sql.DB
	runner *checker.Runner

	// one sweep at a time; a manual check may overlap a scheduled one
	sweep sync.Mutex
}

func New(db *sql.DB, runner *checker.Runner) *Checker {
	return &Checker{db: db, runner: runner}
}

// Outcome is the result of checking one watchlist.
type Outcome struct {
	Run     *store.Run         `json:"run"`
	Changes []reconcile.Change `json:"changes"`
}

// CheckOne runs w, stores the run and compares it with the previous run of w.
// Changes is empty for the first run of a watchlist.
func (c *Checker) CheckOne(ctx context.Context, w *store.Watchlist) (*Outcome, error) {
	prev, err := store.LatestRun(c.db, w.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	rep, err := c.runner.Run(ctx, w.Mods, nil)
	if err != nil {
		return nil, err
	}
	run := store.FromReport(rep, w.ID)
	if err := store.InsertRun(c.db, run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	if err := store.MarkWatchlistChecked(c.db, w.ID, rep.FinishedAt); err != nil {
		return nil, fmt.Errorf("mark checked: %w", err)
	}
	out := &Outcome{Run: run, Changes: []reconcile.Change{}}
	if prev == nil {
		return out, nil
	}
	prevResults, err := store.RunResults(c.db, prev.ID)
	if err != nil {
		return nil, fmt.Errorf("previous results: %w", err)
	}
	out.Changes = reconcile.Changed(reconcile.Compare(prevResults, run.Results))
	for _, ch := range out.Changes {
		telemetry.EventCtx(ctx, "watchlist_drift", map[string]string{
			"watchlist_id": strconv.FormatInt(w.ID, 10),
			"run_id":       run.ID,
			"mod_id":       ch.ModID,
			"kind":         string(ch.Kind),
			"from":         ch.PreviousVersion,
			"to":           ch.CurrentVersion,
			"direction":    ch.Direction,
		})
	}
	return out, nil
}

// CheckAll checks every watchlist in turn. A failing watchlist is logged and
// skipped; cancellation of ctx stops the sweep.
func (c *Checker) CheckAll(ctx context.Context) error {
	c.sweep.Lock()
	defer c.sweep.Unlock()

	lists, err := store.ListWatchlists(c.db)
	if err != nil {
		return fmt.Errorf("list watchlists: %w", err)
	}
	for i := range lists {
		w := &lists[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := c.CheckOne(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Error().Err(err).Int64("watchlist", w.ID).Msg("check watchlist")
			continue
		}
		log.Info().Int64("watchlist", w.ID).Str("run", out.Run.ID).Int("changes", len(out.Changes)).Msg("watchlist checked")
	}
	return nil
}

// Schedule starts a scheduler that calls CheckAll every interval, skipping a
// tick while the previous sweep still runs. It returns nil when interval is 0.
func Schedule(ctx context.Context, c *Checker, interval time.Duration) (*gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, nil
	}
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).SingletonMode().WaitForSchedule().Do(func() {
		if err := c.CheckAll(ctx); err != nil {
			log.Error().Err(err).Msg("watchlist sweep")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule watchlists: %w", err)
	}
	s.StartAsync()
	return s, nil
}
