// Package handlers exposes the checker over HTTP.
package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	singleflight "golang.org/x/sync/singleflight"
	rate "golang.org/x/time/rate"

	"modcheck/internal/checker"
	"modcheck/internal/telemetry"
	"modcheck/internal/watch"
)

// Options configures the API.
type Options struct {
	MaxBatch         int
	BatchesPerMinute int
	AdminToken       string
}

const maxBodyBytes = 1 << 20

var (
	lookupSF singleflight.Group

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

// newBatchLimiter allows perMinute batch submissions a minute with bursts of
// the same size. Zero disables limiting.
func newBatchLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// New returns the API router. db may be nil, in which case runs are not
// persisted and the run and watchlist routes are not mounted.
func New(db *sql.DB, runner *checker.Runner, watcher *watch.Checker, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(telemetry.HTTP)

	limiter := newBatchLimiter(opts.BatchesPerMinute)

	r.Get("/healthz", healthHandler())
	r.Post("/api/check-mods", checkModsHandler(db, runner, limiter, opts.MaxBatch))
	r.Get("/api/check-mods", methodNotAllowed(http.MethodPost))
	r.Get("/api/check-mods/ws", checkModsWSHandler(db, runner, limiter, opts.MaxBatch))
	r.Post("/api/search-mods", searchModsHandler(runner, limiter, opts.MaxBatch))

	if db == nil {
		return r
	}
	r.Get("/api/runs", listRunsHandler(db))
	r.Get("/api/runs/{id}", getRunHandler(db))
	r.Get("/api/runs/{id}/graph", runGraphHandler(db))
	r.Get("/api/runs/{id}/diff", runDiffHandler(db))

	r.Get("/api/watchlists", listWatchlistsHandler(db))
	r.Group(func(g chi.Router) {
		g.Use(requireAuth(opts.AdminToken))
		g.Post("/api/watchlists", createWatchlistHandler(db, opts.MaxBatch))
		g.Delete("/api/watchlists/{id:\\d+}", deleteWatchlistHandler(db))
		g.Post("/api/watchlists/{id:\\d+}/check", checkWatchlistHandler(db, watcher))
	})
	return r
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
