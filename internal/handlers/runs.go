package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"modcheck/internal/depgraph"
	"modcheck/internal/httpx"
	"modcheck/internal/reconcile"
	"modcheck/internal/store"
)

func listRunsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				httpx.Write(w, r, httpx.BadRequest("limit must be between 1 and 500"))
				return
			}
			limit = n
		}
		runs, err := store.ListRuns(db, limit)
		if err != nil {
			httpx.Write(w, r, httpx.Internal(err))
			return
		}
		httpx.JSON(w, http.StatusOK, runs)
	}
}

// loadRun fetches the run named by the {id} URL parameter, writing the
// error response itself when it fails.
func loadRun(w http.ResponseWriter, r *http.Request, db *sql.DB, id string) (*store.Run, bool) {
	run, err := store.GetRun(db, id)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.Write(w, r, httpx.NotFound("run not found"))
		return nil, false
	}
	if err != nil {
		httpx.Write(w, r, httpx.Internal(err))
		return nil, false
	}
	return run, true
}

func getRunHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := loadRun(w, r, db, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		httpx.JSON(w, http.StatusOK, run)
	}
}

func runGraphHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := loadRun(w, r, db, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		g := depgraph.Build(run.Results)
		switch r.URL.Query().Get("format") {
		case "", "json":
			httpx.JSON(w, http.StatusOK, g)
		case "dot":
			w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
			g.WriteDOT(w)
		default:
			httpx.Write(w, r, httpx.BadRequest("format must be json or dot"))
		}
	}
}

type diffResponse struct {
	Run     string             `json:"run"`
	Against string             `json:"against"`
	Changes []reconcile.Change `json:"changes"`
}

func runDiffHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := loadRun(w, r, db, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		var prev *store.Run
		if against := r.URL.Query().Get("against"); against != "" {
			if prev, ok = loadRun(w, r, db, against); !ok {
				return
			}
		} else {
			p, err := store.PreviousRun(db, run)
			if errors.Is(err, sql.ErrNoRows) {
				httpx.Write(w, r, httpx.NotFound("no previous run to compare with"))
				return
			}
			if err != nil {
				httpx.Write(w, r, httpx.Internal(err))
				return
			}
			if p.Results, err = store.RunResults(db, p.ID); err != nil {
				httpx.Write(w, r, httpx.Internal(err))
				return
			}
			prev = p
		}
		httpx.JSON(w, http.StatusOK, diffResponse{
			Run:     run.ID,
			Against: prev.ID,
			Changes: reconcile.Compare(prev.Results, run.Results),
		})
	}
}
