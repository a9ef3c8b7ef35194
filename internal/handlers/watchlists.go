package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"modcheck/internal/httpx"
	"modcheck/internal/mods"
	"modcheck/internal/store"
	"modcheck/internal/watch"
)

func listWatchlistsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lists, err := store.ListWatchlists(db)
		if err != nil {
			httpx.Write(w, r, httpx.Internal(err))
			return
		}
		httpx.JSON(w, http.StatusOK, lists)
	}
}

type watchlistRequest struct {
	Name string          `json:"name" validate:"required,max=100"`
	Mods json.RawMessage `json:"mods" validate:"required"`
}

func createWatchlistHandler(db *sql.DB, maxBatch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, herr := readBody(w, r)
		if herr != nil {
			httpx.Write(w, r, herr)
			return
		}
		var req watchlistRequest
		if err := json.Unmarshal(data, &req); err != nil {
			httpx.Write(w, r, httpx.BadRequest("invalid json"))
			return
		}
		if herr := validatePayload(&req); herr != nil {
			httpx.Write(w, r, herr)
			return
		}
		var list []mods.ModRef
		if err := json.Unmarshal(req.Mods, &list); err != nil {
			httpx.Write(w, r, httpx.BadRequest("mods must be an array"))
			return
		}
		if err := mods.Validate(list); err != nil {
			httpx.Write(w, r, err)
			return
		}
		if maxBatch > 0 && len(list) > maxBatch {
			httpx.Write(w, r, httpx.TooLarge("watchlist exceeds the batch limit"))
			return
		}
		wl := &store.Watchlist{Name: req.Name, Mods: list}
		if err := store.InsertWatchlist(db, wl); err != nil {
			httpx.Write(w, r, httpx.Internal(err))
			return
		}
		httpx.JSON(w, http.StatusCreated, wl)
	}
}

func watchlistID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func deleteWatchlistHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := watchlistID(r)
		if err != nil {
			httpx.Write(w, r, httpx.BadRequest("invalid id"))
			return
		}
		if err := store.DeleteWatchlist(db, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.Write(w, r, httpx.NotFound("watchlist not found"))
				return
			}
			httpx.Write(w, r, httpx.Internal(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func checkWatchlistHandler(db *sql.DB, watcher *watch.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := watchlistID(r)
		if err != nil {
			httpx.Write(w, r, httpx.BadRequest("invalid id"))
			return
		}
		wl, err := store.GetWatchlist(db, id)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Write(w, r, httpx.NotFound("watchlist not found"))
			return
		}
		if err != nil {
			httpx.Write(w, r, httpx.Internal(err))
			return
		}
		if watcher == nil {
			httpx.Write(w, r, httpx.Unavailable("watchlist checks disabled"))
			return
		}
		out, err := watcher.CheckOne(r.Context(), wl)
		if err != nil {
			httpx.Write(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}
