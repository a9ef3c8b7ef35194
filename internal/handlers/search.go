package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	rate "golang.org/x/time/rate"

	"modcheck/internal/checker"
	"modcheck/internal/httpx"
	"modcheck/internal/mods"
)

type searchRequest struct {
	SearchTerms []string `json:"searchTerms" validate:"omitempty,dive,max=200"`
	ModID       string   `json:"modId" validate:"omitempty,max=300"`
}

func searchModsHandler(runner *checker.Runner, limiter *rate.Limiter, maxBatch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, herr := readBody(w, r)
		if herr != nil {
			httpx.Write(w, r, herr)
			return
		}
		var req searchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			httpx.Write(w, r, httpx.BadRequest("invalid json"))
			return
		}
		if herr := validatePayload(&req); herr != nil {
			httpx.Write(w, r, herr)
			return
		}
		switch {
		case req.ModID != "":
			lookupHandler(w, r, runner, req.ModID)
		case len(req.SearchTerms) > 0:
			if maxBatch > 0 && len(req.SearchTerms) > maxBatch {
				httpx.Write(w, r, httpx.TooLarge("too many search terms"))
				return
			}
			if !limiter.Allow() {
				httpx.Write(w, r, httpx.TooManyRequests("too many batches, try again later"))
				return
			}
			stream, ok := newNDJSON(w)
			if !ok {
				httpx.Write(w, r, httpx.Internal(errors.New("streaming unsupported")))
				return
			}
			if _, err := runner.Search(r.Context(), req.SearchTerms, stream.emit); err != nil {
				log.Warn().Err(err).Msg("search batch stopped")
			}
		default:
			httpx.Write(w, r, httpx.BadRequest("searchTerms or modId required"))
		}
	}
}

// lookupHandler resolves one mod. Concurrent lookups of the same id share a
// single fetch.
func lookupHandler(w http.ResponseWriter, r *http.Request, runner *checker.Runner, raw string) {
	id, err := mods.ParseID(raw)
	if err != nil {
		httpx.Write(w, r, err)
		return
	}
	v, err, _ := lookupSF.Do(id, func() (any, error) {
		return runner.Lookup(context.WithoutCancel(r.Context()), id)
	})
	if err != nil {
		httpx.Write(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v.(*checker.Lookup))
}
