package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	rate "golang.org/x/time/rate"

	"modcheck/internal/checker"
	"modcheck/internal/httpx"
	"modcheck/internal/store"
)

func checkModsHandler(db *sql.DB, runner *checker.Runner, limiter *rate.Limiter, maxBatch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, herr := readBody(w, r)
		if herr != nil {
			httpx.Write(w, r, herr)
			return
		}
		list, herr := parseModList(data, maxBatch)
		if herr != nil {
			httpx.Write(w, r, herr)
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
		rep, err := runner.Run(r.Context(), list, stream.emit)
		if err != nil {
			log.Warn().Err(err).Msg("check batch stopped")
			return
		}
		saveRun(db, rep)
	}
}

func checkModsWSHandler(db *sql.DB, runner *checker.Runner, limiter *rate.Limiter, maxBatch int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxBodyBytes)

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		list, herr := parseModList(payload, maxBatch)
		if herr != nil {
			writeWSError(conn, herr)
			return
		}
		if !limiter.Allow() {
			writeWSError(conn, httpx.TooManyRequests("too many batches, try again later"))
			return
		}

		// The client has nothing more to say; a failed read means it left.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		rep, err := runner.Run(ctx, list, func(e checker.Event) {
			data, err := json.Marshal(e)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				cancel()
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("websocket batch stopped")
			return
		}
		saveRun(db, rep)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "complete"))
	}
}

func saveRun(db *sql.DB, rep *checker.Report) {
	if db == nil {
		return
	}
	if err := store.InsertRun(db, store.FromReport(rep, 0)); err != nil {
		log.Error().Err(err).Str("run", rep.ID).Msg("save run")
	}
}
