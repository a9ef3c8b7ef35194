package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"modcheck/internal/checker"
	"modcheck/internal/httpx"
	"modcheck/internal/mods"
)

// ndjson writes one event per line and flushes after each.
type ndjson struct {
	w   http.ResponseWriter
	f   http.Flusher
	enc *json.Encoder
	err error
}

func newNDJSON(w http.ResponseWriter) (*ndjson, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	return &ndjson{w: w, f: f, enc: json.NewEncoder(w)}, true
}

func (s *ndjson) emit(e checker.Event) {
	if s.err != nil {
		return
	}
	if s.err = s.enc.Encode(e); s.err != nil {
		log.Warn().Err(s.err).Msg("write event")
		return
	}
	s.f.Flush()
}

// wsError is the frame sent before closing a websocket on a rejected request.
type wsError struct {
	Type    string            `json:"type"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeWSError(conn *websocket.Conn, he *httpx.HTTPError) {
	data, _ := json.Marshal(wsError{Type: "error", Code: he.Code(), Message: he.Error(), Details: he.Details()})
	_ = conn.WriteMessage(websocket.TextMessage, data)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, he.Code()))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, *httpx.HTTPError) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if he := httpx.From(err); he.Status() == http.StatusRequestEntityTooLarge {
			return nil, he
		}
		return nil, httpx.BadRequest("read body: " + err.Error())
	}
	return data, nil
}

// parseModList reads either {"mods":[...]} or a full server config.
func parseModList(data []byte, maxBatch int) ([]mods.ModRef, *httpx.HTTPError) {
	list, err := mods.ParseConfig(data)
	if err != nil {
		return nil, httpx.From(err)
	}
	if maxBatch > 0 && len(list) > maxBatch {
		return nil, httpx.TooLarge(fmt.Sprintf("batch of %d mods exceeds the limit of %d", len(list), maxBatch))
	}
	return list, nil
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// validatePayload checks v against its validate tags and reports failures
// keyed by JSON field path.
func validatePayload(v any) *httpx.HTTPError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httpx.BadRequest(err.Error())
	}
	fields := map[string]string{}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	return httpx.BadRequest("validation failed").WithDetails(fields)
}
