package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	logx "modcheck/internal/logx"
	"modcheck/internal/mods"
	"modcheck/internal/telemetry"
	"modcheck/internal/workshop"
)

func TestWriteDoesNotLeakTelemetry(t *testing.T) {
	var logBuf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(logx.NewRedactor(&logBuf)).With().Timestamp().Logger()
	t.Cleanup(func() { log.Logger = orig })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/foo", nil)
	Write(rec, req, Internal(errors.New("boom")))

	if strings.Contains(rec.Body.String(), "telemetry") {
		t.Fatalf("telemetry leaked into response: %s", rec.Body.String())
	}
	var errResp Error
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if strings.Contains(errResp.Message, "telemetry") {
		t.Fatalf("telemetry leaked into message: %s", errResp.Message)
	}
	if errResp.RequestID == "" {
		t.Fatalf("missing request id")
	}
	if !strings.Contains(logBuf.String(), "\"event\":\"api_error\"") {
		t.Fatalf("expected api_error log, got %s", logBuf.String())
	}
}

func TestWriteUsesContextRequestIDAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/check-mods", nil)
	req = req.WithContext(telemetry.WithRequestID(req.Context(), "abc"))
	Write(rec, req, BadRequest("validation failed").WithDetails(map[string]string{"mods[0].modId": "required"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var errResp Error
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.RequestID != "abc" || errResp.Code != "bad_request" {
		t.Fatalf("got %+v", errResp)
	}
	if errResp.Details["mods[0].modId"] != "required" {
		t.Fatalf("got details %v", errResp.Details)
	}
}

func TestWritePlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("plain"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"input", &mods.InputError{Reason: "no mods array found"}, http.StatusBadRequest, "bad_request"},
		{"body limit", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "too_large"},
		{"unknown mod", fmt.Errorf("ABCD: %w", mods.ErrNotFound), http.StatusNotFound, "not_found"},
		{"workshop 404", &workshop.StatusError{Status: 404}, http.StatusNotFound, "not_found"},
		{"workshop 503", &workshop.StatusError{Status: 503}, http.StatusBadGateway, "upstream_error"},
		{"network", &workshop.NetworkError{URL: "u", Err: errors.New("reset")}, http.StatusBadGateway, "upstream_error"},
		{"passthrough", TooManyRequests("slow down"), http.StatusTooManyRequests, "rate_limited"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := From(tt.err)
			if he.Status() != tt.status || he.Code() != tt.code {
				t.Fatalf("got %d %s want %d %s", he.Status(), he.Code(), tt.status, tt.code)
			}
		})
	}
	if From(nil) != nil {
		t.Fatalf("nil error classified")
	}
}

func TestFromKeepsFieldDetails(t *testing.T) {
	err := fmt.Errorf("watchlist: %w", &mods.InputError{
		Reason: "validation failed",
		Fields: map[string]string{"mods[1].modId": "required"},
	})
	he := From(err)
	if he.Details()["mods[1].modId"] != "required" {
		t.Fatalf("got details %v", he.Details())
	}
	if !errors.Is(he, mods.ErrMalformedInput) {
		t.Fatalf("cause lost")
	}
}
