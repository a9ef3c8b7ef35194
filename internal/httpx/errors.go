// Package httpx renders API failures as JSON error bodies.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"modcheck/internal/mods"
	"modcheck/internal/telemetry"
	"modcheck/internal/workshop"
)

// Error is the body of every failed API request.
type Error struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"requestId"`
	Details   map[string]string `json:"details,omitempty"`
}

// HTTPError carries the status and code an error is reported with.
type HTTPError struct {
	status  int
	code    string
	message string
	details map[string]string
	cause   error
}

func (e *HTTPError) Error() string { return e.message }
func (e *HTTPError) Status() int   { return e.status }
func (e *HTTPError) Code() string  { return e.code }
func (e *HTTPError) Unwrap() error { return e.cause }

// Details maps JSON paths of the request to the rule they failed.
func (e *HTTPError) Details() map[string]string { return e.details }

func (e *HTTPError) WithDetails(d map[string]string) *HTTPError {
	e.details = d
	return e
}

var codes = map[int]string{
	http.StatusBadRequest:            "bad_request",
	http.StatusUnauthorized:          "unauthorized",
	http.StatusNotFound:              "not_found",
	http.StatusRequestEntityTooLarge: "too_large",
	http.StatusTooManyRequests:       "rate_limited",
	http.StatusInternalServerError:   "internal_error",
	http.StatusBadGateway:            "upstream_error",
	http.StatusServiceUnavailable:    "service_unavailable",
}

func newError(status int, msg string, cause error) *HTTPError {
	return &HTTPError{status: status, code: codes[status], message: msg, cause: cause}
}

func BadRequest(msg string) *HTTPError { return newError(http.StatusBadRequest, msg, nil) }

func Unauthorized(msg string) *HTTPError { return newError(http.StatusUnauthorized, msg, nil) }

func NotFound(msg string) *HTTPError { return newError(http.StatusNotFound, msg, nil) }

// TooLarge rejects oversized bodies and batches above the configured limit.
func TooLarge(msg string) *HTTPError { return newError(http.StatusRequestEntityTooLarge, msg, nil) }

func TooManyRequests(msg string) *HTTPError { return newError(http.StatusTooManyRequests, msg, nil) }

// BadGateway reports a workshop failure the retries could not absorb.
func BadGateway(err error) *HTTPError { return newError(http.StatusBadGateway, err.Error(), err) }

func Unavailable(msg string) *HTTPError { return newError(http.StatusServiceUnavailable, msg, nil) }

func Internal(err error) *HTTPError {
	msg := "internal server error"
	if err != nil {
		msg = err.Error()
	}
	return newError(http.StatusInternalServerError, msg, err)
}

// From classifies err. Rejected mod lists become 400 with the failing fields
// as details, mods the workshop does not know become 404 and other workshop
// failures 502. Anything unrecognised is a 500.
func From(err error) *HTTPError {
	var (
		he  *HTTPError
		ie  *mods.InputError
		mbe *http.MaxBytesError
		se  *workshop.StatusError
		ne  *workshop.NetworkError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &he):
		return he
	case errors.As(err, &ie):
		return newError(http.StatusBadRequest, ie.Reason, err).WithDetails(ie.Fields)
	case errors.As(err, &mbe):
		return newError(http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit), err)
	case errors.Is(err, mods.ErrNotFound):
		return newError(http.StatusNotFound, "mod not found", err)
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		return newError(http.StatusNotFound, "mod not found", err)
	case errors.As(err, &se), errors.As(err, &ne):
		return BadGateway(err)
	}
	return Internal(err)
}

// Write classifies err with From and writes it as JSON.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	he := From(err)
	if he == nil {
		he = Internal(nil)
	}
	telemetry.EventCtx(r.Context(), "api_error", map[string]string{
		"status": strconv.Itoa(he.status),
		"code":   he.code,
	})
	JSON(w, he.status, Error{
		Code:      he.code,
		Message:   he.message,
		RequestID: requestID(r),
		Details:   he.details,
	})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func requestID(r *http.Request) string {
	if id := telemetry.RequestID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
