// Package errors provides the coded error type used by all HTTP handlers.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/rs/zerolog/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error
// code and also specifying which HTTP status should be used. It serializes
// itself with the same success/data envelope the Snip plugins emit, so the
// checkout frontend can treat every response uniformly.
type Error struct {
	Err        error  // Original error
	Code       int    // Error code
	HTTPstatus int    // HTTP status code to return
}

// MarshalJSON returns the failure envelope carrying Err.Error() and Code.
// Field HTTPstatus is ignored.
//
// Example output: {"success":false,"data":{"message":"invalid product ID","code":40002}}
func (e Error) MarshalJSON() ([]byte, error) {
	// This anon struct is needed to actually include the error string,
	// since it wouldn't be marshaled otherwise. (json.Marshal doesn't call Err.Error())
	return json.Marshal(
		struct {
			Success bool `json:"success"`
			Data    struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"data"`
		}{
			Success: false,
			Data: struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			}{
				Message: e.Err.Error(),
				Code:    e.Code,
			},
		})
}

// Error returns the message contained inside the error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the original error, so errors.Is works across Withf chains.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes the failure envelope and sends it along with the HTTP
// status. Server-side faults are logged with full detail, client faults at
// debug level only, so provider and configuration internals never reach the
// client beyond the generic message.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Msg("cannot marshal error response")
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}

	pc, file, line, _ := runtime.Caller(1)
	caller := runtime.FuncForPC(pc).Name()

	if e.HTTPstatus >= 500 {
		log.Error().Err(e.Err).
			Int("status", e.HTTPstatus).
			Int("code", e.Code).
			Str("caller", caller).
			Str("file", fmt.Sprintf("%s:%d", file, line)).
			Msg("API error response")
	} else {
		log.Debug().
			Int("status", e.HTTPstatus).
			Int("code", e.Code).
			Str("caller", caller).
			Msg(e.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err.
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}
