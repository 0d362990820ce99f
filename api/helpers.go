package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/errors"
)

// successEnvelope wraps every successful JSON response so storefront
// clients can branch on a single boolean before reading the payload.
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// httpWriteJSON writes data inside the success envelope with a 200 status.
func httpWriteJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data}); err != nil {
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

// httpWriteOK writes an empty success envelope with a 200 status.
func httpWriteOK(w http.ResponseWriter) {
	httpWriteJSON(w, nil)
}

// httpWriteErr writes the error response. Known errors keep their own code
// and status, anything else becomes a generic internal server error.
func httpWriteErr(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(errors.Error); ok {
		apiErr.Write(w)
		return
	}
	errors.ErrGenericInternalServerError.WithErr(err).Write(w)
}
