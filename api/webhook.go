package api

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/errors"
	"github.com/plugsnip/snip-backend/stripe"
)

// stripeWebhookHandler receives payment gateway events. The entitlement
// gate is consulted before the body is read, so unlicensed installs reject
// deliveries without touching the payload. A 200 response acknowledges the
// delivery, anything else makes the gateway retry.
func (a *API) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !a.gate.IsEntitled(r.Context()) {
		httpWriteErr(w, errors.ErrNotEntitled)
		return
	}
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		httpWriteErr(w, errors.ErrMalformedBody.With("missing event signature"))
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httpWriteErr(w, errors.ErrMalformedBody.WithErr(err))
		return
	}
	if err := a.stripe.ProcessWebhookEvent(r.Context(), payload, signature); err != nil {
		log.Warn().Err(err).Msg("webhook event rejected")
		switch stripe.ErrorCode(err) {
		case stripe.CodeWebhookValidation, stripe.CodeInvalidEvent:
			w.WriteHeader(http.StatusBadRequest)
		case stripe.CodeConfigMissing:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

// legacyActionHandler serves gateway deliveries posted to the site root
// with an action query argument, the shape older storefront integrations
// still use. Unknown actions get a 404.
func (a *API) legacyActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(legacyActionParam) == legacyWebhookValue {
		a.stripeWebhookHandler(w, r)
		return
	}
	http.NotFound(w, r)
}
