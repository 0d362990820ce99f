package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/errors"
	"github.com/plugsnip/snip-backend/stripe"
)

// CheckoutConfigResponse is the public checkout configuration a storefront
// needs to render the buy button. Secret material never leaves the server.
type CheckoutConfigResponse struct {
	Enabled        bool    `json:"enabled"`
	PublishableKey string  `json:"publishableKey,omitempty"`
	ProductTitle   string  `json:"productTitle,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	Token          string  `json:"token,omitempty"`
}

// CreateCheckoutRequest is the body of a checkout session creation request.
type CreateCheckoutRequest struct {
	ProductID uint64 `json:"productId"`
	Token     string `json:"token"`
}

// CreateCheckoutResponse carries the gateway session the storefront
// redirects the buyer to.
type CreateCheckoutResponse struct {
	SessionID string `json:"sessionId"`
}

// checkoutConfigHandler returns the public checkout configuration for a
// product plus a fresh anti-forgery token. When the premium features are
// not licensed or the gateway keys are missing it reports enabled=false
// instead of failing, so storefronts can degrade gracefully.
func (a *API) checkoutConfigHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseUint(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpWriteErr(w, errors.ErrMalformedURLParam.WithErr(err))
		return
	}
	if !a.gate.IsEntitled(r.Context()) {
		httpWriteJSON(w, &CheckoutConfigResponse{Enabled: false})
		return
	}
	conf, err := a.stripe.CheckoutConfig(productID)
	if err != nil {
		if stripe.ErrorCode(err) == stripe.CodeInvalidInput {
			httpWriteErr(w, errors.ErrProductNotFound.WithErr(err))
			return
		}
		httpWriteErr(w, errors.ErrGatewayNotConfigured.WithErr(err))
		return
	}
	resp := &CheckoutConfigResponse{
		Enabled:        conf.Enabled,
		PublishableKey: conf.PublishableKey,
		ProductTitle:   conf.ProductTitle,
		Price:          conf.Price,
		Currency:       conf.Currency,
	}
	if conf.Enabled {
		token, err := a.issueCheckoutToken(productID)
		if err != nil {
			httpWriteErr(w, errors.ErrGenericInternalServerError.WithErr(err))
			return
		}
		resp.Token = token
	}
	httpWriteJSON(w, resp)
}

// createCheckoutHandler creates a payment gateway checkout session. The
// anti-forgery token is verified before anything touches the gateway.
func (a *API) createCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	if !a.gate.IsEntitled(r.Context()) {
		httpWriteErr(w, errors.ErrNotEntitled)
		return
	}
	req := &CreateCheckoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httpWriteErr(w, errors.ErrMalformedBody.WithErr(err))
		return
	}
	if err := a.verifyCheckoutToken(req.Token, req.ProductID); err != nil {
		httpWriteErr(w, errors.ErrInvalidSecurityToken.WithErr(err))
		return
	}
	if req.ProductID == 0 {
		httpWriteErr(w, errors.ErrInvalidProduct)
		return
	}
	sessionID, err := a.stripe.CreateCheckoutSession(req.ProductID)
	if err != nil {
		log.Warn().Err(err).Uint64("product", req.ProductID).Msg("checkout session creation failed")
		switch stripe.ErrorCode(err) {
		case stripe.CodeInvalidInput:
			httpWriteErr(w, errors.ErrInvalidProduct.WithErr(err))
		case stripe.CodeConfigMissing:
			httpWriteErr(w, errors.ErrGatewayNotConfigured.WithErr(err))
		case stripe.CodeAPICallFailed:
			httpWriteErr(w, errors.ErrProviderFailure.WithErr(err))
		default:
			httpWriteErr(w, errors.ErrGenericInternalServerError.WithErr(err))
		}
		return
	}
	httpWriteJSON(w, &CreateCheckoutResponse{SessionID: sessionID})
}
