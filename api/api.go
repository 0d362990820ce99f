// Package api provides the HTTP API for the snip backend: public checkout
// endpoints, the payment gateway webhook listener and signed asset downloads.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/downloads"
	"github.com/plugsnip/snip-backend/entitlement"
	"github.com/plugsnip/snip-backend/stripe"
)

// checkoutTokenExpiration is the lifetime of the anti-forgery token issued
// with the checkout configuration. A storefront visitor has this long to
// press the buy button after the page renders.
const checkoutTokenExpiration = 15 * time.Minute

// maxWebhookBody bounds the payload size accepted from the payment gateway.
const maxWebhookBody = 64 * 1024

type Config struct {
	Host   string
	Port   int
	Secret string
	// Gate decides whether the premium payment features are enabled. All
	// checkout and webhook handlers consult it on every request.
	Gate      entitlement.Gate
	Stripe    *stripe.Service
	Downloads *downloads.Service
}

// API type represents the API HTTP server with JWT token issuing capabilities.
type API struct {
	auth      *jwtauth.JWTAuth
	host      string
	port      int
	router    *chi.Mux
	gate      entitlement.Gate
	stripe    *stripe.Service
	downloads *downloads.Service
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	gate := conf.Gate
	if gate == nil {
		gate = entitlement.StaticGate(false)
	}
	return &API{
		auth:      jwtauth.New("HS256", []byte(conf.Secret), nil),
		host:      conf.Host,
		port:      conf.Port,
		gate:      gate,
		stripe:    conf.Stripe,
		downloads: conf.Downloads,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.initRouter()); err != nil {
			log.Fatal().Err(err).Msg("failed to start the API server")
		}
	}()
}

// Router returns the HTTP router, initializing it on first use. It is
// exposed so tests can serve the API through httptest.
func (a *API) Router() http.Handler {
	if a.router == nil {
		a.initRouter()
	}
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.Timeout(45 * time.Second))

	// ping
	log.Info().Str("method", "GET").Str("path", pingEndpoint).Msg("new route")
	r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	// public checkout configuration for a product
	log.Info().Str("method", "GET").Str("path", checkoutConfigEndpoint).Msg("new route")
	r.Get(checkoutConfigEndpoint, a.checkoutConfigHandler)
	// create a payment gateway checkout session
	log.Info().Str("method", "POST").Str("path", checkoutEndpoint).Msg("new route")
	r.Post(checkoutEndpoint, a.createCheckoutHandler)
	// payment gateway webhook events
	log.Info().Str("method", "POST").Str("path", stripeWebhookEndpoint).Msg("new route")
	r.Post(stripeWebhookEndpoint, a.stripeWebhookHandler)
	// legacy webhook alias at the site root
	r.Post("/", a.legacyActionHandler)
	// download a purchased asset through a signed link
	log.Info().Str("method", "GET").Str("path", downloadEndpoint).Msg("new route")
	r.Get(downloadEndpoint, a.downloads.HandleDownload)

	a.router = r
	return r
}
