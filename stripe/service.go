// Package stripe implements the card checkout path for Snip download
// products: creating hosted checkout sessions and fulfilling orders from
// signature-verified webhook deliveries.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	stripeapi "github.com/stripe/stripe-go/v81"

	"github.com/plugsnip/snip-backend/db"
)

// paymentStatusParam is the query parameter appended to the success URL so
// the thank-you page can tell a completed checkout from a plain visit.
const (
	paymentStatusParam = "ds_payment_status"
	paymentStatusOK    = "success"
)

// Store provides the catalog and settings reads the service needs.
// db.MongoStorage satisfies it.
type Store interface {
	Product(productID uint64) (*db.Product, error)
	GatewaySettings() (*db.GatewaySettings, error)
}

// PaymentInfo is the normalized view of a completed payment extracted from
// a webhook event.
type PaymentInfo struct {
	SessionID  string
	ProductID  uint64
	PayerEmail string
	Paid       float64 // major units
	Currency   string  // upper-cased ISO code
}

// Fulfiller grants the purchased download to the payer. It runs at most
// once per ledger claim; implementations must tolerate being retried for
// the same session after a Release.
type Fulfiller interface {
	Fulfill(ctx context.Context, product *db.Product, payment *PaymentInfo) error
}

// CheckoutConfig is what the product page needs to render the card button.
type CheckoutConfig struct {
	Enabled        bool    `json:"enabled"`
	PublishableKey string  `json:"publishableKey,omitempty"`
	ProductTitle   string  `json:"productTitle,omitempty"`
	Price          float64 `json:"price,omitempty"`
	Currency       string  `json:"currency,omitempty"`
}

// Service provides the checkout and fulfillment business logic. It keeps no
// session state of its own; the payment provider is the source of truth for
// session lifecycle and the ledger for fulfillment claims.
type Service struct {
	client    ProviderClient
	store     Store
	fulfiller Fulfiller
	ledger    Ledger
	locks     *LockManager
}

// NewService creates a new checkout service.
func NewService(client ProviderClient, store Store, fulfiller Fulfiller, ledger Ledger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fulfiller == nil {
		return nil, fmt.Errorf("fulfiller is required")
	}
	if ledger == nil {
		ledger = PassLedger{}
	}
	return &Service{
		client:    client,
		store:     store,
		fulfiller: fulfiller,
		ledger:    ledger,
		locks:     NewLockManager(),
	}, nil
}

// CheckoutConfig returns the rendering data for a product's card button.
// When the gateway settings are incomplete Enabled is false and the page
// silently falls back to its default payment method.
func (s *Service) CheckoutConfig(productID uint64) (*CheckoutConfig, error) {
	settings, err := s.store.GatewaySettings()
	if err != nil {
		return nil, NewGatewayError(CodeConfigMissing, "cannot read gateway settings", err)
	}
	if settings.PublishableKey == "" || settings.SecretKey == "" {
		return &CheckoutConfig{Enabled: false}, nil
	}
	product, err := s.store.Product(productID)
	if err != nil {
		if err == db.ErrNotFound {
			return nil, NewGatewayError(CodeInvalidInput, "unknown product", err)
		}
		return nil, NewGatewayError(CodeConfigMissing, "cannot read product", err)
	}
	return &CheckoutConfig{
		Enabled:        true,
		PublishableKey: settings.PublishableKey,
		ProductTitle:   product.Title,
		Price:          product.Price,
		Currency:       strings.ToUpper(settings.Currency),
	}, nil
}

// CreateCheckoutSession validates the request against server-held product
// data and opens a checkout session with the provider. It returns the
// opaque session id; nothing is persisted locally.
func (s *Service) CreateCheckoutSession(productID uint64) (string, error) {
	if productID == 0 {
		return "", NewGatewayError(CodeInvalidInput, "invalid product ID", nil)
	}
	settings, err := s.store.GatewaySettings()
	if err != nil {
		return "", NewGatewayError(CodeConfigMissing, "cannot read gateway settings", err)
	}
	if settings.SecretKey == "" {
		return "", NewGatewayError(CodeConfigMissing, "gateway secret key is not configured", nil)
	}
	product, err := s.store.Product(productID)
	if err != nil {
		return "", NewGatewayError(CodeConfigMissing,
			fmt.Sprintf("product %d not available", productID), err)
	}
	if product.Title == "" || product.Price <= 0 {
		return "", NewGatewayError(CodeConfigMissing,
			fmt.Sprintf("product %d has no title or price", productID), nil)
	}

	params := &SessionParams{
		ProductID:   productID,
		ProductName: product.Title,
		Currency:    strings.ToLower(settings.Currency),
		UnitAmount:  MinorUnits(product.Price),
		SuccessURL:  successURL(settings),
		CancelURL:   cancelURL(settings, product),
	}
	session, err := s.client.CreateCheckoutSession(settings.SecretKey, params)
	if err != nil {
		log.Error().Err(err).Uint64("product", productID).Msg("checkout session creation failed")
		return "", err
	}
	log.Info().
		Str("session", session.ID).
		Uint64("product", productID).
		Int64("amount", params.UnitAmount).
		Str("currency", params.Currency).
		Msg("checkout session created")
	return session.ID, nil
}

// ProcessWebhookEvent verifies and processes one webhook delivery. A nil
// return acknowledges the delivery (HTTP 200); a GatewayError tells the
// HTTP layer which failure status to answer with.
func (s *Service) ProcessWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	settings, err := s.store.GatewaySettings()
	if err != nil {
		return NewGatewayError(CodeConfigMissing, "cannot read gateway settings", err)
	}
	// refuse before touching the payload: without the secrets nothing can
	// be verified
	if settings.SecretKey == "" || settings.WebhookSecret == "" {
		return NewGatewayError(CodeConfigMissing, "gateway secret key or webhook secret is not configured", nil)
	}

	event, err := s.client.ConstructWebhookEvent(payload, signatureHeader, settings.WebhookSecret)
	if err != nil {
		return err
	}

	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event, settings)
	default:
		log.Debug().Str("type", string(event.Type)).Str("event", event.ID).
			Msg("webhook: unhandled event type")
		return nil
	}
}

// handleCheckoutCompleted reconciles a completed checkout against the
// catalog and triggers fulfillment. Reconciliation failures are not
// delivery errors: the event was authentic, fulfillment is simply withheld,
// so the caller still acknowledges with 200 and the provider stops
// redelivering.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripeapi.Event, settings *db.GatewaySettings) error {
	payment, err := parsePaymentFromEvent(event)
	if err != nil {
		return err
	}

	unlock := s.locks.LockSession(payment.SessionID)
	defer unlock()

	product, ok := s.reconcile(payment, settings)
	if !ok {
		return nil
	}

	claimed, err := s.ledger.Claim(payment)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("session", payment.SessionID).
			Msg("webhook: session already fulfilled, skipping")
		return nil
	}

	if err := s.fulfiller.Fulfill(ctx, product, payment); err != nil {
		// give the claim back so the provider's redelivery can retry
		if relErr := s.ledger.Release(payment.SessionID); relErr != nil {
			log.Warn().Err(relErr).Str("session", payment.SessionID).
				Msg("webhook: failed to release claim after fulfillment error")
		}
		return NewGatewayError(CodeFulfillmentFailed,
			fmt.Sprintf("fulfillment failed for session %s", payment.SessionID), err)
	}
	log.Info().
		Str("session", payment.SessionID).
		Uint64("product", payment.ProductID).
		Str("payer", payment.PayerEmail).
		Msg("webhook: order fulfilled")
	return nil
}

// reconcile cross-checks the paid amount, currency and product against the
// server-held expectations. Overpayment is accepted on purpose: the
// reference behavior is paid >= expected, and whether exact match should be
// required instead is an open product decision.
func (s *Service) reconcile(payment *PaymentInfo, settings *db.GatewaySettings) (*db.Product, bool) {
	product, err := s.store.Product(payment.ProductID)
	if err != nil {
		log.Warn().Err(err).
			Str("session", payment.SessionID).
			Uint64("product", payment.ProductID).
			Msg("webhook: fulfillment withheld, unknown product")
		return nil, false
	}
	if payment.PayerEmail == "" {
		log.Warn().Str("session", payment.SessionID).
			Msg("webhook: fulfillment withheld, missing payer email")
		return nil, false
	}
	if payment.Paid < product.Price {
		log.Warn().
			Str("session", payment.SessionID).
			Float64("paid", payment.Paid).
			Float64("expected", product.Price).
			Msg("webhook: fulfillment withheld, paid amount below expected price")
		return nil, false
	}
	if payment.Currency != strings.ToUpper(settings.Currency) {
		log.Warn().
			Str("session", payment.SessionID).
			Str("paid", payment.Currency).
			Str("expected", strings.ToUpper(settings.Currency)).
			Msg("webhook: fulfillment withheld, currency mismatch")
		return nil, false
	}
	return product, true
}

// parsePaymentFromEvent extracts the normalized payment data from a
// checkout.session.completed event. The product id is read from the session
// metadata first and from the payment intent metadata as fallback.
func parsePaymentFromEvent(event *stripeapi.Event) (*PaymentInfo, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, NewGatewayError(CodeInvalidEvent, "failed to parse checkout session from event", err)
	}
	if session.ID == "" {
		return nil, NewGatewayError(CodeInvalidEvent, "event carries no checkout session id", nil)
	}

	rawProductID := session.Metadata[metadataProductID]
	if rawProductID == "" && session.PaymentIntent != nil {
		rawProductID = session.PaymentIntent.Metadata[metadataProductID]
	}
	// a missing or garbled product id is a reconciliation failure, not a
	// delivery failure: productID stays 0 and reconcile withholds
	productID, _ := strconv.ParseUint(rawProductID, 10, 64)

	payerEmail := ""
	if session.CustomerDetails != nil {
		payerEmail = session.CustomerDetails.Email
	}

	return &PaymentInfo{
		SessionID:  session.ID,
		ProductID:  productID,
		PayerEmail: payerEmail,
		Paid:       MajorUnits(session.AmountTotal),
		Currency:   strings.ToUpper(string(session.Currency)),
	}, nil
}

// successURL is the configured thank-you page, or the site root if unset,
// with the payment status parameter appended.
func successURL(settings *db.GatewaySettings) string {
	base := settings.ThankYouURL
	if base == "" {
		base = settings.SiteURL
		if base == "" {
			base = "/"
		}
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := parsed.Query()
	query.Set(paymentStatusParam, paymentStatusOK)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// cancelURL sends an abandoned checkout back to the product's own page.
func cancelURL(settings *db.GatewaySettings, product *db.Product) string {
	if product.PageURL != "" {
		return product.PageURL
	}
	if settings.SiteURL != "" {
		return settings.SiteURL
	}
	return "/"
}
