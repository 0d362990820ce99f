package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"

	"github.com/plugsnip/snip-backend/db"
	"github.com/plugsnip/snip-backend/downloads"
	"github.com/plugsnip/snip-backend/entitlement"
	"github.com/plugsnip/snip-backend/stripe"
)

// stubProvider implements stripe.ProviderClient and counts calls, so tests
// can assert the provider is never reached on rejected requests.
type stubProvider struct {
	mutex          sync.Mutex
	sessionCalls   int
	constructCalls int
	event          *stripeapi.Event
}

func (s *stubProvider) CreateCheckoutSession(_ string, _ *stripe.SessionParams) (*stripeapi.CheckoutSession, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessionCalls++
	return &stripeapi.CheckoutSession{ID: "cs_test_123"}, nil
}

func (s *stubProvider) ConstructWebhookEvent(_ []byte, _, _ string) (*stripeapi.Event, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.constructCalls++
	if s.event != nil {
		return s.event, nil
	}
	return nil, stripe.NewGatewayError(stripe.CodeWebhookValidation, "signature mismatch", nil)
}

type stubStore struct {
	products map[uint64]*db.Product
	settings *db.GatewaySettings
}

func (s *stubStore) Product(productID uint64) (*db.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return product, nil
}

func (s *stubStore) GatewaySettings() (*db.GatewaySettings, error) {
	return s.settings, nil
}

func (s *stubStore) Asset(assetID string) (*db.Asset, error) {
	return nil, db.ErrNotFound
}

type stubFulfiller struct {
	mutex sync.Mutex
	calls int
}

func (s *stubFulfiller) Fulfill(context.Context, *db.Product, *stripe.PaymentInfo) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls++
	return nil
}

func (s *stubFulfiller) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.calls
}

type testEnv struct {
	api       *API
	server    *httptest.Server
	provider  *stubProvider
	fulfiller *stubFulfiller
}

func newTestEnv(c *qt.C, gate entitlement.Gate) *testEnv {
	provider := &stubProvider{
		event: completedEvent("cs_test_123", 42, 1999, "usd", "buyer@example.com"),
	}
	store := &stubStore{
		products: map[uint64]*db.Product{
			42: {ID: 42, Title: "Snippet Pack", Price: 19.99, AssetID: "asset-42"},
		},
		settings: &db.GatewaySettings{
			PublishableKey: "pk_test_123",
			SecretKey:      "sk_test_123",
			WebhookSecret:  "whsec_test_123",
			Currency:       "USD",
		},
	}
	fulfiller := &stubFulfiller{}
	ledger := stripe.NewMemoryLedger(time.Hour)
	c.Cleanup(ledger.Close)
	stripeService, err := stripe.NewService(provider, store, fulfiller, ledger)
	c.Assert(err, qt.IsNil)
	downloadsService, err := downloads.New(&downloads.Config{
		Store:     store,
		Secret:    "test-api-secret",
		ServerURL: "https://backend.example.com",
	})
	c.Assert(err, qt.IsNil)

	a := New(&Config{
		Host:      "127.0.0.1",
		Port:      0,
		Secret:    "test-api-secret",
		Gate:      gate,
		Stripe:    stripeService,
		Downloads: downloadsService,
	})
	server := httptest.NewServer(a.Router())
	c.Cleanup(server.Close)
	return &testEnv{api: a, server: server, provider: provider, fulfiller: fulfiller}
}

func completedEvent(sessionID string, productID, amountTotal int64, currency, email string) *stripeapi.Event {
	raw, err := json.Marshal(map[string]any{
		"id":               sessionID,
		"amount_total":     amountTotal,
		"currency":         currency,
		"metadata":         map[string]string{"product_id": fmt.Sprintf("%d", productID)},
		"customer_details": map[string]any{"email": email},
	})
	if err != nil {
		panic(err)
	}
	return &stripeapi.Event{
		ID:   "evt_test_1",
		Type: stripeapi.EventTypeCheckoutSessionCompleted,
		Data: &stripeapi.EventData{Raw: raw},
	}
}

func postJSON(c *qt.C, url string, body any) *http.Response {
	raw, err := json.Marshal(body)
	c.Assert(err, qt.IsNil)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	c.Assert(err, qt.IsNil)
	return resp
}

func decodeEnvelope(c *qt.C, resp *http.Response) map[string]json.RawMessage {
	defer func() { _ = resp.Body.Close() }()
	envelope := struct {
		Success bool                       `json:"success"`
		Data    map[string]json.RawMessage `json:"data"`
	}{}
	c.Assert(json.NewDecoder(resp.Body).Decode(&envelope), qt.IsNil)
	c.Assert(envelope.Success, qt.IsTrue)
	return envelope.Data
}

func TestCheckoutConfigEndpoint(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	resp, err := http.Get(env.server.URL + "/products/42/checkout-config")
	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	data := decodeEnvelope(c, resp)
	c.Assert(string(data["enabled"]), qt.Equals, "true")
	c.Assert(string(data["publishableKey"]), qt.Equals, `"pk_test_123"`)
	c.Assert(string(data["productTitle"]), qt.Equals, `"Snippet Pack"`)
	c.Assert(len(data["token"]) > 2, qt.IsTrue)

	// malformed product id
	resp, err = http.Get(env.server.URL + "/products/abc/checkout-config")
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)

	// unknown product
	resp, err = http.Get(env.server.URL + "/products/7/checkout-config")
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNotFound)
}

func TestCheckoutConfigEndpointUnlicensed(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(false))

	// unlicensed installs get a disabled config, not an error, and no token
	resp, err := http.Get(env.server.URL + "/products/42/checkout-config")
	c.Assert(err, qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	data := decodeEnvelope(c, resp)
	c.Assert(string(data["enabled"]), qt.Equals, "false")
	c.Assert(data["publishableKey"], qt.IsNil)
	c.Assert(data["token"], qt.IsNil)
}

func TestCreateCheckoutEndpoint(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	token, err := env.api.issueCheckoutToken(42)
	c.Assert(err, qt.IsNil)

	resp := postJSON(c, env.server.URL+"/checkout", map[string]any{
		"productId": 42,
		"token":     token,
	})
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	data := decodeEnvelope(c, resp)
	c.Assert(string(data["sessionId"]), qt.Equals, `"cs_test_123"`)
	c.Assert(env.provider.sessionCalls, qt.Equals, 1)
}

func TestCreateCheckoutEndpointRejections(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	// missing token, the provider must never be reached
	resp := postJSON(c, env.server.URL+"/checkout", map[string]any{"productId": 42})
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)
	c.Assert(env.provider.sessionCalls, qt.Equals, 0)

	// token issued for another product
	token, err := env.api.issueCheckoutToken(7)
	c.Assert(err, qt.IsNil)
	resp = postJSON(c, env.server.URL+"/checkout", map[string]any{
		"productId": 42,
		"token":     token,
	})
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)
	c.Assert(env.provider.sessionCalls, qt.Equals, 0)

	// malformed body
	resp, err = http.Post(env.server.URL+"/checkout", "application/json", bytes.NewReader([]byte("{not json")))
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestCreateCheckoutEndpointUnlicensed(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(false))

	token, err := env.api.issueCheckoutToken(42)
	c.Assert(err, qt.IsNil)
	resp := postJSON(c, env.server.URL+"/checkout", map[string]any{
		"productId": 42,
		"token":     token,
	})
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)
	c.Assert(env.provider.sessionCalls, qt.Equals, 0)
}

func TestWebhookEndpoint(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhook/stripe", bytes.NewReader([]byte("{}")))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Stripe-Signature", "t=1,v1=stub")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(env.fulfiller.count(), qt.Equals, 1)
}

func TestWebhookEndpointMissingSignature(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	resp := postJSON(c, env.server.URL+"/webhook/stripe", map[string]any{})
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
	c.Assert(env.provider.constructCalls, qt.Equals, 0)
	c.Assert(env.fulfiller.count(), qt.Equals, 0)
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))
	env.provider.event = nil // stub answers signature mismatch

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhook/stripe", bytes.NewReader([]byte("{}")))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
	c.Assert(env.fulfiller.count(), qt.Equals, 0)
}

func TestWebhookEndpointUnlicensed(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(false))

	// the gate answers before the signature is even looked at
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhook/stripe", bytes.NewReader([]byte("{}")))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Stripe-Signature", "t=1,v1=stub")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusForbidden)
	c.Assert(env.provider.constructCalls, qt.Equals, 0)
	c.Assert(env.fulfiller.count(), qt.Equals, 0)
}

func TestWebhookLegacyAlias(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	// gateway events posted to the site root with the action query argument
	req, err := http.NewRequest(http.MethodPost,
		env.server.URL+"/?ds_action=stripe_webhook", bytes.NewReader([]byte("{}")))
	c.Assert(err, qt.IsNil)
	req.Header.Set("Stripe-Signature", "t=1,v1=stub")
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(env.fulfiller.count(), qt.Equals, 1)

	// unknown actions at the root are not found
	resp, err = http.Post(env.server.URL+"/?ds_action=other", "application/json", bytes.NewReader(nil))
	c.Assert(err, qt.IsNil)
	_ = resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusNotFound)
}

func TestCheckoutTokenVerification(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, entitlement.StaticGate(true))

	token, err := env.api.issueCheckoutToken(42)
	c.Assert(err, qt.IsNil)
	c.Assert(env.api.verifyCheckoutToken(token, 42), qt.IsNil)
	c.Assert(env.api.verifyCheckoutToken(token, 7), qt.IsNotNil)
	c.Assert(env.api.verifyCheckoutToken("garbage", 42), qt.IsNotNil)

	// tokens signed with another secret are rejected
	other := New(&Config{Secret: "other-secret", Gate: entitlement.StaticGate(true),
		Stripe: env.api.stripe, Downloads: env.api.downloads})
	forged, err := other.issueCheckoutToken(42)
	c.Assert(err, qt.IsNil)
	c.Assert(env.api.verifyCheckoutToken(forged, 42), qt.IsNotNil)
}
