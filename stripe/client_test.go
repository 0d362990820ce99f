package stripe

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	stripeapi "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

// signedPayload builds a webhook delivery with a valid signature header, the
// way the provider signs real deliveries.
func signedPayload(c *qt.C, sessionID string) ([]byte, string) {
	event := map[string]any{
		"id":          "evt_test_1",
		"api_version": stripeapi.APIVersion,
		"type":        string(stripeapi.EventTypeCheckoutSessionCompleted),
		"data": map[string]any{
			"object": map[string]any{
				"id":           sessionID,
				"amount_total": 1999,
				"currency":     "usd",
			},
		},
	}
	payload, err := json.Marshal(event)
	c.Assert(err, qt.IsNil)

	now := time.Now()
	signature := stripewebhook.ComputeSignature(now, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%x", now.Unix(), signature)
	return payload, header
}

func TestConstructWebhookEvent(t *testing.T) {
	c := qt.New(t)

	client := NewClient()
	payload, header := signedPayload(c, "cs_test_123")

	event, err := client.ConstructWebhookEvent(payload, header, testWebhookSecret)
	c.Assert(err, qt.IsNil)
	c.Assert(event.Type, qt.Equals, stripeapi.EventTypeCheckoutSessionCompleted)

	var session stripeapi.CheckoutSession
	c.Assert(json.Unmarshal(event.Data.Raw, &session), qt.IsNil)
	c.Assert(session.ID, qt.Equals, "cs_test_123")
}

func TestConstructWebhookEventRejectsTampering(t *testing.T) {
	c := qt.New(t)

	client := NewClient()
	payload, header := signedPayload(c, "cs_test_123")

	// payload modified after signing
	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = '!'
	_, err := client.ConstructWebhookEvent(tampered, header, testWebhookSecret)
	c.Assert(ErrorCode(err), qt.Equals, CodeWebhookValidation)

	// signed with another secret
	_, err = client.ConstructWebhookEvent(payload, header, "whsec_other_secret")
	c.Assert(ErrorCode(err), qt.Equals, CodeWebhookValidation)

	// missing header
	_, err = client.ConstructWebhookEvent(payload, "", testWebhookSecret)
	c.Assert(ErrorCode(err), qt.Equals, CodeWebhookValidation)
}
