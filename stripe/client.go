package stripe

import (
	"strconv"

	stripeapi "github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
)

// metadataProductID is the metadata key carrying the catalog product id.
// It is written on both the checkout session and the payment intent so
// fulfillment can recover the id from either object type a webhook may
// deliver.
const metadataProductID = "product_id"

// SessionParams holds the server-derived parameters for a checkout session.
// Amount and currency always come from the catalog and settings, never from
// client input.
type SessionParams struct {
	ProductID   uint64
	ProductName string
	Currency    string // lower-cased ISO code
	UnitAmount  int64  // minor units
	SuccessURL  string
	CancelURL   string
}

// ProviderClient abstracts the two payment provider operations this backend
// needs: creating a hosted checkout session and verifying+parsing a webhook
// delivery. Tests substitute a stub; production uses Client.
type ProviderClient interface {
	CreateCheckoutSession(secretKey string, params *SessionParams) (*stripeapi.CheckoutSession, error)
	ConstructWebhookEvent(payload []byte, signatureHeader, webhookSecret string) (*stripeapi.Event, error)
}

// Client is the production ProviderClient backed by the Stripe SDK.
// It is stateless: the secret key is read from the persisted settings on
// every call, so key rotation needs no restart.
type Client struct{}

// NewClient creates a new Stripe client.
func NewClient() *Client {
	return &Client{}
}

// CreateCheckoutSession creates a one-time-payment checkout session with
// inline price data. Quantity is fixed to 1: a download purchase grants
// access, buying two of the same file makes no sense.
// Overview of stripe checkout mechanics: https://docs.stripe.com/checkout/quickstart
func (*Client) CreateCheckoutSession(secretKey string, params *SessionParams) (*stripeapi.CheckoutSession, error) {
	productID := strconv.FormatUint(params.ProductID, 10)
	checkoutParams := &stripeapi.CheckoutSessionParams{
		// One-time payment mode, not subscription
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency: stripeapi.String(params.Currency),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(params.ProductName),
					},
					UnitAmount: stripeapi.Int64(params.UnitAmount),
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		SuccessURL: stripeapi.String(params.SuccessURL),
		CancelURL:  stripeapi.String(params.CancelURL),
		// product_id is duplicated on the payment intent on purpose, see
		// metadataProductID
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				metadataProductID: productID,
			},
		},
	}
	checkoutParams.Metadata = map[string]string{
		metadataProductID: productID,
	}

	sc := &stripeclient.API{}
	sc.Init(secretKey, nil)
	session, err := sc.CheckoutSessions.New(checkoutParams)
	if err != nil {
		return nil, NewGatewayError(CodeAPICallFailed, "failed to create checkout session", err)
	}
	return session, nil
}

// ConstructWebhookEvent verifies the delivery signature against the webhook
// secret and parses the event. Both a malformed payload and a signature
// mismatch surface as a webhook_validation error; neither must ever fulfill.
func (*Client) ConstructWebhookEvent(payload []byte, signatureHeader, webhookSecret string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEvent(payload, signatureHeader, webhookSecret)
	if err != nil {
		return nil, NewGatewayError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}
