package api

const (
	// health routes

	// GET /ping to check the server is alive
	pingEndpoint = "/ping"

	// checkout routes

	// GET /products/{productID}/checkout-config to get the public checkout
	// configuration for a product
	checkoutConfigEndpoint = "/products/{productID}/checkout-config"
	// POST /checkout to create a payment gateway checkout session
	checkoutEndpoint = "/checkout"

	// webhook routes

	// POST /webhook/stripe to receive payment gateway events
	stripeWebhookEndpoint = "/webhook/stripe"

	// download routes

	// GET /downloads/{token} to download a purchased asset
	downloadEndpoint = "/downloads/{token}"
)

// Legacy webhook alias, kept for storefronts that still post gateway events
// to the site root with an action query argument.
const (
	legacyActionParam  = "ds_action"
	legacyWebhookValue = "stripe_webhook"
)
