package db

import "time"

// Product is a purchasable digital download. Price is expressed in major
// currency units, exactly as the site owner types it into the product form;
// conversion to minor units happens at checkout time.
type Product struct {
	ID      uint64    `json:"id" bson:"_id"`
	Title   string    `json:"title" bson:"title"`
	Price   float64   `json:"price" bson:"price"`
	PageURL string    `json:"pageURL" bson:"pageURL"`
	AssetID string    `json:"assetID" bson:"assetID"`
	Created time.Time `json:"createdAt" bson:"createdAt"`
}

// GatewaySettings is the persisted payment gateway configuration surface.
// All of PublishableKey, SecretKey and WebhookSecret must be non-empty for
// the card checkout path to activate; while any is missing the path stays
// inert and the site falls back to its default payment method.
type GatewaySettings struct {
	PublishableKey string `json:"publishableKey" bson:"publishableKey"`
	SecretKey      string `json:"-" bson:"secretKey"`
	WebhookSecret  string `json:"-" bson:"webhookSecret"`
	Currency       string `json:"currency" bson:"currency"`
	ThankYouURL    string `json:"thankYouURL" bson:"thankYouURL"`
	SiteURL        string `json:"siteURL" bson:"siteURL"`
}

// Purchase records a fulfilled payment. The checkout session id is the
// document key, so inserting a purchase doubles as the atomic claim that
// guards against duplicate fulfillment of redelivered webhook events.
type Purchase struct {
	SessionID  string    `json:"sessionID" bson:"_id"`
	ProductID  uint64    `json:"productID" bson:"productID"`
	PayerEmail string    `json:"payerEmail" bson:"payerEmail"`
	Amount     float64   `json:"amount" bson:"amount"`
	Currency   string    `json:"currency" bson:"currency"`
	GrantID    string    `json:"grantID" bson:"grantID"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Asset is a stored download file delivered to payers after purchase.
type Asset struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	ContentType string    `json:"contentType" bson:"contentType"`
	Data        []byte    `json:"-" bson:"data"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}
