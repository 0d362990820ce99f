// Package fulfillment grants purchased downloads to payers: it mints a
// download grant and emails the signed link.
package fulfillment

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plugsnip/snip-backend/db"
	"github.com/plugsnip/snip-backend/downloads"
	"github.com/plugsnip/snip-backend/notifications"
	"github.com/plugsnip/snip-backend/stripe"
)

var mailBody = template.Must(template.New("purchase").Parse(
	`<p>Thanks for your purchase!</p>
<p>Your copy of <strong>{{.Title}}</strong> is ready. Download it here:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>The link expires after a few days, so save the file somewhere safe.</p>`))

var mailPlainBody = template.Must(template.New("purchasePlain").Parse(
	`Thanks for your purchase!

Your copy of {{.Title}} is ready. Download it here:

{{.Link}}

The link expires after a few days, so save the file somewhere safe.`))

// Mailer fulfills orders by emailing the payer a signed download link.
// It implements stripe.Fulfiller.
type Mailer struct {
	downloads *downloads.Service
	mail      notifications.NotificationService
}

// NewMailer creates an email-based fulfiller.
func NewMailer(downloadsService *downloads.Service, mail notifications.NotificationService) (*Mailer, error) {
	if downloadsService == nil {
		return nil, fmt.Errorf("downloads service is required")
	}
	if mail == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &Mailer{
		downloads: downloadsService,
		mail:      mail,
	}, nil
}

// Fulfill implements stripe.Fulfiller. Any error is returned to the caller
// so the webhook claim can be released and the delivery retried.
func (m *Mailer) Fulfill(ctx context.Context, product *db.Product, payment *stripe.PaymentInfo) error {
	if product.AssetID == "" {
		return fmt.Errorf("product %d has no asset to deliver", product.ID)
	}
	grantID := uuid.NewString()
	token, err := m.downloads.DownloadToken(product.AssetID, grantID)
	if err != nil {
		return fmt.Errorf("cannot mint download grant: %w", err)
	}
	link := m.downloads.DownloadURL(token)

	data := struct {
		Title string
		Link  string
	}{Title: product.Title, Link: link}
	var body, plain bytes.Buffer
	if err := mailBody.Execute(&body, data); err != nil {
		return fmt.Errorf("cannot render purchase mail: %w", err)
	}
	if err := mailPlainBody.Execute(&plain, data); err != nil {
		return fmt.Errorf("cannot render purchase mail: %w", err)
	}

	notification := &notifications.Notification{
		ToAddress: payment.PayerEmail,
		Subject:   fmt.Sprintf("Your download: %s", product.Title),
		Body:      body.String(),
		PlainBody: plain.String(),
	}
	if err := m.mail.SendNotification(ctx, notification); err != nil {
		return fmt.Errorf("cannot send purchase mail: %w", err)
	}
	log.Info().
		Str("grant", grantID).
		Uint64("product", product.ID).
		Str("payer", payment.PayerEmail).
		Msg("download link delivered")
	return nil
}
