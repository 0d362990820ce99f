// Package notifications defines the notification service interface used to
// deliver purchase emails.
package notifications

import "context"

type Notification struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
	PlainBody string
}

type NotificationService interface {
	New(conf any) error
	SendNotification(context.Context, *Notification) error
}
