package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers a text message to a recipient. Delivery is best-effort and each call
// is independent of the others.
type Notifier interface {
	Notify(ctx context.Context, recipientID, text string) error
}

// Console writes notifications to the log instead of a chat transport
type Console struct{}

func (Console) Notify(_ context.Context, recipientID, text string) error {
	log.WithField("recipient", recipientID).Infof("📣 %s", text)
	return nil
}
