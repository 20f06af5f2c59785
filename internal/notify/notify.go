// Package notify delivers best-effort Web Push notifications. Delivery never
// fails the caller: errors are logged and dropped.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Message is the payload shown by the browser.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Notifier sends messages to one user or to everyone.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, msg Message)
	Broadcast(ctx context.Context, msg Message, exceptUserID string)
}

// Noop logs instead of delivering. It is used when no VAPID keys are
// configured.
type Noop struct{}

// NotifyUser implements Notifier.
func (Noop) NotifyUser(ctx context.Context, userID string, msg Message) {
	log.Ctx(ctx).Debug().Str("user_id", userID).Str("title", msg.Title).Msg("push disabled; dropping notification")
}

// Broadcast implements Notifier.
func (Noop) Broadcast(ctx context.Context, msg Message, exceptUserID string) {
	log.Ctx(ctx).Debug().Str("except_user_id", exceptUserID).Str("title", msg.Title).Msg("push disabled; dropping broadcast")
}
