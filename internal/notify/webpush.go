package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

// SendFunc delivers one encrypted payload to one subscription.
type SendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// WebPush fans messages out to stored push subscriptions using VAPID.
type WebPush struct {
	DB          *gorm.DB
	PublicKey   string
	PrivateKey  string
	Subscriber  string
	TTL         int
	Timeout     time.Duration
	Concurrency int

	// Send defaults to webpush.SendNotificationWithContext.
	Send SendFunc
}

// NewWebPush returns a WebPush notifier, or Noop when keys are missing.
func NewWebPush(db *gorm.DB, publicKey, privateKey, subscriber string, timeout time.Duration, concurrency int) Notifier {
	if publicKey == "" || privateKey == "" {
		return Noop{}
	}
	return &WebPush{
		DB:          db,
		PublicKey:   publicKey,
		PrivateKey:  privateKey,
		Subscriber:  subscriber,
		TTL:         3600,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// NotifyUser sends msg to every device of userID.
func (w *WebPush) NotifyUser(ctx context.Context, userID string, msg Message) {
	subs, err := repo.ListPushSubscriptions(ctx, w.DB, userID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("list push subscriptions")
		return
	}
	w.deliver(ctx, subs, msg)
}

// Broadcast sends msg to every subscription except those of exceptUserID.
func (w *WebPush) Broadcast(ctx context.Context, msg Message, exceptUserID string) {
	subs, err := repo.ListPushSubscriptionsExcept(ctx, w.DB, exceptUserID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("list push subscriptions for broadcast")
		return
	}
	w.deliver(ctx, subs, msg)
}

func (w *WebPush) deliver(ctx context.Context, subs []domain.PushSubscription, msg Message) {
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("encode push payload")
		return
	}

	limit := w.Concurrency
	if limit <= 0 {
		limit = 8
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			if err := w.sendOne(ctx, payload, sub); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("user_id", sub.UserID).Str("endpoint", sub.Endpoint).Msg("push delivery failed")
			}
			// Never abort siblings.
			return nil
		})
	}
	_ = g.Wait()
}

func (w *WebPush) sendOne(ctx context.Context, payload []byte, sub domain.PushSubscription) error {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	send := w.Send
	if send == nil {
		send = webpush.SendNotificationWithContext
	}
	resp, err := send(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      w.Subscriber,
		VAPIDPublicKey:  w.PublicKey,
		VAPIDPrivateKey: w.PrivateKey,
		TTL:             w.TTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		// The browser dropped the subscription; stop sending to it.
		if err := repo.DeletePushEndpoint(context.WithoutCancel(ctx), w.DB, sub.Endpoint); err != nil {
			return fmt.Errorf("prune endpoint: %w", err)
		}
		log.Ctx(ctx).Info().Str("endpoint", sub.Endpoint).Msg("pruned expired push subscription")
		return nil
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service status %d", resp.StatusCode)
	}
	return nil
}
