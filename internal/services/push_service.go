// Package services – PushService
//
// Registration of Web Push endpoints.
package services

import (
	"context"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

// PushService manages push subscriptions.
type PushService struct {
	DB *gorm.DB
}

// NewPushService constructs a PushService.
func NewPushService(db *gorm.DB) *PushService { return &PushService{DB: db} }

// Subscribe registers (or refreshes) an endpoint for userID.
func (s *PushService) Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.TrimSpace(p256dh) == "" || strings.TrimSpace(auth) == "" {
		return nil, ErrInvalidSubscription
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, ErrInvalidSubscription
	}
	return repo.UpsertPushSubscription(ctx, s.DB, userID, endpoint, p256dh, auth)
}

// Unsubscribe removes userID's registration of endpoint.
func (s *PushService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	if err := repo.DeletePushSubscription(ctx, s.DB, userID, strings.TrimSpace(endpoint)); err != nil {
		if repo.IsNotFound(err) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return nil
}
