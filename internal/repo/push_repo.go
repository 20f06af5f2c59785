// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Web Push
// subscriptions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// UpsertPushSubscription stores a subscription, refreshing the keys when the
// (user_id, endpoint) pair is already registered.
func UpsertPushSubscription(ctx context.Context, db *gorm.DB, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	now := time.Now().UTC()
	sub := &domain.PushSubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "updated_at"}),
		}).
		Create(sub).Error
	if err != nil {
		return nil, err
	}
	var out domain.PushSubscription
	if err := db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePushSubscription removes userID's registration of endpoint.
func DeletePushSubscription(ctx context.Context, db *gorm.DB, userID, endpoint string) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&domain.PushSubscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePushEndpoint removes every registration of an endpoint the push
// service reported as gone.
func DeletePushEndpoint(ctx context.Context, db *gorm.DB, endpoint string) error {
	return db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&domain.PushSubscription{}).Error
}

// ListPushSubscriptions returns the subscriptions of one user.
func ListPushSubscriptions(ctx context.Context, db *gorm.DB, userID string) ([]domain.PushSubscription, error) {
	var out []domain.PushSubscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// ListPushSubscriptionsExcept returns every subscription not owned by
// exceptUserID. An empty exceptUserID returns all of them.
func ListPushSubscriptionsExcept(ctx context.Context, db *gorm.DB, exceptUserID string) ([]domain.PushSubscription, error) {
	q := db.WithContext(ctx).Order("created_at ASC")
	if exceptUserID != "" {
		q = q.Where("user_id <> ?", exceptUserID)
	}
	var out []domain.PushSubscription
	err := q.Find(&out).Error
	return out, err
}
