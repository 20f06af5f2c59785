// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for UserProfile:
// creation, point crediting, the monthly reset, spins and versioned
// entitlement updates.
//
// Balance changes are expressed as SQL increments (col = col + ?) so
// concurrent writers never lose updates. Entitlement rewrites use the
// profile's version column as an optimistic lock.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// EnsureProfile returns the profile for id, creating it when missing.
func EnsureProfile(ctx context.Context, db *gorm.DB, id, displayName string) (*domain.UserProfile, error) {
	now := time.Now().UTC()
	p := &domain.UserProfile{
		ID:           id,
		DisplayName:  displayName,
		Entitlements: datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, id)
}

// GetProfile fetches a profile by user ID.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreditPoints adds delta to both the monthly and lifetime balances of id,
// creating the profile when it does not exist yet.
func CreditPoints(ctx context.Context, db *gorm.DB, id string, delta int) error {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"monthly_points":  gorm.Expr("monthly_points + ?", delta),
			"lifetime_points": gorm.Expr("lifetime_points + ?", delta),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	now := time.Now().UTC()
	p := &domain.UserProfile{
		ID:             id,
		MonthlyPoints:  delta,
		LifetimePoints: delta,
		Entitlements:   datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			// Created concurrently; the increment now has a row to hit.
			return CreditPoints(ctx, db, id, delta)
		}
		return err
	}
	return nil
}

// ResetMonthlyPoints zeroes every monthly balance the first time it is
// called for month (YYYY-MM). It reports whether the reset happened. Callers
// run it inside the settlement transaction so the marker and the reset
// commit together.
func ResetMonthlyPoints(ctx context.Context, db *gorm.DB, month string) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.MonthlyReset{Month: month, CreatedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("monthly_points <> 0").
		UpdateColumn("monthly_points", 0).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearDailyRanks drops every stored daily placement.
func ClearDailyRanks(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("daily_rank IS NOT NULL").
		UpdateColumn("daily_rank", nil).Error
}

// SetDailyRank stores the placement of id in the last settled round.
func SetDailyRank(ctx context.Context, db *gorm.DB, id string, rank int) error {
	return db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("id = ?", id).
		UpdateColumn("daily_rank", rank).Error
}

// ClearDailyRank acknowledges the placement of a single user.
func ClearDailyRank(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("id = ?", id).
		UpdateColumn("daily_rank", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDailySpin grants reward credits if id has not spun on date yet.
// It returns false when today's spin was already used.
func ClaimDailySpin(ctx context.Context, db *gorm.DB, id, date string, reward int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("id = ? AND last_spin_date <> ?", id, date).
		UpdateColumns(map[string]any{
			"last_spin_date": date,
			"credits":        gorm.Expr("credits + ?", reward),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateEntitlements replaces the entitlements of a profile and applies
// creditDelta, but only if the stored version still equals version and the
// resulting balance stays non-negative. It returns false when either guard
// failed.
func UpdateEntitlements(ctx context.Context, db *gorm.DB, id string, version, creditDelta int, ents datatypes.JSONMap) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.UserProfile{}).
		Where("id = ? AND version = ? AND credits + ? >= 0", id, version, creditDelta).
		UpdateColumns(map[string]any{
			"entitlements": ents,
			"credits":      gorm.Expr("credits + ?", creditDelta),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Leaderboard periods.
const (
	PeriodMonthly  = "monthly"
	PeriodLifetime = "lifetime"
)

// TopProfiles returns the limit highest balances for period, ties broken by
// user ID.
func TopProfiles(ctx context.Context, db *gorm.DB, period string, limit int) ([]domain.UserProfile, error) {
	var col string
	switch period {
	case PeriodMonthly:
		col = "monthly_points"
	case PeriodLifetime:
		col = "lifetime_points"
	default:
		return nil, fmt.Errorf("unknown leaderboard period %q", period)
	}
	var out []domain.UserProfile
	err := db.WithContext(ctx).
		Where(col+" > 0").
		Order(col + " DESC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
