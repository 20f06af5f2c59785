// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Round model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a round is not found, functions return ErrNotFound.
//   - CreateRound maps unique violations (publish date, content id) to
//     ErrDuplicate.
//   - ArchiveRound is a conditional update and reports whether it changed
//     the row, so callers can tell a fresh claim from an already archived
//     round.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// CreateRound inserts r, assigning an ID when empty. Unique violations on
// publish_date or content_id are returned as ErrDuplicate.
func CreateRound(ctx context.Context, db *gorm.DB, r *domain.Round) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetRound fetches a round by ID.
func GetRound(ctx context.Context, db *gorm.DB, id string) (*domain.Round, error) {
	var r domain.Round
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoundByDate fetches the round published on date (YYYY-MM-DD).
func GetRoundByDate(ctx context.Context, db *gorm.DB, date string) (*domain.Round, error) {
	var r domain.Round
	if err := db.WithContext(ctx).Where("publish_date = ?", date).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActiveRound returns the most recently published active round.
func GetActiveRound(ctx context.Context, db *gorm.DB) (*domain.Round, error) {
	var r domain.Round
	err := db.WithContext(ctx).
		Where("status = ?", domain.RoundActive).
		Order("publish_date DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListActiveRounds returns every active round, oldest first. Normally there
// is at most one.
func ListActiveRounds(ctx context.Context, db *gorm.DB) ([]domain.Round, error) {
	var out []domain.Round
	err := db.WithContext(ctx).
		Where("status = ?", domain.RoundActive).
		Order("publish_date ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ContentUsed reports whether any round already references contentID.
func ContentUsed(ctx context.Context, db *gorm.DB, contentID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("content_id = ?", contentID).
		Count(&n).Error
	return n > 0, err
}

// ArchiveRound flips an active round to archived. It returns false when the
// round was not active (already archived or missing), in which case nothing
// was written.
func ArchiveRound(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("id = ? AND status = ?", id, domain.RoundActive).
		Updates(map[string]any{
			"status":     domain.RoundArchived,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetRoundWinner records the winning submission on a round.
func SetRoundWinner(ctx context.Context, db *gorm.DB, roundID, submissionID, text string) error {
	res := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("id = ?", roundID).
		Updates(map[string]any{
			"winning_submission_id": submissionID,
			"winning_text":          text,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountArchivedRounds returns the number of archived rounds.
func CountArchivedRounds(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Round{}).
		Where("status = ?", domain.RoundArchived).
		Count(&total).Error
	return total, err
}

// ListArchivedRoundsPage returns archived rounds, newest first.
func ListArchivedRoundsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Round, error) {
	var out []domain.Round
	err := db.WithContext(ctx).
		Where("status = ?", domain.RoundArchived).
		Order("publish_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// IsNotFound reports whether err is a not-found error from this package.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
