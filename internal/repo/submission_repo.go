// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Submission
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// CreateSubmission inserts a caption for roundID authored by authorID.
func CreateSubmission(ctx context.Context, db *gorm.DB, roundID, authorID, text string) (*domain.Submission, error) {
	now := time.Now().UTC()
	s := &domain.Submission{
		ID:        uuid.NewString(),
		RoundID:   roundID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSubmission fetches a submission by ID.
func GetSubmission(ctx context.Context, db *gorm.DB, id string) (*domain.Submission, error) {
	var s domain.Submission
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListRoundSubmissions returns every submission of a round ordered by
// creation time, then ID.
func ListRoundSubmissions(ctx context.Context, db *gorm.DB, roundID string) ([]domain.Submission, error) {
	var out []domain.Submission
	err := db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountSubmissions returns the number of submissions in a round.
func CountSubmissions(ctx context.Context, db *gorm.DB, roundID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("round_id = ?", roundID).
		Count(&total).Error
	return total, err
}

// ListSubmissionsPage returns a page of a round's submissions ranked by votes
// (highest first), ties broken by age.
func ListSubmissionsPage(ctx context.Context, db *gorm.DB, roundID string, offset, limit int) ([]domain.Submission, error) {
	var out []domain.Submission
	err := db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("vote_count DESC, created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateSubmissionText rewrites the caption of a submission owned by
// authorID and marks it edited. Returns ErrNotFound when no unedited row
// matches.
func UpdateSubmissionText(ctx context.Context, db *gorm.DB, id, authorID, text string) error {
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ? AND author_id = ? AND edited = ?", id, authorID, false).
		Updates(map[string]any{
			"text":       text,
			"edited":     true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
