// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// SubmissionsStats returns aggregate metadata for a round's submissions: the
// total number of rows, the sum of their vote counts and the maximum
// UpdatedAt timestamp among those rows.
//
// Votes do not touch updated_at, so the vote sum is part of the result to
// let ETags change when only counts moved. When the round has no
// submissions, count is 0 and maxUpdatedAt is nil.
func SubmissionsStats(ctx context.Context, db *gorm.DB, roundID string) (count, votes int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Submission{}).Where("round_id = ?", roundID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	var sum struct{ Total int64 }
	if err = db.WithContext(ctx).Model(&domain.Submission{}).
		Select("COALESCE(SUM(vote_count), 0) AS total").
		Where("round_id = ?", roundID).
		Scan(&sum).Error; err != nil {
		return 0, 0, nil, err
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Submission{}).
		Select("updated_at").
		Where("round_id = ?", roundID).
		Order("updated_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, sum.Total, &row.UpdatedAt, nil
}
