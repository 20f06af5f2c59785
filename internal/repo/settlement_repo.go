// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the settlement audit trail.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// CreateSettlementRun records a completed settlement. A second record for
// the same date returns ErrDuplicate.
func CreateSettlementRun(ctx context.Context, db *gorm.DB, run *domain.SettlementRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListSettlementRuns returns the most recent runs, newest first.
func ListSettlementRuns(ctx context.Context, db *gorm.DB, limit int) ([]domain.SettlementRun, error) {
	var out []domain.SettlementRun
	err := db.WithContext(ctx).
		Order("run_date DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
