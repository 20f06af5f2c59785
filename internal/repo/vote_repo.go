// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote model
// and the denormalized vote counter on submissions.
//
// The insert and delete helpers report whether they changed a row. Callers
// pair that signal with AdjustVoteCount inside one transaction so the counter
// always equals the number of vote rows.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// InsertVote records voterID's vote on submissionID. It returns false when
// the vote already existed.
func InsertVote(ctx context.Context, db *gorm.DB, submissionID, voterID string) (bool, error) {
	v := &domain.Vote{SubmissionID: submissionID, VoterID: voterID, CreatedAt: time.Now().UTC()}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(v)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteVote removes voterID's vote on submissionID. It returns false when
// there was nothing to remove.
func DeleteVote(ctx context.Context, db *gorm.DB, submissionID, voterID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("submission_id = ? AND voter_id = ?", submissionID, voterID).
		Delete(&domain.Vote{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HasVote reports whether voterID has voted for submissionID.
func HasVote(ctx context.Context, db *gorm.DB, submissionID, voterID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("submission_id = ? AND voter_id = ?", submissionID, voterID).
		Count(&n).Error
	return n > 0, err
}

// AdjustVoteCount atomically adds delta to a submission's vote_count.
func AdjustVoteCount(ctx context.Context, db *gorm.DB, submissionID string, delta int) error {
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Where("id = ?", submissionID).
		UpdateColumn("vote_count", gorm.Expr("vote_count + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVoteCount reads the current vote_count of a submission.
func GetVoteCount(ctx context.Context, db *gorm.DB, submissionID string) (int, error) {
	var row struct{ VoteCount int }
	res := db.WithContext(ctx).
		Model(&domain.Submission{}).
		Select("vote_count").
		Where("id = ?", submissionID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return row.VoteCount, nil
}

// CountVotes counts the vote rows of a submission.
func CountVotes(ctx context.Context, db *gorm.DB, submissionID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("submission_id = ?", submissionID).
		Count(&n).Error
	return n, err
}
