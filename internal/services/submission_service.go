// Package services – SubmissionService
//
// SubmissionService accepts captions for the live round, lists a round's
// captions, and lets an author rewrite their caption once per edit token.
// Captions are normalized (NFC), stripped of markup, whitespace-collapsed and
// length-checked before they reach the database.
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/utils"
)

// SubmissionService manages captions.
type SubmissionService struct {
	DB *gorm.DB

	// MaxCaptionRunes caps caption length (0 disables the check).
	MaxCaptionRunes int
}

// NewSubmissionService constructs a SubmissionService with a 280 rune cap.
func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{DB: db, MaxCaptionRunes: 280}
}

// Create adds userID's caption to the active round.
func (s *SubmissionService) Create(ctx context.Context, userID, text string) (*domain.Submission, error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	text, err := validateCaption(text, s.MaxCaptionRunes)
	if err != nil {
		return nil, err
	}

	var out *domain.Submission
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		round, err := repo.GetActiveRound(ctx, tx)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNoActiveRound
			}
			return err
		}
		if _, err := repo.EnsureProfile(ctx, tx, userID, ""); err != nil {
			return err
		}
		out, err = repo.CreateSubmission(ctx, tx, round.ID, userID, text)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("submission.id", out.ID), attribute.String("round.id", out.RoundID))
	return out, nil
}

// ListPage returns a page of a round's captions ranked by votes.
func (s *SubmissionService) ListPage(ctx context.Context, roundID string, page, pageSize int) ([]domain.Submission, int64, error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("round.id", roundID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	if _, err := repo.GetRound(ctx, s.DB, roundID); err != nil {
		if repo.IsNotFound(err) {
			return nil, 0, ErrRoundNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountSubmissions(ctx, s.DB, roundID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Submission{}, 0, nil
	}
	items, err := repo.ListSubmissionsPage(ctx, s.DB, roundID, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// Stats returns the aggregate used for the submissions list ETag.
func (s *SubmissionService) Stats(ctx context.Context, roundID string) (count, votes int64, maxUpdatedAt *time.Time, err error) {
	return repo.SubmissionsStats(ctx, s.DB, roundID)
}

// Edit rewrites userID's caption. The round must still be active and the
// author must hold an edit token for it; the token is consumed in the same
// transaction as the rewrite.
func (s *SubmissionService) Edit(ctx context.Context, userID, submissionID, text string) (*domain.Submission, error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "Edit",
		trace.WithAttributes(
			attribute.String("submission.id", submissionID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	text, err := validateCaption(text, s.MaxCaptionRunes)
	if err != nil {
		return nil, err
	}

	var out *domain.Submission
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := repo.GetSubmission(ctx, tx, submissionID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrSubmissionNotFound
			}
			return err
		}
		if sub.AuthorID != userID {
			return ErrForbidden
		}
		round, err := repo.GetRound(ctx, tx, sub.RoundID)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundActive {
			return ErrRoundClosed
		}
		if sub.Edited {
			return ErrAlreadyEdited
		}

		profile, err := repo.GetProfile(ctx, tx, userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrNoEditToken
			}
			return err
		}
		token := domain.EditTokenEntitlement(round.ID)
		if !profile.HasEntitlement(token) {
			return ErrNoEditToken
		}
		ents := datatypes.JSONMap{}
		for k, v := range profile.Entitlements {
			if k != token {
				ents[k] = v
			}
		}
		ok, err := repo.UpdateEntitlements(ctx, tx, userID, profile.Version, 0, ents)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		if err := repo.UpdateSubmissionText(ctx, tx, submissionID, userID, text); err != nil {
			if repo.IsNotFound(err) {
				return ErrAlreadyEdited
			}
			return err
		}
		out, err = repo.GetSubmission(ctx, tx, submissionID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}
