// Package services – RoundService
//
// Read-only access to rounds: the live round and the archive of settled ones.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/utils"
)

// RoundService serves round lookups.
type RoundService struct {
	DB *gorm.DB
}

// NewRoundService constructs a RoundService.
func NewRoundService(db *gorm.DB) *RoundService { return &RoundService{DB: db} }

// Current returns the active round.
func (s *RoundService) Current(ctx context.Context) (*domain.Round, error) {
	tr := otel.Tracer("services/RoundService")
	ctx, span := tr.Start(ctx, "Current")
	defer span.End()

	r, err := repo.GetActiveRound(ctx, s.DB)
	if repo.IsNotFound(err) {
		return nil, ErrNoActiveRound
	}
	return r, err
}

// Get returns a round by ID.
func (s *RoundService) Get(ctx context.Context, id string) (*domain.Round, error) {
	r, err := repo.GetRound(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrRoundNotFound
	}
	return r, err
}

// ListArchived returns a page of settled rounds, newest first.
func (s *RoundService) ListArchived(ctx context.Context, page, pageSize int) ([]domain.Round, int64, error) {
	tr := otel.Tracer("services/RoundService")
	ctx, span := tr.Start(ctx, "ListArchived",
		trace.WithAttributes(
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
	total, err := repo.CountArchivedRounds(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Round{}, 0, nil
	}
	items, err := repo.ListArchivedRoundsPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}
