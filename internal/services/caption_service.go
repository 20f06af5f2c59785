// Package services – CaptionService
//
// AI caption suggestions for a round's content.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/caption"
	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

// Suggestion is a proposed caption.
type Suggestion struct {
	RoundID string `json:"round_id"`
	Text    string `json:"text"`
}

// CaptionService asks the model for a caption.
type CaptionService struct {
	DB        *gorm.DB
	Suggester caption.Suggester

	MaxCaptionRunes int
}

// NewCaptionService constructs a CaptionService.
func NewCaptionService(db *gorm.DB, s caption.Suggester) *CaptionService {
	return &CaptionService{DB: db, Suggester: s, MaxCaptionRunes: 280}
}

// Suggest proposes a caption for roundID, or for the active round when
// roundID is empty. Model failures are reported as ErrCaptionUnavailable.
func (s *CaptionService) Suggest(ctx context.Context, roundID string) (*Suggestion, error) {
	tr := otel.Tracer("services/CaptionService")
	ctx, span := tr.Start(ctx, "Suggest", trace.WithAttributes(attribute.String("round.id", roundID)))
	defer span.End()

	var (
		round *domain.Round
		err   error
	)
	if roundID == "" {
		round, err = repo.GetActiveRound(ctx, s.DB)
		if repo.IsNotFound(err) {
			return nil, ErrNoActiveRound
		}
	} else {
		round, err = repo.GetRound(ctx, s.DB, roundID)
		if repo.IsNotFound(err) {
			return nil, ErrRoundNotFound
		}
	}
	if err != nil {
		return nil, err
	}

	if s.Suggester == nil {
		return nil, ErrCaptionUnavailable
	}
	text, err := s.Suggester.Suggest(ctx, round.PreviewURL)
	if err != nil {
		span.RecordError(err)
		log.Ctx(ctx).Warn().Err(err).Str("round_id", round.ID).Msg("caption suggestion failed")
		return nil, ErrCaptionUnavailable
	}
	text = clipRunes(cleanCaption(text), s.MaxCaptionRunes)
	if text == "" {
		return nil, ErrCaptionUnavailable
	}
	return &Suggestion{RoundID: round.ID, Text: text}, nil
}
