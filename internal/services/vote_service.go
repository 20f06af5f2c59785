// Package services – VoteService
//
// VoteService flips or sets a voter's like on a submission. Each call runs in
// one transaction that pairs the vote row change with a relative update of
// submissions.vote_count, so the cached count always equals the number of
// vote rows even under concurrent double clicks:
//
//	toggle: DELETE; if nothing was deleted, INSERT ... ON CONFLICT DO NOTHING
//	set:    INSERT ... ON CONFLICT DO NOTHING
//	unset:  DELETE
//
// The counter only moves by the number of rows actually changed.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/notify"
	"github.com/tbourn/meme-daily-backend/internal/observability"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/scoring"
)

// VoteResult is the state after a vote operation.
type VoteResult struct {
	SubmissionID string `json:"submission_id"`
	VoteCount    int    `json:"vote_count"`
	Voted        bool   `json:"voted"`
}

type voteMode int

const (
	voteToggle voteMode = iota
	voteSet
	voteUnset
)

func (m voteMode) String() string {
	switch m {
	case voteSet:
		return "Set"
	case voteUnset:
		return "Unset"
	default:
		return "Toggle"
	}
}

// VoteService mutates votes and emits milestone notifications.
type VoteService struct {
	DB            *gorm.DB
	Notifier      notify.Notifier
	PublicBaseURL string
}

// NewVoteService constructs a VoteService.
func NewVoteService(db *gorm.DB, n notify.Notifier) *VoteService {
	return &VoteService{DB: db, Notifier: n}
}

// Toggle flips voterID's vote on submissionID.
func (s *VoteService) Toggle(ctx context.Context, submissionID, voterID string) (*VoteResult, error) {
	return s.apply(ctx, submissionID, voterID, voteToggle)
}

// Set ensures voterID has voted for submissionID. Repeating it is a no-op.
func (s *VoteService) Set(ctx context.Context, submissionID, voterID string) (*VoteResult, error) {
	return s.apply(ctx, submissionID, voterID, voteSet)
}

// Unset ensures voterID has not voted for submissionID. Repeating it is a no-op.
func (s *VoteService) Unset(ctx context.Context, submissionID, voterID string) (*VoteResult, error) {
	return s.apply(ctx, submissionID, voterID, voteUnset)
}

func (s *VoteService) apply(ctx context.Context, submissionID, voterID string, mode voteMode) (*VoteResult, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, mode.String(),
		trace.WithAttributes(
			attribute.String("submission.id", submissionID),
			attribute.String("user.id", voterID),
		),
	)
	defer span.End()

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, ErrMissingUser
	}

	var (
		res         VoteResult
		sub         *domain.Submission
		delta       int
		incremented bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = repo.GetSubmission(ctx, tx, submissionID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrSubmissionNotFound
			}
			return err
		}
		round, err := repo.GetRound(ctx, tx, sub.RoundID)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundActive {
			return ErrRoundClosed
		}

		switch mode {
		case voteToggle:
			removed, err := repo.DeleteVote(ctx, tx, submissionID, voterID)
			if err != nil {
				return err
			}
			if removed {
				delta = -1
				res.Voted = false
				break
			}
			added, err := repo.InsertVote(ctx, tx, submissionID, voterID)
			if err != nil {
				return err
			}
			if added {
				delta = 1
				res.Voted = true
				break
			}
			// A concurrent toggle committed the vote between our delete and
			// insert; flip it back so the two toggles cancel out.
			removed, err = repo.DeleteVote(ctx, tx, submissionID, voterID)
			if err != nil {
				return err
			}
			if removed {
				delta = -1
			}
			res.Voted = !removed
		case voteSet:
			added, err := repo.InsertVote(ctx, tx, submissionID, voterID)
			if err != nil {
				return err
			}
			if added {
				delta = 1
			}
			res.Voted = true
		case voteUnset:
			removed, err := repo.DeleteVote(ctx, tx, submissionID, voterID)
			if err != nil {
				return err
			}
			if removed {
				delta = -1
			}
			res.Voted = false
		}

		if delta != 0 {
			if err := repo.AdjustVoteCount(ctx, tx, submissionID, delta); err != nil {
				return err
			}
		}
		incremented = delta > 0

		count, err := repo.GetVoteCount(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		res.SubmissionID = submissionID
		res.VoteCount = count
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case delta > 0:
		observability.VoteChanges.WithLabelValues("add").Inc()
	case delta < 0:
		observability.VoteChanges.WithLabelValues("remove").Inc()
	default:
		observability.VoteChanges.WithLabelValues("noop").Inc()
	}
	span.SetAttributes(attribute.Int("vote.count", res.VoteCount), attribute.Bool("vote.voted", res.Voted))

	// Only an increment can reach a milestone, and never for self-votes.
	if incremented && voterID != sub.AuthorID && scoring.IsMilestone(res.VoteCount) && s.Notifier != nil {
		observability.Notifications.WithLabelValues("milestone").Inc()
		log.Ctx(ctx).Debug().Str("submission_id", submissionID).Int("votes", res.VoteCount).Msg("milestone reached")
		s.Notifier.NotifyUser(ctx, sub.AuthorID, notify.Message{
			Title: "Your caption is taking off",
			Body:  fmt.Sprintf("%q reached %d %s.", sub.Text, res.VoteCount, plural(res.VoteCount, "vote", "votes")),
			URL:   strings.TrimRight(s.PublicBaseURL, "/") + "/rounds/" + sub.RoundID,
		})
	}
	return &res, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
