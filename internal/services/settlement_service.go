// Package services – SettlementService
//
// This file implements the daily settlement job: close every active round,
// pay its authors, and open the next round with never-used content. The job
// is triggered from outside (cron hitting an HTTP endpoint, or the CLI) and
// may run more than once per day, so every step is guarded:
//
//   - a round already published today short-circuits the whole run;
//   - an optional Redis lease keeps concurrent runs apart;
//   - each round is claimed with a conditional status update, so a retried
//     run never pays the same round twice;
//   - the monthly reset is keyed by month and happens at most once;
//   - publish_date and content_id are unique in the database.
//
// Notifications are best-effort and never fail the run.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/content"
	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/lock"
	"github.com/tbourn/meme-daily-backend/internal/notify"
	"github.com/tbourn/meme-daily-backend/internal/observability"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/scoring"
)

// Settlement outcomes reported in SettlementResult.Status.
const (
	StatusSettled        = "settled"
	StatusAlreadySettled = "already_settled"
)

const dateLayout = "2006-01-02"

// ArchivedRound summarizes the payout of one closed round.
type ArchivedRound struct {
	RoundID             string `json:"round_id"`
	WinningSubmissionID string `json:"winning_submission_id,omitempty"`
	WinnerID            string `json:"winner_id,omitempty"`
	Submissions         int    `json:"submissions"`
	PaidAuthors         int    `json:"paid_authors"`
	PointsPaid          int    `json:"points_paid"`
}

// SettlementResult describes what a run did. For already_settled only Date
// and Round are meaningful.
type SettlementResult struct {
	Status       string          `json:"status"`
	Date         string          `json:"date"`
	Round        *domain.Round   `json:"round"`
	Archived     []ArchivedRound `json:"archived"`
	MonthlyReset bool            `json:"monthly_reset"`
	Attempts     int             `json:"attempts"`
}

// Invalidator drops cached read models after balances changed.
type Invalidator interface {
	Invalidate()
}

// SettlementService runs the daily settlement.
type SettlementService struct {
	DB       *gorm.DB
	Content  content.Provider
	Notifier notify.Notifier
	Locker   lock.Locker

	// Location is the canonical timezone that defines "today".
	Location *time.Location
	// MaxAttempts bounds content selection.
	MaxAttempts int
	// LockTTL is the lease length of the distributed lock.
	LockTTL time.Duration
	// PublicBaseURL prefixes links in notifications.
	PublicBaseURL string

	// Leaderboard, when set, is invalidated after a payout.
	Leaderboard Invalidator

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewSettlementService wires a SettlementService with defaults: UTC, five
// content attempts, a two minute lease and an in-process lock.
func NewSettlementService(db *gorm.DB, provider content.Provider, notifier notify.Notifier) *SettlementService {
	return &SettlementService{
		DB:          db,
		Content:     provider,
		Notifier:    notifier,
		Locker:      lock.Local{},
		Location:    time.UTC,
		MaxAttempts: 5,
		LockTTL:     2 * time.Minute,
		Now:         time.Now,
	}
}

func (s *SettlementService) today() (time.Time, string) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now().In(loc)
	return t, t.Format(dateLayout)
}

// Run performs one settlement. It is safe to call repeatedly on the same day:
// every call after the first successful one returns already_settled with the
// round created by that first call.
func (s *SettlementService) Run(ctx context.Context) (*SettlementResult, error) {
	tr := otel.Tracer("services/SettlementService")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	now, today := s.today()
	span.SetAttributes(attribute.String("settlement.date", today))
	lg := log.With().Str("component", "settlement").Str("date", today).Logger()

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		release, err := s.Locker.Acquire(ctx, "settlement:lock:"+today, ttl)
		switch {
		case errors.Is(err, lock.ErrHeld):
			observability.SettlementRuns.WithLabelValues("in_progress").Inc()
			return nil, ErrSettlementInProgress
		case err != nil:
			// The database constraints still prevent double work.
			lg.Warn().Err(err).Msg("settlement lock unavailable; running unlocked")
		default:
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					lg.Warn().Err(rerr).Msg("release settlement lock")
				}
			}()
		}
	}

	if existing, err := repo.GetRoundByDate(ctx, s.DB, today); err == nil {
		observability.SettlementRuns.WithLabelValues(StatusAlreadySettled).Inc()
		lg.Info().Str("round_id", existing.ID).Msg("already settled today")
		return &SettlementResult{Status: StatusAlreadySettled, Date: today, Round: existing, Archived: []ArchivedRound{}}, nil
	} else if !repo.IsNotFound(err) {
		return nil, s.fail(span, fmt.Errorf("check today's round: %w", err))
	}

	item, attempts, err := s.pickContent(ctx)
	if err != nil {
		if errors.Is(err, ErrContentExhausted) {
			observability.SettlementRuns.WithLabelValues("content_exhausted").Inc()
			span.RecordError(err)
			return nil, err
		}
		return nil, s.fail(span, err)
	}

	res := &SettlementResult{Status: StatusSettled, Date: today, Attempts: attempts, Archived: []ArchivedRound{}}

	if now.Day() == 1 {
		month := now.Format("2006-01")
		var reset bool
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var terr error
			reset, terr = repo.ResetMonthlyPoints(ctx, tx, month)
			return terr
		})
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("monthly reset: %w", err))
		}
		res.MonthlyReset = reset
		if reset {
			lg.Info().Str("month", month).Msg("monthly points reset")
		}
	}

	active, err := repo.ListActiveRounds(ctx, s.DB)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list active rounds: %w", err))
	}
	paid := map[string]int{}
	for _, r := range active {
		ar, winner, deltas, claimed, err := s.settleRound(ctx, r.ID)
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("settle round %s: %w", r.ID, err))
		}
		if !claimed {
			lg.Info().Str("round_id", r.ID).Msg("round already archived by another run")
			continue
		}
		res.Archived = append(res.Archived, ar)
		for a, d := range deltas {
			paid[a] += d
		}
		observability.SettlementPoints.Add(float64(ar.PointsPaid))
		lg.Info().
			Str("round_id", r.ID).
			Int("submissions", ar.Submissions).
			Int("paid_authors", ar.PaidAuthors).
			Int("points", ar.PointsPaid).
			Msg("round archived")

		if winner != nil && s.Notifier != nil {
			observability.Notifications.WithLabelValues("winner").Inc()
			s.Notifier.NotifyUser(ctx, winner.AuthorID, notify.Message{
				Title: "Your caption won!",
				Body:  fmt.Sprintf("%q took the round with %d votes.", winner.Text, winner.Votes),
				URL:   s.link("/rounds/" + r.ID),
			})
		}
	}
	if len(res.Archived) > 0 {
		if err := s.rankDaily(ctx, paid); err != nil {
			// Payouts are committed; placements are display-only.
			lg.Error().Err(err).Msg("record daily ranks")
		}
	}
	if (len(res.Archived) > 0 || res.MonthlyReset) && s.Leaderboard != nil {
		s.Leaderboard.Invalidate()
	}

	round := &domain.Round{
		Status:      domain.RoundActive,
		ContentID:   item.ID,
		AssetURL:    item.AssetURL,
		PreviewURL:  item.PreviewURL,
		PublishDate: today,
	}
	if err := repo.CreateRound(ctx, s.DB, round); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			if existing, gerr := repo.GetRoundByDate(ctx, s.DB, today); gerr == nil {
				observability.SettlementRuns.WithLabelValues(StatusAlreadySettled).Inc()
				lg.Info().Str("round_id", existing.ID).Msg("concurrent run created today's round")
				res.Status = StatusAlreadySettled
				res.Round = existing
				return res, nil
			}
		}
		return nil, s.fail(span, fmt.Errorf("create round: %w", err))
	}
	res.Round = round
	span.SetAttributes(attribute.String("round.id", round.ID), attribute.Int("settlement.archived", len(res.Archived)))

	if s.Notifier != nil {
		observability.Notifications.WithLabelValues("new_round").Inc()
		s.Notifier.Broadcast(ctx, notify.Message{
			Title: "A new round is live",
			Body:  "Today's meme is waiting for your caption.",
			URL:   s.link("/"),
		}, "")
	}

	run := &domain.SettlementRun{
		RunDate:       today,
		RoundID:       round.ID,
		ArchivedCount: len(res.Archived),
		MonthlyReset:  res.MonthlyReset,
		Attempts:      attempts,
	}
	for _, a := range res.Archived {
		run.PaidAuthors += a.PaidAuthors
		run.PointsPaid += a.PointsPaid
	}
	if err := repo.CreateSettlementRun(ctx, s.DB, run); err != nil {
		// The round is live; a missing audit row must not fail the run.
		lg.Error().Err(err).Msg("record settlement run")
	}

	observability.SettlementRuns.WithLabelValues(StatusSettled).Inc()
	lg.Info().Str("round_id", round.ID).Str("content_id", round.ContentID).Int("attempts", attempts).Msg("settlement complete")
	return res, nil
}

// ListRuns returns the most recent settlement audit rows.
func (s *SettlementService) ListRuns(ctx context.Context, limit int) ([]domain.SettlementRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return repo.ListSettlementRuns(ctx, s.DB, limit)
}

// pickContent asks the provider for candidates until one was never used.
func (s *SettlementService) pickContent(ctx context.Context) (*content.Item, int, error) {
	max := s.MaxAttempts
	if max <= 0 {
		max = 5
	}
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}
		item, err := s.Content.Random(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("content provider failed")
			continue
		}
		used, err := repo.ContentUsed(ctx, s.DB, item.ID)
		if err != nil {
			return nil, attempt, fmt.Errorf("check content: %w", err)
		}
		if !used {
			return item, attempt, nil
		}
		log.Ctx(ctx).Debug().Str("content_id", item.ID).Int("attempt", attempt).Msg("content already used")
	}
	return nil, max, ErrContentExhausted
}

// settleRound archives and pays one round in a single transaction. claimed
// is false when the round was no longer active, in which case nothing was
// written.
func (s *SettlementService) settleRound(ctx context.Context, roundID string) (ar ArchivedRound, winner *scoring.Entry, deltas map[string]int, claimed bool, err error) {
	ar.RoundID = roundID
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repo.ArchiveRound(ctx, tx, roundID)
		if err != nil || !ok {
			return err
		}
		claimed = true

		subs, err := repo.ListRoundSubmissions(ctx, tx, roundID)
		if err != nil {
			return err
		}
		entries := make([]scoring.Entry, 0, len(subs))
		for _, sub := range subs {
			entries = append(entries, scoring.Entry{
				SubmissionID: sub.ID,
				AuthorID:     sub.AuthorID,
				Text:         sub.Text,
				Votes:        sub.VoteCount,
				CreatedAt:    sub.CreatedAt,
			})
		}
		out := scoring.Aggregate(entries)
		ar.Submissions = len(subs)

		if out.Winner != nil {
			if err := repo.SetRoundWinner(ctx, tx, roundID, out.Winner.SubmissionID, out.Winner.Text); err != nil {
				return err
			}
			winner = out.Winner
			ar.WinningSubmissionID = out.Winner.SubmissionID
			ar.WinnerID = out.Winner.AuthorID
		}

		authors := make([]string, 0, len(out.Deltas))
		for a := range out.Deltas {
			authors = append(authors, a)
		}
		sort.Strings(authors)
		for _, a := range authors {
			if err := repo.CreditPoints(ctx, tx, a, out.Deltas[a]); err != nil {
				return err
			}
			ar.PaidAuthors++
			ar.PointsPaid += out.Deltas[a]
		}
		deltas = out.Deltas
		return nil
	})
	if err != nil {
		return ArchivedRound{}, nil, nil, false, err
	}
	return ar, winner, deltas, claimed, nil
}

// rankDaily replaces every stored placement with the ranking of this run's
// combined payouts, so one author paid in two overdue rounds ranks once.
func (s *SettlementService) rankDaily(ctx context.Context, paid map[string]int) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ClearDailyRanks(ctx, tx); err != nil {
			return err
		}
		for _, st := range scoring.Rank(paid) {
			if err := repo.SetDailyRank(ctx, tx, st.AuthorID, st.Rank); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SettlementService) link(path string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + path
}

func (s *SettlementService) fail(span trace.Span, err error) error {
	observability.SettlementRuns.WithLabelValues("error").Inc()
	span.RecordError(err)
	return err
}
