// Package handlers exposes the contest API over Gin.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the interfaces below, and translate results
// and service errors into responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/http/middleware"
	"github.com/tbourn/meme-daily-backend/internal/services"
	"github.com/tbourn/meme-daily-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SettlementService runs and audits the daily settlement.
type SettlementService interface {
	Run(ctx context.Context) (*services.SettlementResult, error)
	ListRuns(ctx context.Context, limit int) ([]domain.SettlementRun, error)
}

// VoteService mutates votes.
type VoteService interface {
	Toggle(ctx context.Context, submissionID, voterID string) (*services.VoteResult, error)
	Set(ctx context.Context, submissionID, voterID string) (*services.VoteResult, error)
	Unset(ctx context.Context, submissionID, voterID string) (*services.VoteResult, error)
}

// RoundService reads rounds.
type RoundService interface {
	Current(ctx context.Context) (*domain.Round, error)
	Get(ctx context.Context, id string) (*domain.Round, error)
	ListArchived(ctx context.Context, page, pageSize int) ([]domain.Round, int64, error)
}

// SubmissionService manages captions.
type SubmissionService interface {
	Create(ctx context.Context, userID, text string) (*domain.Submission, error)
	ListPage(ctx context.Context, roundID string, page, pageSize int) ([]domain.Submission, int64, error)
	// Stats returns the aggregate that the list ETag is derived from.
	Stats(ctx context.Context, roundID string) (count, votes int64, maxUpdatedAt *time.Time, err error)
	Edit(ctx context.Context, userID, submissionID, text string) (*domain.Submission, error)
}

// ProfileService manages the caller's profile, spin and purchases.
type ProfileService interface {
	Ensure(ctx context.Context, userID, displayName string) (*domain.UserProfile, error)
	AcknowledgeRank(ctx context.Context, userID string) error
	DailySpin(ctx context.Context, userID string) (*services.SpinResult, error)
	BuyEditToken(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// LeaderboardService serves top lists.
type LeaderboardService interface {
	Top(ctx context.Context, period string) ([]services.LeaderboardEntry, error)
}

// PushService manages push subscriptions.
type PushService interface {
	Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) error
}

// CaptionService proposes captions.
type CaptionService interface {
	Suggest(ctx context.Context, roundID string) (*services.Suggestion, error)
}

// IdempotencyStore persists responses of keyed requests so a retry replays
// the first outcome. Lookup returns (nil, nil) on a miss.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scope, key string, status int, body []byte) error
}

//
// Handler wiring
//

// Deps lists the services a Handlers instance dispatches to. Idempotency may
// be nil, which disables replay.
type Deps struct {
	Settlement  SettlementService
	Votes       VoteService
	Rounds      RoundService
	Submissions SubmissionService
	Profiles    ProfileService
	Leaderboard LeaderboardService
	Push        PushService
	Captions    CaptionService
	Idempotency IdempotencyStore
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	settleSvc SettlementService
	voteSvc   VoteService
	roundSvc  RoundService
	subSvc    SubmissionService
	profSvc   ProfileService
	boardSvc  LeaderboardService
	pushSvc   PushService
	capSvc    CaptionService
	idem      IdempotencyStore
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		settleSvc: d.Settlement,
		voteSvc:   d.Votes,
		roundSvc:  d.Rounds,
		subSvc:    d.Submissions,
		profSvc:   d.Profiles,
		boardSvc:  d.Leaderboard,
		pushSvc:   d.Push,
		capSvc:    d.Captions,
		idem:      d.Idempotency,
	}
}

// userID is the caller as resolved by middleware.CallerID.
func userID(c *gin.Context) string { return middleware.CallerID(c) }

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}
