package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/services"
)

// ---------- function-field stubs for the service contracts ----------

type stubSettlement struct {
	run      func(ctx context.Context) (*services.SettlementResult, error)
	listRuns func(ctx context.Context, limit int) ([]domain.SettlementRun, error)
}

func (s stubSettlement) Run(ctx context.Context) (*services.SettlementResult, error) {
	return s.run(ctx)
}

func (s stubSettlement) ListRuns(ctx context.Context, limit int) ([]domain.SettlementRun, error) {
	return s.listRuns(ctx, limit)
}

// countingVotes records every call and answers with a running count, so
// replayed requests are visible as missing calls.
type countingVotes struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (v *countingVotes) record(op, submissionID, voterID string) (*services.VoteResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	v.calls = append(v.calls, op+":"+submissionID+":"+voterID)
	return &services.VoteResult{SubmissionID: submissionID, VoteCount: len(v.calls), Voted: op != "unset"}, nil
}

func (v *countingVotes) Toggle(_ context.Context, s, u string) (*services.VoteResult, error) {
	return v.record("toggle", s, u)
}

func (v *countingVotes) Set(_ context.Context, s, u string) (*services.VoteResult, error) {
	return v.record("set", s, u)
}

func (v *countingVotes) Unset(_ context.Context, s, u string) (*services.VoteResult, error) {
	return v.record("unset", s, u)
}

type stubRounds struct {
	current      func(ctx context.Context) (*domain.Round, error)
	get          func(ctx context.Context, id string) (*domain.Round, error)
	listArchived func(ctx context.Context, page, pageSize int) ([]domain.Round, int64, error)
}

func (s stubRounds) Current(ctx context.Context) (*domain.Round, error) { return s.current(ctx) }

func (s stubRounds) Get(ctx context.Context, id string) (*domain.Round, error) { return s.get(ctx, id) }

func (s stubRounds) ListArchived(ctx context.Context, page, pageSize int) ([]domain.Round, int64, error) {
	return s.listArchived(ctx, page, pageSize)
}

type stubSubmissions struct {
	create   func(ctx context.Context, userID, text string) (*domain.Submission, error)
	listPage func(ctx context.Context, roundID string, page, pageSize int) ([]domain.Submission, int64, error)
	stats    func(ctx context.Context, roundID string) (int64, int64, *time.Time, error)
	edit     func(ctx context.Context, userID, submissionID, text string) (*domain.Submission, error)
}

func (s stubSubmissions) Create(ctx context.Context, userID, text string) (*domain.Submission, error) {
	return s.create(ctx, userID, text)
}

func (s stubSubmissions) ListPage(ctx context.Context, roundID string, page, pageSize int) ([]domain.Submission, int64, error) {
	return s.listPage(ctx, roundID, page, pageSize)
}

func (s stubSubmissions) Stats(ctx context.Context, roundID string) (int64, int64, *time.Time, error) {
	return s.stats(ctx, roundID)
}

func (s stubSubmissions) Edit(ctx context.Context, userID, submissionID, text string) (*domain.Submission, error) {
	return s.edit(ctx, userID, submissionID, text)
}

type stubProfiles struct {
	ensure  func(ctx context.Context, userID, displayName string) (*domain.UserProfile, error)
	ack     func(ctx context.Context, userID string) error
	spin    func(ctx context.Context, userID string) (*services.SpinResult, error)
	buyEdit func(ctx context.Context, userID string) (*domain.UserProfile, error)
}

func (s stubProfiles) Ensure(ctx context.Context, userID, displayName string) (*domain.UserProfile, error) {
	return s.ensure(ctx, userID, displayName)
}

func (s stubProfiles) AcknowledgeRank(ctx context.Context, userID string) error {
	return s.ack(ctx, userID)
}

func (s stubProfiles) DailySpin(ctx context.Context, userID string) (*services.SpinResult, error) {
	return s.spin(ctx, userID)
}

func (s stubProfiles) BuyEditToken(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return s.buyEdit(ctx, userID)
}

type stubBoard func(ctx context.Context, period string) ([]services.LeaderboardEntry, error)

func (f stubBoard) Top(ctx context.Context, period string) ([]services.LeaderboardEntry, error) {
	return f(ctx, period)
}

type stubPush struct {
	subscribe   func(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error)
	unsubscribe func(ctx context.Context, userID, endpoint string) error
}

func (s stubPush) Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	return s.subscribe(ctx, userID, endpoint, p256dh, auth)
}

func (s stubPush) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return s.unsubscribe(ctx, userID, endpoint)
}

type stubCaptions func(ctx context.Context, roundID string) (*services.Suggestion, error)

func (f stubCaptions) Suggest(ctx context.Context, roundID string) (*services.Suggestion, error) {
	return f(ctx, roundID)
}

// memIdem is an in-memory IdempotencyStore.
type memIdem struct {
	mu   sync.Mutex
	rows map[string]domain.Idempotency
	save error
}

func newMemIdem() *memIdem { return &memIdem{rows: map[string]domain.Idempotency{}} }

func (m *memIdem) Lookup(_ context.Context, userID, scope, key string) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.rows[userID+"|"+scope+"|"+key]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memIdem) Save(_ context.Context, userID, scope, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.save != nil {
		return m.save
	}
	m.rows[userID+"|"+scope+"|"+key] = domain.Idempotency{
		UserID: userID, Scope: scope, Key: key, Status: status, Response: string(body),
	}
	return nil
}

// newTestRouter mounts every handler on a bare engine, the same paths the
// real router uses without the base path.
func newTestRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(d)
	r := gin.New()

	r.GET("/settlement/run", h.RunSettlement)
	r.GET("/settlement/runs", h.ListSettlementRuns)

	r.GET("/rounds/current", h.GetCurrentRound)
	r.GET("/rounds/archive", h.ListArchivedRounds)
	r.GET("/rounds/:id", h.GetRound)
	r.GET("/rounds/:id/submissions", h.ListSubmissions)
	r.POST("/rounds/current/submissions", h.CreateSubmission)
	r.POST("/rounds/current/suggestions", h.SuggestCaption)
	r.PUT("/submissions/:id", h.EditSubmission)

	r.POST("/votes", h.ToggleVote)
	r.PUT("/submissions/:id/vote", h.SetVote)
	r.DELETE("/submissions/:id/vote", h.UnsetVote)

	r.GET("/profile", h.GetProfile)
	r.POST("/profile/rank/ack", h.AcknowledgeRank)
	r.POST("/profile/spin", h.DailySpin)
	r.POST("/store/edit-token", h.BuyEditToken)
	r.GET("/leaderboard", h.GetLeaderboard)

	r.POST("/push/subscriptions", h.Subscribe)
	r.DELETE("/push/subscriptions", h.Unsubscribe)
	return r
}
