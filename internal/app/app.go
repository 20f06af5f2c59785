// Package app assembles the application services from configuration. The
// HTTP server and the one-off settle command share this wiring so both run
// the settlement with the same lock, content source and notifier.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/caption"
	"github.com/tbourn/meme-daily-backend/internal/config"
	"github.com/tbourn/meme-daily-backend/internal/content"
	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/http/handlers"
	"github.com/tbourn/meme-daily-backend/internal/lock"
	"github.com/tbourn/meme-daily-backend/internal/notify"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/services"
)

// Integrations are the outbound collaborators of the services.
type Integrations struct {
	Content   content.Provider
	Notifier  notify.Notifier
	Locker    lock.Locker
	Suggester caption.Suggester
}

// NewIntegrations builds the production collaborators from cfg. The returned
// close func releases the Redis connection when one was opened.
func NewIntegrations(ctx context.Context, db *gorm.DB, cfg config.Config) (Integrations, func(), error) {
	in := Integrations{
		Content: content.NewClient(cfg.Content.BaseURL, cfg.Content.APIKey, cfg.Content.Tag, cfg.Content.Rating, cfg.Content.Timeout),
		Notifier: notify.NewWebPush(db, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber,
			cfg.Push.Timeout, cfg.Push.Concurrency),
		Locker:    lock.Local{},
		Suggester: caption.NewClient(cfg.LLM.BaseURL, cfg.LLM.Token, cfg.LLM.Model, cfg.LLM.Timeout),
	}
	closer := func() {}

	if cfg.Redis.Addr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := lock.NewRedisClient(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return Integrations{}, closer, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		in.Locker = &lock.Redis{Client: rc}
		closer = func() { closeRedis(rc) }
	} else {
		log.Warn().Msg("REDIS_ADDR not set; settlement uses an in-process lock")
	}
	if _, ok := in.Notifier.(notify.Noop); ok {
		log.Warn().Msg("VAPID keys not set; push notifications disabled")
	}
	return in, closer, nil
}

func closeRedis(rc *redis.Client) {
	if err := rc.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis")
	}
}

// App holds the configured services.
type App struct {
	DB *gorm.DB

	Settlement  *services.SettlementService
	Votes       *services.VoteService
	Rounds      *services.RoundService
	Submissions *services.SubmissionService
	Profiles    *services.ProfileService
	Leaderboard *services.LeaderboardService
	Push        *services.PushService
	Captions    *services.CaptionService

	Idempotency *IdempotencyStore
}

// Build wires every service against db using cfg and the collaborators in.
func Build(db *gorm.DB, cfg config.Config, in Integrations) *App {
	loc := cfg.Settlement.Location
	if loc == nil {
		loc = time.UTC
	}

	board := services.NewLeaderboardService(db, cfg.Game.LeaderboardSize, cfg.Game.LeaderboardTTL)

	settle := services.NewSettlementService(db, in.Content, in.Notifier)
	settle.Location = loc
	settle.MaxAttempts = cfg.Settlement.ContentAttempts
	settle.LockTTL = cfg.Settlement.LockTTL
	settle.PublicBaseURL = cfg.PublicBaseURL
	settle.Leaderboard = board
	if in.Locker != nil {
		settle.Locker = in.Locker
	}

	votes := services.NewVoteService(db, in.Notifier)
	votes.PublicBaseURL = cfg.PublicBaseURL

	subs := services.NewSubmissionService(db)
	subs.MaxCaptionRunes = cfg.Game.MaxCaptionRunes

	profiles := services.NewProfileService(db)
	profiles.Location = loc
	profiles.EditTokenPrice = cfg.Game.EditTokenPrice

	captions := services.NewCaptionService(db, in.Suggester)
	captions.MaxCaptionRunes = cfg.Game.MaxCaptionRunes

	return &App{
		DB:          db,
		Settlement:  settle,
		Votes:       votes,
		Rounds:      services.NewRoundService(db),
		Submissions: subs,
		Profiles:    profiles,
		Leaderboard: board,
		Push:        services.NewPushService(db),
		Captions:    captions,
		Idempotency: &IdempotencyStore{DB: db, TTL: cfg.IdempotencyTTL},
	}
}

// Deps exposes the services to the HTTP handlers.
func (a *App) Deps() handlers.Deps {
	return handlers.Deps{
		Settlement:  a.Settlement,
		Votes:       a.Votes,
		Rounds:      a.Rounds,
		Submissions: a.Submissions,
		Profiles:    a.Profiles,
		Leaderboard: a.Leaderboard,
		Push:        a.Push,
		Captions:    a.Captions,
		Idempotency: a.Idempotency,
	}
}

// IdempotencyStore persists keyed vote responses in the idempotency table.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Lookup returns the unexpired record or (nil, nil) on a miss.
func (s *IdempotencyStore) Lookup(ctx context.Context, userID, scope, key string) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, s.now().UTC())
	if repo.IsNotFound(err) {
		return nil, nil
	}
	return rec, err
}

// Exists reports whether an unexpired record exists. It matches the
// middleware's lookup signature.
func (s *IdempotencyStore) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now.UTC())
	if repo.IsNotFound(err) {
		return false, nil
	}
	return rec != nil, err
}

// Save stores the response. A concurrent duplicate is not an error: the
// first stored response wins.
func (s *IdempotencyStore) Save(ctx context.Context, userID, scope, key string, status int, body []byte) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, scope, key, string(body), status, s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Purge deletes expired records and returns how many were removed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, s.now().UTC())
}
