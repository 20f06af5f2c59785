// Package services – LeaderboardService
//
// Monthly and lifetime top lists. Results are cached in an LRU with a TTL;
// the cache is dropped whenever settlement pays out, and the database stays
// the source of truth.
package services

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/repo"
)

// LeaderboardEntry is one line of a leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int    `json:"points"`
}

// LeaderboardService serves top-N lists.
type LeaderboardService struct {
	DB   *gorm.DB
	Size int

	// nil when caching is disabled (ttl <= 0).
	cache *expirable.LRU[string, []LeaderboardEntry]
}

// NewLeaderboardService constructs a LeaderboardService. Boards are cached
// for ttl; ttl <= 0 disables the cache.
func NewLeaderboardService(db *gorm.DB, size int, ttl time.Duration) *LeaderboardService {
	if size <= 0 {
		size = 50
	}
	s := &LeaderboardService{DB: db, Size: size}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []LeaderboardEntry](8, nil, ttl)
	}
	return s
}

// Top returns the leaderboard for period ("monthly" or "lifetime").
func (s *LeaderboardService) Top(ctx context.Context, period string) ([]LeaderboardEntry, error) {
	if period == "" {
		period = repo.PeriodMonthly
	}
	if period != repo.PeriodMonthly && period != repo.PeriodLifetime {
		return nil, ErrInvalidPeriod
	}
	if s.cache != nil {
		if v, ok := s.cache.Get(period); ok {
			return v, nil
		}
	}

	profiles, err := repo.TopProfiles(ctx, s.DB, period, s.Size)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		pts := p.MonthlyPoints
		if period == repo.PeriodLifetime {
			pts = p.LifetimePoints
		}
		rank := i + 1
		if i > 0 && out[i-1].Points == pts {
			rank = out[i-1].Rank
		}
		out = append(out, LeaderboardEntry{Rank: rank, UserID: p.ID, DisplayName: p.DisplayName, Points: pts})
	}
	if s.cache != nil {
		s.cache.Add(period, out)
	}
	return out, nil
}

// Invalidate drops every cached board.
func (s *LeaderboardService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
