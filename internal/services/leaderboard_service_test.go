package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/meme-daily-backend/internal/repo"
)

func TestLeaderboard_RanksAndCaches(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	_ = repo.CreditPoints(ctx, db, "a", 10)
	_ = repo.CreditPoints(ctx, db, "b", 10)
	_ = repo.CreditPoints(ctx, db, "c", 3)

	s := NewLeaderboardService(db, 10, time.Hour)
	got, err := s.Top(ctx, "")
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(got) != 3 || got[0].Rank != 1 || got[1].Rank != 1 || got[2].Rank != 3 || got[2].UserID != "c" {
		t.Fatalf("unexpected board: %+v", got)
	}

	// Cached until invalidated.
	_ = repo.CreditPoints(ctx, db, "c", 100)
	got, _ = s.Top(ctx, repo.PeriodMonthly)
	if got[0].UserID == "c" {
		t.Fatalf("expected cached board")
	}
	s.Invalidate()
	got, _ = s.Top(ctx, repo.PeriodMonthly)
	if got[0].UserID != "c" || got[0].Points != 103 {
		t.Fatalf("expected fresh board after invalidate: %+v", got)
	}

	if _, err := s.Top(ctx, "weekly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestLeaderboard_CacheExpiresAndCanBeDisabled(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	_ = repo.CreditPoints(ctx, db, "a", 5)

	s := NewLeaderboardService(db, 10, 50*time.Millisecond)
	if got, _ := s.Top(ctx, repo.PeriodLifetime); len(got) != 1 {
		t.Fatalf("unexpected board: %+v", got)
	}
	_ = repo.CreditPoints(ctx, db, "b", 9)
	if got, _ := s.Top(ctx, repo.PeriodLifetime); len(got) != 1 {
		t.Fatalf("expected cached board before expiry: %+v", got)
	}
	time.Sleep(120 * time.Millisecond)
	if got, _ := s.Top(ctx, repo.PeriodLifetime); len(got) != 2 || got[0].UserID != "b" {
		t.Fatalf("expected fresh board after expiry: %+v", got)
	}

	uncached := NewLeaderboardService(db, 10, 0)
	_ = repo.CreditPoints(ctx, db, "c", 20)
	if got, _ := uncached.Top(ctx, repo.PeriodLifetime); got[0].UserID != "c" {
		t.Fatalf("expected live board without cache: %+v", got)
	}
	uncached.Invalidate()
}
