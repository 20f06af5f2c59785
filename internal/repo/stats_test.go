package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// PRAGMAs are per connection; pin to one so foreign keys stay enforced.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newFullDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedRound(t *testing.T, db *gorm.DB, id, date, status string) *domain.Round {
	t.Helper()
	r := &domain.Round{ID: id, Status: status, ContentID: "content-" + id, AssetURL: "https://a/" + id, PreviewURL: "https://p/" + id, PublishDate: date}
	if err := CreateRound(context.Background(), db, r); err != nil {
		t.Fatalf("seed round %s: %v", id, err)
	}
	return r
}

func seedSubmission(t *testing.T, db *gorm.DB, id, roundID, author string, votes int, at time.Time) *domain.Submission {
	t.Helper()
	s := &domain.Submission{ID: id, RoundID: roundID, AuthorID: author, Text: "caption " + id, VoteCount: votes, CreatedAt: at, UpdatedAt: at}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed submission %s: %v", id, err)
	}
	return s
}

func TestSubmissionsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, _, err := SubmissionsStats(context.Background(), db, "r1")
	if err == nil {
		t.Fatalf("expected error due to missing submissions table")
	}
}

func TestSubmissionsStats_Empty(t *testing.T) {
	db := newFullDB(t)
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)

	count, votes, max, err := SubmissionsStats(context.Background(), db, "r1")
	if err != nil {
		t.Fatalf("SubmissionsStats: %v", err)
	}
	if count != 0 || votes != 0 || max != nil {
		t.Fatalf("expected (0, 0, nil), got (%d, %d, %v)", count, votes, max)
	}
}

func TestSubmissionsStats_CountsVotesAndLatest(t *testing.T) {
	db := newFullDB(t)
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)
	seedRound(t, db, "r2", "2026-10-02", domain.RoundPending)

	t1 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	seedSubmission(t, db, "s1", "r1", "u1", 3, t1)
	seedSubmission(t, db, "s2", "r1", "u2", 4, t2)
	seedSubmission(t, db, "s3", "r2", "u3", 100, t2.Add(time.Hour))

	count, votes, max, err := SubmissionsStats(context.Background(), db, "r1")
	if err != nil {
		t.Fatalf("SubmissionsStats: %v", err)
	}
	if count != 2 || votes != 7 {
		t.Fatalf("expected count=2 votes=7, got count=%d votes=%d", count, votes)
	}
	if max == nil || !max.Equal(t2) {
		t.Fatalf("expected max updated_at %v, got %v", t2, max)
	}
}
