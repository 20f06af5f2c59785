package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&Round{}, &Submission{}, &Vote{}, &UserProfile{}, &PushSubscription{}, &MonthlyReset{}, &SettlementRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Round{}).TableName():            "rounds",
		(Submission{}).TableName():       "submissions",
		(Vote{}).TableName():             "votes",
		(UserProfile{}).TableName():      "user_profiles",
		(PushSubscription{}).TableName(): "push_subscriptions",
		(MonthlyReset{}).TableName():     "monthly_resets",
		(SettlementRun{}).TableName():    "settlement_runs",
		(Idempotency{}).TableName():      "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_UniqueConstraints(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	for _, idx := range []string{"ux_rounds_content", "ux_rounds_publish_date"} {
		if !m.HasIndex(&Round{}, idx) {
			t.Fatalf("expected index %s on rounds", idx)
		}
	}
	if !m.HasIndex(&Submission{}, "idx_round_subs") {
		t.Fatalf("expected index idx_round_subs on submissions")
	}
	if !m.HasIndex(&PushSubscription{}, "ux_push_user_endpoint") {
		t.Fatalf("expected index ux_push_user_endpoint on push_subscriptions")
	}

	now := time.Now().UTC()
	r1 := &Round{ID: "r1", Status: RoundActive, ContentID: "gif-1", AssetURL: "a", PreviewURL: "p", PublishDate: "2026-10-01", CreatedAt: now}
	if err := db.Create(r1).Error; err != nil {
		t.Fatalf("insert round: %v", err)
	}

	// Same publish date must be rejected.
	dupDate := &Round{ID: "r2", Status: RoundActive, ContentID: "gif-2", AssetURL: "a", PreviewURL: "p", PublishDate: "2026-10-01"}
	if err := db.Create(dupDate).Error; err == nil {
		t.Fatalf("expected unique violation on publish_date")
	}
	// Same content must be rejected.
	dupContent := &Round{ID: "r3", Status: RoundPending, ContentID: "gif-1", AssetURL: "a", PreviewURL: "p", PublishDate: "2026-10-02"}
	if err := db.Create(dupContent).Error; err == nil {
		t.Fatalf("expected unique violation on content_id")
	}
	// Status check constraint.
	badStatus := &Round{ID: "r4", Status: "deleted", ContentID: "gif-4", AssetURL: "a", PreviewURL: "p", PublishDate: "2026-10-04"}
	if err := db.Create(badStatus).Error; err == nil {
		t.Fatalf("expected check constraint failure for status")
	}

	s := &Submission{ID: "s1", RoundID: "r1", AuthorID: "u1", Text: "hi"}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert submission: %v", err)
	}
	if err := db.Create(&Vote{SubmissionID: "s1", VoterID: "u2"}).Error; err != nil {
		t.Fatalf("insert vote: %v", err)
	}
	if err := db.Create(&Vote{SubmissionID: "s1", VoterID: "u2"}).Error; err == nil {
		t.Fatalf("expected duplicate vote to be rejected")
	}
}

func TestCascade_RoundDeleteRemovesSubmissionsAndVotes(t *testing.T) {
	db := newDomainDB(t)

	if err := db.Create(&Round{ID: "r1", Status: RoundActive, ContentID: "c", AssetURL: "a", PreviewURL: "p", PublishDate: "2026-10-05"}).Error; err != nil {
		t.Fatalf("seed round: %v", err)
	}
	if err := db.Create(&Submission{ID: "s1", RoundID: "r1", AuthorID: "u1", Text: "x"}).Error; err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	if err := db.Create(&Vote{SubmissionID: "s1", VoterID: "u9"}).Error; err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	if err := db.Delete(&Round{}, "id = ?", "r1").Error; err != nil {
		t.Fatalf("delete round: %v", err)
	}
	var subs, votes int64
	db.Model(&Submission{}).Count(&subs)
	db.Model(&Vote{}).Count(&votes)
	if subs != 0 || votes != 0 {
		t.Fatalf("expected cascade delete, got submissions=%d votes=%d", subs, votes)
	}
}

func TestUserProfile_EntitlementsRoundTrip(t *testing.T) {
	db := newDomainDB(t)

	p := &UserProfile{
		ID:           "u1",
		DisplayName:  "Ada",
		Entitlements: datatypes.JSONMap{EditTokenEntitlement("r1"): true, "frame:gold": true},
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert profile: %v", err)
	}

	var got UserProfile
	if err := db.First(&got, "id = ?", "u1").Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if !got.HasEntitlement("edit_token:r1") || !got.HasEntitlement("frame:gold") {
		t.Fatalf("entitlements not persisted: %+v", got.Entitlements)
	}
	if got.HasEntitlement("edit_token:r2") {
		t.Fatalf("unexpected entitlement edit_token:r2")
	}
	if got.DailyRank != nil {
		t.Fatalf("daily rank should default to nil")
	}
}

func TestHasEntitlement_NilAndNonBool(t *testing.T) {
	var p *UserProfile
	if p.HasEntitlement("x") {
		t.Fatalf("nil profile must not have entitlements")
	}
	p = &UserProfile{Entitlements: datatypes.JSONMap{"x": "yes"}}
	if p.HasEntitlement("x") {
		t.Fatalf("non-bool entitlement values are not grants")
	}
}
