// Package domain defines the persistence models for rounds, submissions,
// votes, user profiles and push subscriptions. These types are mapped with
// GORM and form the core data layer of the daily caption contest.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Round lifecycle states.
const (
	RoundPending  = "pending"
	RoundActive   = "active"
	RoundArchived = "archived"
)

// Round is one day's content-and-competition cycle. Exactly one round exists
// per calendar date (unique publish_date) and at most one is active at a time.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Status: pending | active | archived (enforced by DB constraint).
//   - ContentID: stable identifier from the content provider; unique so the
//     same piece of content is never shown twice.
//   - AssetURL / PreviewURL: playable and static renditions of the content.
//   - PublishDate: calendar date (YYYY-MM-DD) in the canonical timezone.
//   - WinningSubmissionID / WinningText: set by settlement, nil until then.
type Round struct {
	ID                  string    `json:"id"                              gorm:"type:char(36);primaryKey"`
	Status              string    `json:"status"                          gorm:"type:varchar(16);not null;index;check:status IN ('pending','active','archived')"`
	ContentID           string    `json:"content_id"                      gorm:"type:varchar(128);not null;uniqueIndex:ux_rounds_content"`
	AssetURL            string    `json:"asset_url"                       gorm:"type:text;not null"`
	PreviewURL          string    `json:"preview_url"                     gorm:"type:text;not null"`
	PublishDate         string    `json:"publish_date"                    gorm:"type:char(10);not null;uniqueIndex:ux_rounds_publish_date"`
	WinningSubmissionID *string   `json:"winning_submission_id,omitempty" gorm:"type:char(36)"`
	WinningText         *string   `json:"winning_text,omitempty"          gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for Round.
func (Round) TableName() string { return "rounds" }

// Submission is a user's caption for a round. VoteCount is a cache of the
// number of Vote rows referencing the submission and is only changed by the
// vote operations.
type Submission struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	RoundID   string    `json:"round_id"   gorm:"type:char(36);not null;index:idx_round_subs,priority:1"`
	AuthorID  string    `json:"author_id"  gorm:"type:varchar(64);not null;index"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	VoteCount int       `json:"vote_count" gorm:"not null;default:0"`
	Edited    bool      `json:"edited"     gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_round_subs,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`

	Round Round `json:"-" gorm:"foreignKey:RoundID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string { return "submissions" }

// Vote is a single voter's like on a single submission. Presence means
// "liked"; the (submission_id, voter_id) pair is unique.
type Vote struct {
	SubmissionID string    `json:"submission_id" gorm:"type:char(36);primaryKey"`
	VoterID      string    `json:"voter_id"      gorm:"type:varchar(64);primaryKey;index"`
	CreatedAt    time.Time `json:"created_at"`

	Submission Submission `json:"-" gorm:"foreignKey:SubmissionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// UserProfile holds one account's balances and entitlements.
//
// Fields:
//   - MonthlyPoints / LifetimePoints: only ever increased by settlement; the
//     monthly balance is zeroed by the first settlement of each month.
//   - Credits: in-game currency spent in the store and earned by spins.
//   - Entitlements: named flags and consumable grants, e.g.
//     "edit_token:<round id>": true.
//   - LastSpinDate: YYYY-MM-DD of the last free spin, empty if never.
//   - DailyRank: placement in the last settled round, cleared on acknowledgment.
//   - Version: optimistic concurrency counter for entitlement updates.
type UserProfile struct {
	ID             string            `json:"id"               gorm:"type:varchar(64);primaryKey"`
	DisplayName    string            `json:"display_name"     gorm:"type:varchar(64);not null;default:''"`
	MonthlyPoints  int               `json:"monthly_points"   gorm:"not null;default:0;index"`
	LifetimePoints int               `json:"lifetime_points"  gorm:"not null;default:0;index"`
	Credits        int               `json:"credits"          gorm:"not null;default:0"`
	Entitlements   datatypes.JSONMap `json:"entitlements"     gorm:"type:text"`
	LastSpinDate   string            `json:"last_spin_date"   gorm:"type:char(10);not null;default:''"`
	DailyRank      *int              `json:"daily_rank,omitempty"`
	Version        int               `json:"-"                gorm:"not null;default:0"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// HasEntitlement reports whether the named entitlement is granted.
func (p *UserProfile) HasEntitlement(name string) bool {
	if p == nil || p.Entitlements == nil {
		return false
	}
	v, ok := p.Entitlements[name]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// EditTokenEntitlement names the single-use edit grant scoped to a round.
func EditTokenEntitlement(roundID string) string { return "edit_token:" + roundID }

// PushSubscription is a registered Web Push endpoint for a user. A user may
// own several endpoints (one per browser/device).
type PushSubscription struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_push_user_endpoint,priority:1"`
	Endpoint  string    `json:"endpoint"   gorm:"type:varchar(512);not null;uniqueIndex:ux_push_user_endpoint,priority:2"`
	P256dh    string    `json:"p256dh"     gorm:"type:text;not null"`
	Auth      string    `json:"auth"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PushSubscription.
func (PushSubscription) TableName() string { return "push_subscriptions" }
