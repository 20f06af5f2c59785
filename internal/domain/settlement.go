package domain

import "time"

// MonthlyReset marks that monthly balances were zeroed for a month
// ("YYYY-MM"). The unique month makes the reset happen at most once.
type MonthlyReset struct {
	Month     string    `json:"month"      gorm:"type:char(7);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for MonthlyReset.
func (MonthlyReset) TableName() string { return "monthly_resets" }

// SettlementRun is the audit record of a completed settlement for one date.
type SettlementRun struct {
	RunDate       string    `json:"run_date"       gorm:"type:char(10);primaryKey"`
	RoundID       string    `json:"round_id"       gorm:"type:char(36);not null"`
	ArchivedCount int       `json:"archived_count" gorm:"not null;default:0"`
	PaidAuthors   int       `json:"paid_authors"   gorm:"not null;default:0"`
	PointsPaid    int       `json:"points_paid"    gorm:"not null;default:0"`
	MonthlyReset  bool      `json:"monthly_reset"  gorm:"not null;default:false"`
	Attempts      int       `json:"attempts"       gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for SettlementRun.
func (SettlementRun) TableName() string { return "settlement_runs" }
