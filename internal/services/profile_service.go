// Package services – ProfileService
//
// ProfileService owns the credit side of a profile: the free daily spin and
// store purchases. Purchases use the profile's version column as an
// optimistic lock and retry a few times before giving up with ErrConflict.
package services

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

const purchaseAttempts = 3

// SpinResult is the outcome of a daily spin.
type SpinResult struct {
	Reward  int                 `json:"reward"`
	Profile *domain.UserProfile `json:"profile"`
}

// ProfileService manages user profiles.
type ProfileService struct {
	DB *gorm.DB

	// Location defines the calendar day of the daily spin.
	Location *time.Location
	// EditTokenPrice is the credit cost of an edit token.
	EditTokenPrice int
	// SpinMin and SpinMax bound the spin reward (inclusive).
	SpinMin, SpinMax int

	Now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProfileService constructs a ProfileService with defaults.
func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{
		DB:             db,
		Location:       time.UTC,
		EditTokenPrice: 50,
		SpinMin:        5,
		SpinMax:        50,
		Now:            time.Now,
	}
}

// Ensure returns userID's profile, creating it on first sight.
func (s *ProfileService) Ensure(ctx context.Context, userID, displayName string) (*domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	return repo.EnsureProfile(ctx, s.DB, userID, clipRunes(strings.TrimSpace(displayName), 64))
}

// Get returns userID's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if repo.IsNotFound(err) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// AcknowledgeRank clears the stored daily placement once the user saw it.
func (s *ProfileService) AcknowledgeRank(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	if err := repo.ClearDailyRank(ctx, s.DB, userID); err != nil {
		if repo.IsNotFound(err) {
			return ErrProfileNotFound
		}
		return err
	}
	return nil
}

// DailySpin grants a random credit reward once per calendar day.
func (s *ProfileService) DailySpin(ctx context.Context, userID string) (*SpinResult, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "DailySpin", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := s.Ensure(ctx, userID, ""); err != nil {
		return nil, err
	}
	reward := s.reward()
	ok, err := repo.ClaimDailySpin(ctx, s.DB, userID, s.today(), reward)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadySpun
	}
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("spin.reward", reward))
	return &SpinResult{Reward: reward, Profile: p}, nil
}

// BuyEditToken spends EditTokenPrice credits on an edit token for the active
// round.
func (s *ProfileService) BuyEditToken(ctx context.Context, userID string) (*domain.UserProfile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "BuyEditToken", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := s.Ensure(ctx, userID, ""); err != nil {
		return nil, err
	}
	round, err := repo.GetActiveRound(ctx, s.DB)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNoActiveRound
		}
		return nil, err
	}
	token := domain.EditTokenEntitlement(round.ID)

	for attempt := 0; attempt < purchaseAttempts; attempt++ {
		p, err := repo.GetProfile(ctx, s.DB, userID)
		if err != nil {
			return nil, err
		}
		if p.HasEntitlement(token) {
			return nil, ErrAlreadyEntitled
		}
		if p.Credits < s.EditTokenPrice {
			return nil, ErrInsufficientCredits
		}
		ents := datatypes.JSONMap{}
		for k, v := range p.Entitlements {
			ents[k] = v
		}
		ents[token] = true

		ok, err := repo.UpdateEntitlements(ctx, s.DB, userID, p.Version, -s.EditTokenPrice, ents)
		if err != nil {
			return nil, err
		}
		if ok {
			return repo.GetProfile(ctx, s.DB, userID)
		}
	}
	return nil, ErrConflict
}

func (s *ProfileService) today() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc).Format(dateLayout)
}

func (s *ProfileService) reward() int {
	lo, hi := s.SpinMin, s.SpinMax
	if hi < lo {
		hi = lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return lo + s.rng.Intn(hi-lo+1)
}
