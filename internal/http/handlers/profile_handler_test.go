package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/services"
)

func TestGetProfile_EnsuresWithDisplayName(t *testing.T) {
	var gotUser, gotName string
	r := newTestRouter(Deps{Profiles: stubProfiles{
		ensure: func(_ context.Context, userID, displayName string) (*domain.UserProfile, error) {
			gotUser, gotName = userID, displayName
			return &domain.UserProfile{ID: userID, DisplayName: displayName, Credits: 10}, nil
		},
	}})

	w := doJSON(r, http.MethodGet, "/profile?display_name=Al", "", map[string]string{"X-User-ID": "alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "Al", gotName)

	var p domain.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 10, p.Credits)

	// no header falls back to the demo identity
	doJSON(r, http.MethodGet, "/profile", "", nil)
	assert.Equal(t, "demo-user", gotUser)
}

func TestAcknowledgeRank(t *testing.T) {
	var err error
	r := newTestRouter(Deps{Profiles: stubProfiles{
		ack: func(context.Context, string) error { return err },
	}})

	w := doJSON(r, http.MethodPost, "/profile/rank/ack", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	err = services.ErrProfileNotFound
	w = doJSON(r, http.MethodPost, "/profile/rank/ack", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDailySpin_OncePerDay(t *testing.T) {
	spun := map[string]bool{}
	r := newTestRouter(Deps{Profiles: stubProfiles{
		spin: func(_ context.Context, userID string) (*services.SpinResult, error) {
			if spun[userID] {
				return nil, services.ErrAlreadySpun
			}
			spun[userID] = true
			return &services.SpinResult{Reward: 25, Profile: &domain.UserProfile{ID: userID, Credits: 25}}, nil
		},
	}})
	hdr := map[string]string{"X-User-ID": "alice"}

	w := doJSON(r, http.MethodPost, "/profile/spin", "", hdr)
	require.Equal(t, http.StatusOK, w.Code)
	var res services.SpinResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 25, res.Reward)

	w = doJSON(r, http.MethodPost, "/profile/spin", "", hdr)
	require.Equal(t, http.StatusConflict, w.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, ErrCodeConflict, er.Code)
}

func TestBuyEditToken_ErrorCodes(t *testing.T) {
	var err error
	r := newTestRouter(Deps{Profiles: stubProfiles{
		buyEdit: func(_ context.Context, userID string) (*domain.UserProfile, error) {
			if err != nil {
				return nil, err
			}
			return &domain.UserProfile{ID: userID, Credits: 10}, nil
		},
	}})

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/store/edit-token", "", nil).Code)

	for e, want := range map[error]int{
		services.ErrInsufficientCredits: http.StatusPreconditionFailed,
		services.ErrAlreadyEntitled:     http.StatusConflict,
		services.ErrNoActiveRound:       http.StatusNotFound,
		services.ErrConflict:            http.StatusConflict,
	} {
		err = e
		assert.Equal(t, want, doJSON(r, http.MethodPost, "/store/edit-token", "", nil).Code, e.Error())
	}
}

func TestGetLeaderboard_Periods(t *testing.T) {
	var gotPeriod string
	r := newTestRouter(Deps{Leaderboard: stubBoard(func(_ context.Context, period string) ([]services.LeaderboardEntry, error) {
		gotPeriod = period
		switch period {
		case "monthly":
			return []services.LeaderboardEntry{{Rank: 1, UserID: "a", Points: 9}, {Rank: 1, UserID: "b", Points: 9}}, nil
		case "lifetime":
			return nil, nil
		}
		return nil, services.ErrInvalidPeriod
	})})

	w := doJSON(r, http.MethodGet, "/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "monthly", gotPeriod)
	var body LeaderboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "monthly", body.Period)
	assert.Len(t, body.Entries, 2)

	w = doJSON(r, http.MethodGet, "/leaderboard?period=lifetime", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"period":"lifetime","entries":[]}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/leaderboard?period=weekly", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
