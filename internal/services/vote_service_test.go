package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

func newVoteFixture(t *testing.T) (*VoteService, *fakeNotifier) {
	t.Helper()
	db := newServiceDB(t)
	mustRound(t, db, "r1", "2026-10-15", domain.RoundActive)
	mustSubmission(t, db, "s1", "r1", "author", 0, time.Now().UTC())
	n := &fakeNotifier{}
	return NewVoteService(db, n), n
}

func TestToggle_OnThenOff(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	res, err := s.Toggle(ctx, "s1", "v1")
	require.NoError(t, err)
	assert.Equal(t, &VoteResult{SubmissionID: "s1", VoteCount: 1, Voted: true}, res)
	has, _ := repo.HasVote(ctx, s.DB, "s1", "v1")
	assert.True(t, has)

	res, err = s.Toggle(ctx, "s1", "v1")
	require.NoError(t, err)
	assert.Equal(t, &VoteResult{SubmissionID: "s1", VoteCount: 0, Voted: false}, res)
	has, _ = repo.HasVote(ctx, s.DB, "s1", "v1")
	assert.False(t, has)
}

func TestToggle_ConcurrentDistinctVoters(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, v := range []string{"v1", "v2"} {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := s.Toggle(ctx, "s1", voter)
			errs <- err
		}(v)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := repo.GetVoteCount(ctx, s.DB, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestToggle_CountNeverDriftsUnderContention(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Toggle(ctx, "s1", fmt.Sprintf("v%d", i%3))
		}(i)
	}
	wg.Wait()

	cached, err := repo.GetVoteCount(ctx, s.DB, "s1")
	require.NoError(t, err)
	rows, err := repo.CountVotes(ctx, s.DB, "s1")
	require.NoError(t, err)
	assert.Equal(t, int(rows), cached)
	// Eight toggles per voter leave nobody voted.
	assert.Equal(t, 0, cached)
}

func TestSetUnset_Idempotent(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.Set(ctx, "s1", "v1")
		require.NoError(t, err)
		assert.Equal(t, 1, res.VoteCount)
		assert.True(t, res.Voted)
	}
	for i := 0; i < 3; i++ {
		res, err := s.Unset(ctx, "s1", "v1")
		require.NoError(t, err)
		assert.Equal(t, 0, res.VoteCount)
		assert.False(t, res.Voted)
	}
}

func TestVote_Preconditions(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	_, err := s.Toggle(ctx, "s1", "  ")
	assert.ErrorIs(t, err, ErrMissingUser)

	_, err = s.Toggle(ctx, "nope", "v1")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)

	ok, err := repo.ArchiveRound(ctx, s.DB, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.Set(ctx, "s1", "v1")
	assert.ErrorIs(t, err, ErrRoundClosed)

	n, _ := repo.GetVoteCount(ctx, s.DB, "s1")
	assert.Zero(t, n, "rejected votes must not write")
}

func TestVote_MilestoneOnIncrementToFive(t *testing.T) {
	s, n := newVoteFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := s.Set(ctx, "s1", fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}
	n.Reset()

	res, err := s.Set(ctx, "s1", "v5")
	require.NoError(t, err)
	assert.Equal(t, 5, res.VoteCount)

	direct := n.Direct()
	require.Len(t, direct, 1)
	assert.Equal(t, "author", direct[0].UserID)
	assert.Contains(t, direct[0].Msg.Body, "5 votes")

	// Repeating the same Set does not notify again.
	_, err = s.Set(ctx, "s1", "v5")
	require.NoError(t, err)
	assert.Len(t, n.Direct(), 1)
}

func TestVote_NoMilestoneOnDecrement(t *testing.T) {
	s, n := newVoteFixture(t)
	ctx := context.Background()

	_, _ = s.Set(ctx, "s1", "v1")
	_, _ = s.Set(ctx, "s1", "v2")
	n.Reset()

	res, err := s.Unset(ctx, "s1", "v2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.VoteCount)
	assert.Empty(t, n.Direct())
}

func TestVote_SelfVoteNeverNotifies(t *testing.T) {
	s, n := newVoteFixture(t)
	ctx := context.Background()

	res, err := s.Toggle(ctx, "s1", "author")
	require.NoError(t, err)
	assert.Equal(t, 1, res.VoteCount)
	assert.Empty(t, n.Direct())
}

// A toggle whose delete misses but whose insert hits a vote committed in the
// meantime must cancel that vote instead of reporting a second "on".
func TestToggle_InterleavedToggleFlipsBack(t *testing.T) {
	s, _ := newVoteFixture(t)
	ctx := context.Background()

	fired := false
	require.NoError(t, s.DB.Callback().Delete().After("gorm:delete").Register("test:interleave", func(db *gorm.DB) {
		if fired || db.Statement.Table != "votes" || db.RowsAffected != 0 {
			return
		}
		fired = true
		other := db.Session(&gorm.Session{NewDB: true})
		added, err := repo.InsertVote(ctx, other, "s1", "v1")
		require.NoError(t, err)
		require.True(t, added)
		require.NoError(t, repo.AdjustVoteCount(ctx, other, "s1", 1))
	}))

	res, err := s.Toggle(ctx, "s1", "v1")
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, &VoteResult{SubmissionID: "s1", VoteCount: 0, Voted: false}, res)

	has, err := repo.HasVote(ctx, s.DB, "s1", "v1")
	require.NoError(t, err)
	assert.False(t, has)
}
