package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/content"
	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/notify"
	"github.com/tbourn/meme-daily-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustRound(t *testing.T, db *gorm.DB, id, date, status string) *domain.Round {
	t.Helper()
	r := &domain.Round{ID: id, Status: status, ContentID: "content-" + id, AssetURL: "https://m/" + id + ".gif", PreviewURL: "https://m/" + id + "_s.gif", PublishDate: date}
	if err := repo.CreateRound(context.Background(), db, r); err != nil {
		t.Fatalf("seed round: %v", err)
	}
	return r
}

func mustSubmission(t *testing.T, db *gorm.DB, id, roundID, author string, votes int, at time.Time) *domain.Submission {
	t.Helper()
	s := &domain.Submission{ID: id, RoundID: roundID, AuthorID: author, Text: "caption " + id, VoteCount: votes, CreatedAt: at, UpdatedAt: at}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	return s
}

// fakeProvider serves items in order; nil entries become errors.
type fakeProvider struct {
	mu    sync.Mutex
	items []*content.Item
	calls int
}

func (p *fakeProvider) Random(context.Context) (*content.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.items) || p.items[i] == nil {
		return nil, errors.New("provider unavailable")
	}
	it := *p.items[i]
	return &it, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func gif(id string) *content.Item {
	return &content.Item{ID: id, AssetURL: "https://m/" + id + ".gif", PreviewURL: "https://m/" + id + "_s.gif"}
}

type sentMessage struct {
	UserID string
	Msg    notify.Message
}

type fakeNotifier struct {
	mu         sync.Mutex
	direct     []sentMessage
	broadcasts []sentMessage
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID string, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct = append(n.direct, sentMessage{UserID: userID, Msg: msg})
}

func (n *fakeNotifier) Broadcast(_ context.Context, msg notify.Message, except string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, sentMessage{UserID: except, Msg: msg})
}

func (n *fakeNotifier) Direct() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.direct...)
}

func (n *fakeNotifier) Broadcasts() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.broadcasts...)
}

func (n *fakeNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.direct, n.broadcasts = nil, nil
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
