package services

import (
	"context"
	"errors"
	"testing"
)

func TestPushSubscribeAndUnsubscribe(t *testing.T) {
	s := NewPushService(newServiceDB(t))
	ctx := context.Background()

	if _, err := s.Subscribe(ctx, "", "https://push/x", "k", "a"); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	for _, ep := range []string{"", "http://push/x", "not a url"} {
		if _, err := s.Subscribe(ctx, "u1", ep, "k", "a"); !errors.Is(err, ErrInvalidSubscription) {
			t.Fatalf("endpoint %q: expected ErrInvalidSubscription, got %v", ep, err)
		}
	}
	if _, err := s.Subscribe(ctx, "u1", "https://push/x", "", "a"); !errors.Is(err, ErrInvalidSubscription) {
		t.Fatalf("expected ErrInvalidSubscription for missing key, got %v", err)
	}

	sub, err := s.Subscribe(ctx, "u1", "https://push/x", "k", "a")
	if err != nil || sub.UserID != "u1" {
		t.Fatalf("Subscribe: sub=%+v err=%v", sub, err)
	}
	if err := s.Unsubscribe(ctx, "u1", "https://push/x"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := s.Unsubscribe(ctx, "u1", "https://push/x"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}
