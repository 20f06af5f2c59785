package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

func TestCreateSubmission_ForeignKeyAndRoundTrip(t *testing.T) {
	db := newFullDB(t)
	ctx := context.Background()
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)

	s, err := CreateSubmission(ctx, db, "r1", "u1", "when the build is green")
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if s.ID == "" || s.VoteCount != 0 || s.Edited {
		t.Fatalf("unexpected submission: %+v", s)
	}
	got, err := GetSubmission(ctx, db, s.ID)
	if err != nil || got.Text != "when the build is green" || got.AuthorID != "u1" {
		t.Fatalf("GetSubmission: got=%+v err=%v", got, err)
	}

	if _, err := CreateSubmission(ctx, db, "missing", "u1", "x"); err == nil {
		t.Fatalf("expected foreign key error for unknown round")
	}
	if _, err := GetSubmission(ctx, db, "nope"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRoundSubmissions_CreationOrder(t *testing.T) {
	db := newFullDB(t)
	ctx := context.Background()
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	seedSubmission(t, db, "s3", "r1", "u1", 0, base.Add(2*time.Minute))
	seedSubmission(t, db, "s1", "r1", "u2", 9, base)
	seedSubmission(t, db, "s2", "r1", "u3", 1, base.Add(time.Minute))

	list, err := ListRoundSubmissions(ctx, db, "r1")
	if err != nil {
		t.Fatalf("ListRoundSubmissions: %v", err)
	}
	if len(list) != 3 || list[0].ID != "s1" || list[1].ID != "s2" || list[2].ID != "s3" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestListSubmissionsPage_RankedByVotes(t *testing.T) {
	db := newFullDB(t)
	ctx := context.Background()
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	seedSubmission(t, db, "low", "r1", "u1", 1, base)
	seedSubmission(t, db, "tieOld", "r1", "u2", 5, base.Add(time.Minute))
	seedSubmission(t, db, "tieNew", "r1", "u3", 5, base.Add(2*time.Minute))

	total, err := CountSubmissions(ctx, db, "r1")
	if err != nil || total != 3 {
		t.Fatalf("CountSubmissions: total=%d err=%v", total, err)
	}
	page, err := ListSubmissionsPage(ctx, db, "r1", 0, 2)
	if err != nil || len(page) != 2 || page[0].ID != "tieOld" || page[1].ID != "tieNew" {
		t.Fatalf("unexpected first page: %+v err=%v", page, err)
	}
	page, err = ListSubmissionsPage(ctx, db, "r1", 2, 2)
	if err != nil || len(page) != 1 || page[0].ID != "low" {
		t.Fatalf("unexpected second page: %+v err=%v", page, err)
	}
}

func TestUpdateSubmissionText_AuthorOnly(t *testing.T) {
	db := newFullDB(t)
	ctx := context.Background()
	seedRound(t, db, "r1", "2026-10-01", domain.RoundActive)
	seedSubmission(t, db, "s1", "r1", "u1", 2, time.Now().UTC())

	if err := UpdateSubmissionText(ctx, db, "s1", "intruder", "hijack"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for non-author, got %v", err)
	}
	if err := UpdateSubmissionText(ctx, db, "s1", "u1", "better"); err != nil {
		t.Fatalf("UpdateSubmissionText: %v", err)
	}
	got, _ := GetSubmission(ctx, db, "s1")
	if got.Text != "better" || !got.Edited || got.VoteCount != 2 {
		t.Fatalf("unexpected edited submission: %+v", got)
	}
	if err := UpdateSubmissionText(ctx, db, "s1", "u1", "third"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for an edited caption, got %v", err)
	}
	if got, _ := GetSubmission(ctx, db, "s1"); got.Text != "better" {
		t.Fatalf("edited caption was rewritten: %q", got.Text)
	}
}
