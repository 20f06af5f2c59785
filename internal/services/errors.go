// Package services defines the business logic for rounds, submissions, votes,
// profiles and the daily settlement. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Lookup errors.
var (
	// ErrRoundNotFound indicates that the requested round does not exist.
	ErrRoundNotFound = errors.New("round not found")

	// ErrNoActiveRound is returned when an operation needs the current round
	// and none is active (before the first settlement).
	ErrNoActiveRound = errors.New("no active round")

	// ErrSubmissionNotFound indicates that the requested submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrProfileNotFound indicates that the user has no profile yet.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrSubscriptionNotFound is returned when removing an unknown push endpoint.
	ErrSubscriptionNotFound = errors.New("push subscription not found")
)

// Validation and authorization errors.
var (
	// ErrMissingUser is returned when no caller identity was supplied.
	ErrMissingUser = errors.New("user id is required")

	// ErrEmptyCaption is returned when a caption is empty after sanitizing.
	ErrEmptyCaption = errors.New("caption is empty")

	// ErrTooLong is returned when a caption exceeds the configured rune limit.
	ErrTooLong = errors.New("caption too long")

	// ErrInvalidPeriod is returned for an unknown leaderboard period.
	ErrInvalidPeriod = errors.New("period must be monthly or lifetime")

	// ErrInvalidSubscription is returned when a push subscription is missing
	// its endpoint or keys.
	ErrInvalidSubscription = errors.New("endpoint, p256dh and auth are required")

	// ErrForbidden is returned when a user mutates a resource they do not own.
	ErrForbidden = errors.New("not the owner of this resource")

	// ErrRoundClosed is returned when voting on or editing a submission whose
	// round is no longer active.
	ErrRoundClosed = errors.New("round is closed")

	// ErrAlreadyEdited is returned when a caption that was already edited
	// is edited again. A caption changes at most once.
	ErrAlreadyEdited = errors.New("caption already edited")
)

// Precondition errors. Each names the unmet requirement.
var (
	// ErrNoEditToken is returned when editing without an edit token for the round.
	ErrNoEditToken = errors.New("edit token required for this round")

	// ErrInsufficientCredits is returned when a purchase exceeds the balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyEntitled is returned when buying an entitlement already held.
	ErrAlreadyEntitled = errors.New("entitlement already owned")

	// ErrAlreadySpun is returned when the free daily spin was already used.
	ErrAlreadySpun = errors.New("daily spin already used")

	// ErrConflict is returned when an optimistic update kept losing races.
	ErrConflict = errors.New("concurrent update, retry")
)

// Settlement and upstream errors.
var (
	// ErrContentExhausted is returned when no unused content was found within
	// the attempt bound. Nothing is written in that case.
	ErrContentExhausted = errors.New("no unused content found")

	// ErrSettlementInProgress is returned when another settlement run holds
	// the lock for today.
	ErrSettlementInProgress = errors.New("settlement already in progress")

	// ErrCaptionUnavailable is returned when the caption model failed.
	ErrCaptionUnavailable = errors.New("caption suggestion unavailable")
)
