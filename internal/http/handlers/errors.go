// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and mirror HTTP status semantics where one
// exists. Clients branch on the code, never on the message. Handlers pick a
// code through writeError, which maps service sentinels to a status and code.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "settlement_in_progress",
//	  "message": "settlement already in progress"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/services"
)

const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeRateLimited        = "too_many_requests"
	ErrCodeInternal           = "internal_error"
	ErrCodeBadGateway         = "bad_gateway"
	ErrCodeMethodNotAllowed   = "method_not_allowed"

	// Domain-specific:
	ErrCodeSettlementInProgress = "settlement_in_progress"
	ErrCodeSettlementFailed     = "settlement_failed"
	ErrCodeVoteFailed           = "vote_failed"
	ErrCodeCreateFailed         = "create_failed"
	ErrCodeListFailed           = "list_failed"
)

// errorStatus maps a service error to an HTTP status and code. ok is false
// for errors the service layer does not name.
func errorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, services.ErrRoundNotFound),
		errors.Is(err, services.ErrNoActiveRound),
		errors.Is(err, services.ErrSubmissionNotFound),
		errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrSubscriptionNotFound):
		return http.StatusNotFound, ErrCodeNotFound, true

	case errors.Is(err, services.ErrMissingUser),
		errors.Is(err, services.ErrEmptyCaption),
		errors.Is(err, services.ErrTooLong),
		errors.Is(err, services.ErrInvalidPeriod),
		errors.Is(err, services.ErrInvalidSubscription):
		return http.StatusBadRequest, ErrCodeBadRequest, true

	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden, true

	case errors.Is(err, services.ErrNoEditToken),
		errors.Is(err, services.ErrInsufficientCredits):
		return http.StatusPreconditionFailed, ErrCodePreconditionFailed, true

	case errors.Is(err, services.ErrRoundClosed),
		errors.Is(err, services.ErrAlreadyEdited),
		errors.Is(err, services.ErrAlreadyEntitled),
		errors.Is(err, services.ErrAlreadySpun),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict, ErrCodeConflict, true

	case errors.Is(err, services.ErrSettlementInProgress):
		return http.StatusConflict, ErrCodeSettlementInProgress, true

	case errors.Is(err, services.ErrContentExhausted),
		errors.Is(err, services.ErrCaptionUnavailable):
		return http.StatusBadGateway, ErrCodeBadGateway, true
	}
	return http.StatusInternalServerError, ErrCodeInternal, false
}

// writeError responds with the mapped status for known service errors and
// with 500 plus fallbackCode otherwise.
func writeError(c *gin.Context, err error, fallbackCode string) {
	status, code, known := errorStatus(err)
	if !known {
		code = fallbackCode
	}
	fail(c, status, code, err.Error())
}
