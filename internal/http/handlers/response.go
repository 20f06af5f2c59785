// Package handlers provides the HTTP handlers of the contest API.
//
// This file holds the response helpers every handler goes through. Errors
// always use the ErrorResponse envelope with a stable code; 5xx responses are
// logged with the request logger. A settlement that is already running is
// answered with Retry-After so the scheduler backs off instead of hammering.
//
//	HTTP/1.1 412 Precondition Failed
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "precondition_failed",
//	  "message": "edit token required for this round"
//	}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/http/middleware"
)

// settlementRetryAfter is sent with settlement_in_progress, in seconds.
const settlementRetryAfter = "30"

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Safe to show to users
	Message string `json:"message" example:"round not found"`
}

// fail aborts the request with an ErrorResponse.
func fail(c *gin.Context, status int, code, msg string) {
	if code == ErrCodeSettlementInProgress {
		c.Header("Retry-After", settlementRetryAfter)
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("user_id", userID(c)).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// notModified sets the ETag header and answers 304 when If-None-Match names
// it (or is "*"). It reports whether the response was written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	for _, candidate := range strings.Split(inm, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
