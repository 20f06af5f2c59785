// Vote HTTP handlers.
//
//   - POST   /votes                  (toggle)
//   - PUT    /submissions/{id}/vote  (set, idempotent)
//   - DELETE /submissions/{id}/vote  (unset, idempotent)
//
// A toggle retried after a lost response would flip the vote back. Clients
// that send an Idempotency-Key get the first result replayed instead, with
// `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/http/middleware"
	"github.com/tbourn/meme-daily-backend/internal/services"
)

// VoteRequest is the toggle payload.
type VoteRequest struct {
	SubmissionID string `json:"submission_id" binding:"required" example:"0f6c1c4e-3a8e-4a33-9d2c-2b7d8d1c9e10"`
	// VoterID defaults to the caller identity when empty.
	VoterID string `json:"voter_id" example:"user123"`
}

type voteFunc func(ctx context.Context, submissionID, voterID string) (*services.VoteResult, error)

// ToggleVote godoc
// @ID          toggleVote
// @Summary     Toggle a vote
// @Description Adds the vote if absent, removes it if present. Send an Idempotency-Key to make retries safe.
// @Tags        Votes
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  string  false  "User ID"  example(user123)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.VoteRequest  true  "Vote payload"
// @Success     200  {object}  services.VoteResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Submission not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Round closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /votes [post]
func (h *Handlers) ToggleVote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SubmissionID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "submission_id required")
		return
	}
	voter := strings.TrimSpace(req.VoterID)
	if voter == "" {
		voter = userID(c)
	}
	h.vote(c, strings.TrimSpace(req.SubmissionID), voter, h.voteSvc.Toggle)
}

// SetVote godoc
// @ID          setVote
// @Summary     Vote for a submission
// @Description Idempotent: repeating it leaves a single vote.
// @Tags        Votes
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       id         path    string  true   "Submission ID"
// @Success     200  {object}  services.VoteResult
// @Failure     404  {object}  handlers.ErrorResponse  "Submission not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Round closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /submissions/{id}/vote [put]
func (h *Handlers) SetVote(c *gin.Context) {
	h.vote(c, c.Param("id"), userID(c), h.voteSvc.Set)
}

// UnsetVote godoc
// @ID          unsetVote
// @Summary     Remove a vote
// @Description Idempotent: removing an absent vote is a no-op.
// @Tags        Votes
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       id         path    string  true   "Submission ID"
// @Success     200  {object}  services.VoteResult
// @Failure     404  {object}  handlers.ErrorResponse  "Submission not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Round closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /submissions/{id}/vote [delete]
func (h *Handlers) UnsetVote(c *gin.Context) {
	h.vote(c, c.Param("id"), userID(c), h.voteSvc.Unset)
}

func (h *Handlers) vote(c *gin.Context, submissionID, voterID string, fn voteFunc) {
	ctx := c.Request.Context()
	caller := userID(c)
	key := idempotencyKey(c)
	scope := middleware.IdempotencyScope(c)

	if key != "" && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, caller, scope, key); err == nil && rec != nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Response))
			return
		}
	}

	res, err := fn(ctx, submissionID, voterID)
	if err != nil {
		writeError(c, err, ErrCodeVoteFailed)
		return
	}

	// Store path is best effort; the vote itself already committed.
	if key != "" && h.idem != nil {
		body, _ := json.Marshal(res)
		if err := h.idem.Save(ctx, caller, scope, key, http.StatusOK, body); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency save failed")
		}
	}
	ok(c, http.StatusOK, res)
}

// idempotencyKey prefers the key validated by middleware and falls back to
// the raw header when no middleware ran.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
