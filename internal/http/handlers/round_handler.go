// Round and submission HTTP handlers.
//
//   - GET  /rounds/current               (active round)
//   - GET  /rounds/archive               (settled rounds, paginated)
//   - GET  /rounds/{id}                  (one round)
//   - GET  /rounds/{id}/submissions      (captions, paginated, ETag support)
//   - POST /rounds/current/submissions   (add a caption)
//   - POST /rounds/current/suggestions   (AI caption)
//   - PUT  /submissions/{id}             (edit with an edit token)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/domain"
)

// CaptionRequest carries caption text for create and edit.
type CaptionRequest struct {
	Text string `json:"text" binding:"required,min=1" example:"me explaining the deploy to my manager"`
}

// ListRoundsResponse wraps a page of archived rounds.
type ListRoundsResponse struct {
	Rounds     []domain.Round `json:"rounds"`
	Pagination Pagination     `json:"pagination"`
}

// ListSubmissionsResponse wraps a page of a round's captions.
type ListSubmissionsResponse struct {
	Submissions []domain.Submission `json:"submissions"`
	Pagination  Pagination          `json:"pagination"`
}

// GetCurrentRound godoc
// @ID          getCurrentRound
// @Summary     Get the active round
// @Tags        Rounds
// @Produce     json
// @Success     200  {object}  domain.Round
// @Failure     404  {object}  handlers.ErrorResponse  "No active round"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/current [get]
func (h *Handlers) GetCurrentRound(c *gin.Context) {
	r, err := h.roundSvc.Current(c.Request.Context())
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// GetRound godoc
// @ID          getRound
// @Summary     Get a round
// @Tags        Rounds
// @Produce     json
// @Param       id  path  string  true  "Round ID"
// @Success     200  {object}  domain.Round
// @Failure     404  {object}  handlers.ErrorResponse  "Round not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/{id} [get]
func (h *Handlers) GetRound(c *gin.Context) {
	r, err := h.roundSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, r)
}

// ListArchivedRounds godoc
// @ID          listArchivedRounds
// @Summary     List settled rounds
// @Description Hall of fame, newest first.
// @Tags        Rounds
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListRoundsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/archive [get]
func (h *Handlers) ListArchivedRounds(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.roundSvc.ListArchived(c.Request.Context(), page, pageSize)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListRoundsResponse{Rounds: items, Pagination: newPagination(page, pageSize, total)})
}

// ListSubmissions godoc
// @ID          listSubmissions
// @Summary     List a round's captions
// @Description Ranked by votes. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Submissions
// @Produce     json
// @Param       id             path    string  true   "Round ID"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListSubmissionsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Round not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/{id}/submissions [get]
func (h *Handlers) ListSubmissions(c *gin.Context) {
	ctx := c.Request.Context()
	roundID := c.Param("id")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). Vote totals are part of the tag because
	// a vote changes the ranking without touching the caption rows' text.
	if count, votes, maxTS, err := h.subSvc.Stats(ctx, roundID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"subs:%s:%d:%d:%d:%d:%d"`, roundID, count, votes, ts, page, pageSize)
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.subSvc.ListPage(ctx, roundID, page, pageSize)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListSubmissionsResponse{Submissions: items, Pagination: newPagination(page, pageSize, total)})
}

// CreateSubmission godoc
// @ID          createSubmission
// @Summary     Submit a caption
// @Description Adds the caller's caption to the active round. Markup is stripped.
// @Tags        Submissions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       body       body    handlers.CaptionRequest  true  "Caption"
// @Success     201  {object}  domain.Submission
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No active round"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/current/submissions [post]
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	sub, err := h.subSvc.Create(c.Request.Context(), userID(c), req.Text)
	if err != nil {
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, sub)
}

// EditSubmission godoc
// @ID          editSubmission
// @Summary     Edit a caption
// @Description Consumes the caller's edit token for the round.
// @Tags        Submissions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       id         path    string  true   "Submission ID"
// @Param       body       body    handlers.CaptionRequest  true  "New caption"
// @Success     200  {object}  domain.Submission
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the author"
// @Failure     404  {object}  handlers.ErrorResponse  "Submission not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Round closed or caption already edited"
// @Failure     412  {object}  handlers.ErrorResponse  "Edit token required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /submissions/{id} [put]
func (h *Handlers) EditSubmission(c *gin.Context) {
	var req CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	sub, err := h.subSvc.Edit(c.Request.Context(), userID(c), c.Param("id"), req.Text)
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, sub)
}

// SuggestCaption godoc
// @ID          suggestCaption
// @Summary     Suggest a caption
// @Description Asks the caption model for a caption for the active round.
// @Tags        Submissions
// @Produce     json
// @Success     200  {object}  services.Suggestion
// @Failure     404  {object}  handlers.ErrorResponse  "No active round"
// @Failure     502  {object}  handlers.ErrorResponse  "Caption model unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rounds/current/suggestions [post]
func (h *Handlers) SuggestCaption(c *gin.Context) {
	s, err := h.capSvc.Suggest(c.Request.Context(), "")
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}
