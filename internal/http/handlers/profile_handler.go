// Profile, store and leaderboard HTTP handlers.
//
//   - GET  /profile             (caller's profile, created on first call)
//   - POST /profile/rank/ack    (clear the daily placement)
//   - POST /profile/spin        (free daily spin)
//   - POST /store/edit-token    (buy an edit token for the active round)
//   - GET  /leaderboard         (monthly or lifetime top list)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/services"
)

// LeaderboardResponse wraps a top list.
type LeaderboardResponse struct {
	Period  string                      `json:"period" example:"monthly"`
	Entries []services.LeaderboardEntry `json:"entries"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get the caller's profile
// @Description Creates the profile on first access. display_name only applies on creation.
// @Tags        Profile
// @Produce     json
// @Param       X-User-ID     header  string  false  "User ID"  example(user123)
// @Param       display_name  query   string  false  "Display name for a new profile"
// @Success     200  {object}  domain.UserProfile
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profSvc.Ensure(c.Request.Context(), userID(c), c.Query("display_name"))
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// AcknowledgeRank godoc
// @ID          acknowledgeRank
// @Summary     Acknowledge the daily placement
// @Tags        Profile
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Profile not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile/rank/ack [post]
func (h *Handlers) AcknowledgeRank(c *gin.Context) {
	if err := h.profSvc.AcknowledgeRank(c.Request.Context(), userID(c)); err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// DailySpin godoc
// @ID          dailySpin
// @Summary     Spin the daily wheel
// @Description Grants a random credit reward once per calendar day.
// @Tags        Profile
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     200  {object}  services.SpinResult
// @Failure     409  {object}  handlers.ErrorResponse  "Already spun today"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profile/spin [post]
func (h *Handlers) DailySpin(c *gin.Context) {
	res, err := h.profSvc.DailySpin(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, res)
}

// BuyEditToken godoc
// @ID          buyEditToken
// @Summary     Buy an edit token
// @Description Spends credits on a single-use edit for the active round.
// @Tags        Store
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Success     200  {object}  domain.UserProfile
// @Failure     404  {object}  handlers.ErrorResponse  "No active round"
// @Failure     409  {object}  handlers.ErrorResponse  "Already owned"
// @Failure     412  {object}  handlers.ErrorResponse  "Insufficient credits"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /store/edit-token [post]
func (h *Handlers) BuyEditToken(c *gin.Context) {
	p, err := h.profSvc.BuyEditToken(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// GetLeaderboard godoc
// @ID          getLeaderboard
// @Summary     Get the leaderboard
// @Tags        Leaderboard
// @Produce     json
// @Param       period  query  string  false  "monthly or lifetime"  Enums(monthly, lifetime) default(monthly)
// @Success     200  {object}  handlers.LeaderboardResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown period"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leaderboard [get]
func (h *Handlers) GetLeaderboard(c *gin.Context) {
	period := c.DefaultQuery("period", "monthly")
	entries, err := h.boardSvc.Top(c.Request.Context(), period)
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if entries == nil {
		entries = []services.LeaderboardEntry{}
	}
	ok(c, http.StatusOK, LeaderboardResponse{Period: period, Entries: entries})
}
