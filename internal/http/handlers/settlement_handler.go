// Settlement HTTP handlers.
//
//   - GET /settlement/run    (daily trigger, called by an external scheduler)
//   - GET /settlement/runs   (recent audit rows)
//
// The trigger is a GET because the scheduler only issues GETs. It is safe to
// call repeatedly: after the first success of the day it answers
// already_settled without side effects.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/meme-daily-backend/internal/domain"
	"github.com/tbourn/meme-daily-backend/internal/http/middleware"
	"github.com/tbourn/meme-daily-backend/internal/services"
	"github.com/tbourn/meme-daily-backend/internal/utils"
)

// SettlementResponse is the success envelope of the settlement trigger.
type SettlementResponse struct {
	Success bool                       `json:"success" example:"true"`
	Result  *services.SettlementResult `json:"result"`
}

// ListSettlementRunsResponse lists audit rows, newest first.
type ListSettlementRunsResponse struct {
	Runs []domain.SettlementRun `json:"runs"`
}

// RunSettlement godoc
// @ID          runSettlement
// @Summary     Run the daily settlement
// @Description Archives the active round(s), pays authors and opens today's round.
// @Description Repeated calls on the same day return status "already_settled".
// @Tags        Settlement
// @Produce     json
// @Success     200  {object}  handlers.SettlementResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Another run holds the lock"
// @Failure     502  {object}  handlers.ErrorResponse  "No unused content found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settlement/run [get]
func (h *Handlers) RunSettlement(c *gin.Context) {
	res, err := h.settleSvc.Run(c.Request.Context())
	if err != nil {
		writeError(c, err, ErrCodeSettlementFailed)
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("status", res.Status).
		Str("date", res.Date).
		Int("archived", len(res.Archived)).
		Msg("settlement finished")
	ok(c, http.StatusOK, SettlementResponse{Success: true, Result: res})
}

// ListSettlementRuns godoc
// @ID          listSettlementRuns
// @Summary     List settlement runs
// @Tags        Settlement
// @Produce     json
// @Param       limit  query  int  false  "Max rows"  minimum(1) maximum(100) default(30)
// @Success     200  {object}  handlers.ListSettlementRunsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /settlement/runs [get]
func (h *Handlers) ListSettlementRuns(c *gin.Context) {
	runs, err := h.settleSvc.ListRuns(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 30))
	if err != nil {
		writeError(c, err, ErrCodeListFailed)
		return
	}
	if runs == nil {
		runs = []domain.SettlementRun{}
	}
	ok(c, http.StatusOK, ListSettlementRunsResponse{Runs: runs})
}
