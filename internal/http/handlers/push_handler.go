// Push subscription HTTP handlers.
//
//   - POST   /push/subscriptions  (register the browser's PushSubscription)
//   - DELETE /push/subscriptions  (remove it)
//
// The request body is the JSON the browser produces from
// PushSubscription.toJSON().
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PushSubscriptionRequest mirrors the browser's PushSubscription JSON.
type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required" example:"https://fcm.googleapis.com/fcm/send/abc"`
	Keys     struct {
		P256dh string `json:"p256dh" example:"BOr..."`
		Auth   string `json:"auth" example:"k8J..."`
	} `json:"keys"`
}

// PushUnsubscribeRequest names the endpoint to remove.
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" example:"https://fcm.googleapis.com/fcm/send/abc"`
}

// Subscribe godoc
// @ID          subscribePush
// @Summary     Register a push endpoint
// @Tags        Push
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       body       body    handlers.PushSubscriptionRequest  true  "PushSubscription JSON"
// @Success     201  {object}  domain.PushSubscription
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /push/subscriptions [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	var req PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint and keys required")
		return
	}
	sub, err := h.pushSvc.Subscribe(c.Request.Context(), userID(c), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		writeError(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, sub)
}

// Unsubscribe godoc
// @ID          unsubscribePush
// @Summary     Remove a push endpoint
// @Tags        Push
// @Accept      json
// @Param       X-User-ID  header  string  false  "User ID"  example(user123)
// @Param       endpoint   query   string  false  "Endpoint (alternative to the body)"
// @Param       body       body    handlers.PushUnsubscribeRequest  false  "Endpoint"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Subscription not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /push/subscriptions [delete]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	endpoint := strings.TrimSpace(c.Query("endpoint"))
	if endpoint == "" {
		var req PushUnsubscribeRequest
		_ = c.ShouldBindJSON(&req)
		endpoint = strings.TrimSpace(req.Endpoint)
	}
	if endpoint == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "endpoint required")
		return
	}
	if err := h.pushSvc.Unsubscribe(c.Request.Context(), userID(c), endpoint); err != nil {
		writeError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
