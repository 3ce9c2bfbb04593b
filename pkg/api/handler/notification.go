package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gm-agent-org/gm-settings/pkg/api/dto"
	"github.com/gm-agent-org/gm-settings/pkg/notify"
)

// NotificationHandler lists and dismisses user notifications.
type NotificationHandler struct {
	center *notify.Center
}

func NewNotificationHandler(center *notify.Center) *NotificationHandler {
	return &NotificationHandler{center: center}
}

// List godoc
// @Summary      List notifications
// @Tags         notification
// @Produce      json
// @Success      200 {object} dto.NotificationListResponse
// @Router       /api/v1/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NotificationListResponse{Notifications: h.center.List()})
}

// Dismiss godoc
// @Summary      Dismiss a notification
// @Tags         notification
// @Produce      json
// @Param        id path string true "Notification ID"
// @Success      200 {object} dto.DeleteResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	if !h.center.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "notification not found"})
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// Stream godoc
// @Summary      Stream new notifications
// @Description  Server-sent events; one "notification" event per message
// @Tags         notification
// @Produce      text/event-stream
// @Success      200 {object} notify.Notification
// @Router       /api/v1/notifications/stream [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	ch := make(chan notify.Notification, 16)
	unsubscribe := h.center.Subscribe(func(n notify.Notification) {
		select {
		case ch <- n:
		default:
			// Slow client; it can still list the queue.
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n := <-ch:
			c.SSEvent("notification", n)
			return true
		}
	})
}
