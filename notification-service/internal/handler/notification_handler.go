package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tattoo-app/notification-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)

	limit, err := queryInt64(c, "limit")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	offset, err := queryInt64(c, "offset")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	notifs, err := h.service.GetNotifications(c.Request.Context(), caller, limit, offset)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, notifs)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	n, err := h.service.UnreadCount(c.Request.Context(), caller)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	if err := h.service.MarkAsRead(c.Request.Context(), caller, c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked as read"})
}

func queryInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.ErrInvalidInput, "%s must be an integer", name)
	}
	return v, nil
}
