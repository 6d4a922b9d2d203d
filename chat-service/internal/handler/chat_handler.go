package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tattoo-app/chat-service/internal/models"
	"tattoo-app/chat-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type ChatHandler struct {
	service   services.ChatService
	validator identity.Validator
}

func NewChatHandler(service services.ChatService, validator identity.Validator) *ChatHandler {
	return &ChatHandler{service: service, validator: validator}
}

func (h *ChatHandler) EnsureThread(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.EnsureThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}
	thread, err := h.service.EnsureThread(c.Request.Context(), caller, req.OtherUserID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": thread.ID.Hex()})
}

func (h *ChatHandler) ListThreads(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	threads, err := h.service.ListThreads(c.Request.Context(), caller)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, threads)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	afterID, err := queryInt(c, "after_id")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	msgs, err := h.service.ListMessages(c.Request.Context(), caller, c.Param("id"), afterID, int(limit))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}
	msg, err := h.service.SendMessage(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "created_at": msg.CreatedAt})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}
	updated, err := h.service.MarkRead(c.Request.Context(), caller, c.Param("id"), req.LastID)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok", "updated": updated})
}

// Stream serves the thread as server-sent events. Failures are reported as
// an "error" event because EventSource cannot read a JSON error body.
func (h *ChatHandler) Stream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	token := identity.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		sseError(c, "unauthorized")
		return
	}
	ctx := c.Request.Context()
	caller, err := h.validator.Validate(ctx, token)
	if err != nil {
		sseError(c, "unauthorized")
		return
	}

	lastID, err := queryInt(c, "last_id")
	if err != nil {
		sseError(c, "bad_request")
		return
	}
	messages, err := h.service.Subscribe(ctx, caller, c.Param("id"), lastID)
	if err != nil {
		sseError(c, sseErrorCode(err))
		return
	}

	log.Printf("[SSE] %s subscribed to thread %s", caller.ID, c.Param("id"))
	c.Stream(func(w io.Writer) bool {
		msg, ok := <-messages
		if !ok {
			return false
		}
		c.SSEvent("message", msg)
		return true
	})
	log.Printf("[SSE] %s left thread %s", caller.ID, c.Param("id"))
}

func sseError(c *gin.Context, code string) {
	c.SSEvent("error", code)
	c.Writer.Flush()
}

func sseErrorCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	}
	log.Printf("[SSE] Subscribe failed: %v", err)
	return "internal"
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int64, error) {
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
