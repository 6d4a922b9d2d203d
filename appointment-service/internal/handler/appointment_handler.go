package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/appointment-service/internal/services"
	"tattoo-app/pkg/apperr"
	"tattoo-app/pkg/identity"
)

type AppointmentHandler struct {
	service services.AppointmentService
}

func NewAppointmentHandler(service services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.New(apperr.ErrInvalidInput, "invalid request body"))
		return
	}

	appt, err := h.service.Book(c.Request.Context(), caller, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"appointment_id": appt.ID.Hex(),
		"start_time":     appt.StartTime,
		"end_time":       appt.EndTime,
		"status":         appt.Status,
		"paid":           appt.Paid,
		"pay_now":        appt.PayNow,
	})
}

func (h *AppointmentHandler) ListMine(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	appts, err := h.service.ListMine(c.Request.Context(), caller)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *AppointmentHandler) Pay(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	appt, err := h.service.MarkPaid(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "paid": appt.Paid})
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	caller, _ := identity.CallerFrom(c)
	appt, err := h.service.Cancel(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": appt.Status})
}

// PaymentWebhook is a stub until a payment provider is wired in.
func (h *AppointmentHandler) PaymentWebhook(c *gin.Context) {
	body, _ := c.GetRawData()
	log.Printf("[PAYMENTS] Webhook received (%d bytes)", len(body))
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
