package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/service"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// ReminderHandler handles reminder scheduling requests
type ReminderHandler struct {
	reminders *service.ReminderService
	lifecycle *service.LifecycleService
	log       *logger.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(reminders *service.ReminderService, lifecycle *service.LifecycleService, log *logger.Logger) *ReminderHandler {
	return &ReminderHandler{
		reminders: reminders,
		lifecycle: lifecycle,
		log:       log,
	}
}

// Schedule plans reminders for one appointment
func (h *ReminderHandler) Schedule(c *gin.Context) {
	var req domain.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	result, err := h.reminders.Schedule(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to schedule reminders", "appointment_id", req.AppointmentID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Reminders scheduled",
		"data":    result,
	})
}

// Cancel cancels every pending reminder for one appointment
func (h *ReminderHandler) Cancel(c *gin.Context) {
	appointmentID := c.Param("appointmentId")

	var req domain.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	req.AppointmentID = appointmentID

	cancelled, err := h.reminders.Cancel(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to cancel reminders", "appointment_id", appointmentID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Reminders cancelled",
		"cancelled": cancelled,
	})
}

// Reschedule replaces the appointment's reminder plan
func (h *ReminderHandler) Reschedule(c *gin.Context) {
	appointmentID := c.Param("appointmentId")

	result, err := h.reminders.Reschedule(c.Request.Context(), appointmentID)
	if err != nil {
		h.log.Error("Failed to reschedule reminders", "appointment_id", appointmentID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminders rescheduled",
		"data":    result,
	})
}

// SendTest fires an immediate test reminder on one channel
func (h *ReminderHandler) SendTest(c *gin.Context) {
	appointmentID := c.Param("appointmentId")

	var req struct {
		Channel string `json:"channel" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("channel is required", err))
		return
	}

	if err := h.reminders.SendTest(c.Request.Context(), appointmentID, domain.ReminderChannel(req.Channel)); err != nil {
		h.log.Error("Failed to send test reminder", "appointment_id", appointmentID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Test reminder queued",
	})
}

// AppointmentEvent reacts to an appointment lifecycle notification
func (h *ReminderHandler) AppointmentEvent(c *gin.Context) {
	appointmentID := c.Param("appointmentId")

	var req domain.AppointmentEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	ctx := c.Request.Context()
	switch req.Event {
	case "created":
		result, err := h.lifecycle.HandleCreated(ctx, appointmentID)
		if err != nil {
			h.log.Error("Failed to handle created event", "appointment_id", appointmentID, "error", err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})

	case "updated":
		result, err := h.lifecycle.HandleUpdated(ctx, appointmentID, req.Previous)
		if err != nil {
			h.log.Error("Failed to handle updated event", "appointment_id", appointmentID, "error", err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})

	case "deleted":
		cancelled, err := h.lifecycle.HandleDeleted(ctx, appointmentID)
		if err != nil {
			h.log.Error("Failed to handle deleted event", "appointment_id", appointmentID, "error", err)
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
	}
}

// GetLogs lists audit entries with optional filters
func (h *ReminderHandler) GetLogs(c *gin.Context) {
	var req domain.GetLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid query", err))
		return
	}

	logs, total, err := h.reminders.GetLogs(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to get reminder logs", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      logs,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// GetAnalytics returns the daily delivery counters for one doctor
func (h *ReminderHandler) GetAnalytics(c *gin.Context) {
	doctorID := c.Param("doctorId")
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("from and to are required (YYYY-MM-DD)", nil))
		return
	}

	buckets, err := h.reminders.GetAnalytics(c.Request.Context(), doctorID, from, to)
	if err != nil {
		h.log.Error("Failed to get analytics", "doctor_id", doctorID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": buckets,
	})
}
