package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/dlq"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// DLQHandler handles dead letter queue operations
type DLQHandler struct {
	dlq *dlq.DeadLetterQueue
	log *logger.Logger
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(deadLetters *dlq.DeadLetterQueue, log *logger.Logger) *DLQHandler {
	return &DLQHandler{
		dlq: deadLetters,
		log: log,
	}
}

// List retrieves parked reminders
func (h *DLQHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	failed, total, err := h.dlq.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.log.Error("Failed to list dead letters", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      failed,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Retry re-runs one parked reminder
func (h *DLQHandler) Retry(c *gin.Context) {
	id := c.Param("id")

	if err := h.dlq.Retry(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to retry dead letter", "id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminder retried",
	})
}

// Discard removes one parked reminder without retrying
func (h *DLQHandler) Discard(c *gin.Context) {
	id := c.Param("id")

	if err := h.dlq.Discard(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to discard dead letter", "id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminder discarded",
	})
}
