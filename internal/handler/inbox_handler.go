package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/repository"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// InboxHandler serves the in-app notification inbox
type InboxHandler struct {
	inbox *repository.InboxRepository
	log   *logger.Logger
}

// NewInboxHandler creates a new inbox handler
func NewInboxHandler(inbox *repository.InboxRepository, log *logger.Logger) *InboxHandler {
	return &InboxHandler{
		inbox: inbox,
		log:   log,
	}
}

// List returns a user's most recent in-app notifications
func (h *InboxHandler) List(c *gin.Context) {
	userID := c.Param("userId")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	notifications, err := h.inbox.FindByUserID(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error("Failed to list inbox", "user_id", userID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": notifications,
	})
}

// MarkRead marks one notification as read
func (h *InboxHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")

	if err := h.inbox.MarkRead(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to mark notification read", "id", id, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked read",
	})
}
