package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/service"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// SettingsHandler handles reminder settings requests
type SettingsHandler struct {
	settings *service.SettingsService
	log      *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *service.SettingsService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		log:      log,
	}
}

// Get returns the owner's settings, creating defaults on first read
func (h *SettingsHandler) Get(c *gin.Context) {
	ownerID, ownerType, ok := ownerFromPath(c)
	if !ok {
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), ownerID, ownerType)
	if err != nil {
		h.log.Error("Failed to get settings", "owner_id", ownerID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": settings,
	})
}

// Update applies a partial settings change
func (h *SettingsHandler) Update(c *gin.Context) {
	ownerID, ownerType, ok := ownerFromPath(c)
	if !ok {
		return
	}

	var req domain.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), ownerID, ownerType, &req)
	if err != nil {
		h.log.Error("Failed to update settings", "owner_id", ownerID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Settings updated",
		"data":    settings,
	})
}

func ownerFromPath(c *gin.Context) (string, domain.OwnerType, bool) {
	ownerID := c.Param("ownerId")
	ownerType := domain.OwnerType(c.Param("ownerType"))
	if ownerType != domain.OwnerPatient && ownerType != domain.OwnerDoctor {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("owner type must be patient or doctor", nil))
		return "", "", false
	}
	return ownerID, ownerType, true
}
