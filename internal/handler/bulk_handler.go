package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/service"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// BulkHandler handles bulk reminder operations
type BulkHandler struct {
	bulk *service.BulkService
	log  *logger.Logger
}

// NewBulkHandler creates a new bulk handler
func NewBulkHandler(bulk *service.BulkService, log *logger.Logger) *BulkHandler {
	return &BulkHandler{
		bulk: bulk,
		log:  log,
	}
}

// Execute runs one bulk operation over a batch of appointments
func (h *BulkHandler) Execute(c *gin.Context) {
	var req domain.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	results, err := h.bulk.Execute(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Bulk operation rejected", "operation", req.Operation, "error", err)
		respondError(c, err)
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"operation": req.Operation,
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}
