package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/domain"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
	"github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/logger"
)

// ReceiptRecorder applies provider receipts to the audit log
type ReceiptRecorder interface {
	RecordReceipt(ctx context.Context, trackingToken, status, reason string) error
}

// ReceiptHandler ingests delivery receipts posted back by providers.
// Receipts arrive out of band, possibly long after the send, and match
// log entries by the tracking token returned at send time.
type ReceiptHandler struct {
	logs ReceiptRecorder
	log  *logger.Logger
}

// NewReceiptHandler creates a receipt handler
func NewReceiptHandler(logs ReceiptRecorder, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		logs: logs,
		log:  log,
	}
}

// Receive applies one delivery receipt
func (h *ReceiptHandler) Receive(c *gin.Context) {
	var receipt domain.DeliveryReceipt
	if err := c.ShouldBindJSON(&receipt); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid receipt", err))
		return
	}

	if err := h.logs.RecordReceipt(c.Request.Context(), receipt.TrackingToken, receipt.Status, receipt.Reason); err != nil {
		h.log.Error("Failed to record delivery receipt",
			"tracking_token", receipt.TrackingToken,
			"error", err)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to record receipt", err))
		return
	}

	h.log.Debug("Delivery receipt recorded",
		"tracking_token", receipt.TrackingToken,
		"status", receipt.Status)

	c.JSON(http.StatusOK, gin.H{
		"message": "Receipt recorded",
	})
}
