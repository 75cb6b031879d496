package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/BOUFARRA-OUSSAMA/admin-backend-sub002/internal/shared/errors"
)

// respondError maps an application error to its HTTP status and body
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(statusFor(appErr.Code), appErr)
		return
	}
	c.JSON(http.StatusInternalServerError, apperrors.NewInternalError("Internal error", err))
}

func statusFor(code string) int {
	switch code {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "INELIGIBLE":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
