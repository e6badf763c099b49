package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeServiceError переводит ошибки сервисов CRUD в HTTP-ответ
func writeServiceError(c *gin.Context, logger *zap.Logger, action string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidTiers),
		errors.Is(err, service.ErrInvalidTargeting):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Not found or not owned by user"})
	case errors.Is(err, service.ErrInUse):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "in_use", Message: "Resource has recorded visits or conversions"})
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to " + action})
	}
}
