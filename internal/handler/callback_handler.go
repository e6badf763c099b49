package handler

import (
	"errors"
	"math"
	"net/http"

	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CallbackHandler struct {
	recorder service.ConversionRecorder
	logger   *zap.Logger
}

func NewCallbackHandler(recorder service.ConversionRecorder, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{recorder: recorder, logger: logger}
}

// CallbackRequest тело колбэка рекламодателя
type CallbackRequest struct {
	PropertyID string   `json:"propertyId" binding:"required"`
	OfferID    string   `json:"offerId" binding:"required"`
	UserID     string   `json:"userId" binding:"required"`
	Level      *float64 `json:"level" binding:"required"`
}

type CallbackResponse struct {
	OK        bool `json:"ok"`
	Duplicate bool `json:"duplicate,omitempty"`
}

var errInvalidLevel = errors.New("level must be an integer")

// toInput level приходит JSON-числом, но в БД это integer
func (r *CallbackRequest) toInput() (models.CallbackInput, error) {
	level := *r.Level
	if level != math.Trunc(level) || level < math.MinInt32 || level > math.MaxInt32 {
		return models.CallbackInput{}, errInvalidLevel
	}
	return models.CallbackInput{
		PropertyID: r.PropertyID,
		OfferID:    r.OfferID,
		UserID:     r.UserID,
		Level:      int(level),
	}, nil
}

// Callback godoc
// @Summary Record a conversion callback
// @Description Idempotent per (propertyId, offerId, userId, level)
// @Tags callbacks
// @Accept json
// @Produce json
// @Param request body CallbackRequest true "Conversion callback"
// @Success 200 {object} CallbackResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/callback [post]
func (h *CallbackHandler) Callback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid callback payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid callback payload"})
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.logger.Warn("Invalid callback payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid callback payload"})
		return
	}

	result, err := h.recorder.Record(c.Request.Context(), input)
	if err != nil {
		// Рекордер уже залогировал кортеж
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Callback processing failed"})
		return
	}

	c.JSON(http.StatusOK, CallbackResponse{OK: true, Duplicate: result.Duplicate})
}
