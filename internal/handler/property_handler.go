package handler

import (
	"net/http"

	"github.com/SergeiKhy/offer-tracker/internal/middleware"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PropertyHandler struct {
	service service.PropertyService
	logger  *zap.Logger
}

func NewPropertyHandler(service service.PropertyService, logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{
		service: service,
		logger:  logger,
	}
}

type PropertyRequest struct {
	Name        string `json:"name" binding:"required"`
	Link        string `json:"link" binding:"required"`
	ImageLink   string `json:"imageLink"`
	PostbackURL string `json:"postbackUrl"`
}

func (r *PropertyRequest) toInput() *models.PropertyInput {
	return &models.PropertyInput{
		Name:        r.Name,
		Link:        r.Link,
		ImageLink:   r.ImageLink,
		PostbackURL: r.PostbackURL,
	}
}

// CreateProperty godoc
// @Summary Register a property
// @Tags properties
// @Accept json
// @Produce json
// @Param request body PropertyRequest true "Property form"
// @Success 201 {object} models.Property
// @Failure 400 {object} ErrorResponse
// @Router /api/properties [post]
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	property, err := h.service.CreateProperty(c.Request.Context(), middleware.OwnerID(c), req.toInput())
	if err != nil {
		writeServiceError(c, h.logger, "create property", err)
		return
	}

	c.JSON(http.StatusCreated, property)
}

// ListProperties godoc
// @Summary List own properties
// @Tags properties
// @Produce json
// @Success 200 {array} models.Property
// @Router /api/properties [get]
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	properties, err := h.service.ListProperties(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		writeServiceError(c, h.logger, "list properties", err)
		return
	}

	c.JSON(http.StatusOK, properties)
}

// GetProperty godoc
// @Summary Get own property
// @Tags properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} models.Property
// @Failure 404 {object} ErrorResponse
// @Router /api/properties/{id} [get]
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	property, err := h.service.GetProperty(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "get property", err)
		return
	}

	c.JSON(http.StatusOK, property)
}

// UpdateProperty godoc
// @Summary Replace own property
// @Tags properties
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param request body PropertyRequest true "Property form"
// @Success 200 {object} models.Property
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/properties/{id} [put]
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	property, err := h.service.UpdateProperty(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.toInput())
	if err != nil {
		writeServiceError(c, h.logger, "update property", err)
		return
	}

	c.JSON(http.StatusOK, property)
}

// DeleteProperty godoc
// @Summary Delete own property
// @Tags properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/properties/{id} [delete]
func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	if err := h.service.DeleteProperty(c.Request.Context(), middleware.OwnerID(c), c.Param("id")); err != nil {
		writeServiceError(c, h.logger, "delete property", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Property deleted successfully"})
}
