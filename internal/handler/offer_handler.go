package handler

import (
	"net/http"
	"strconv"

	"github.com/SergeiKhy/offer-tracker/internal/middleware"
	"github.com/SergeiKhy/offer-tracker/internal/models"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OfferHandler struct {
	service service.OfferService
	logger  *zap.Logger
}

func NewOfferHandler(service service.OfferService, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{
		service: service,
		logger:  logger,
	}
}

// OfferRequest форма оффера. Ключи tierWiseSteps и maxPerTaskTierWise
// это номера тиров.
type OfferRequest struct {
	Title              string                    `json:"title" binding:"required"`
	Link               string                    `json:"link" binding:"required"`
	BannerImage        string                    `json:"bannerImage" binding:"required"`
	SquareImage        string                    `json:"squareImage" binding:"required"`
	RewardsValue       string                    `json:"rewardsValue" binding:"required"`
	TierWiseSteps      map[int][]models.TierStep `json:"tierWiseSteps" binding:"required"`
	MaxPerTaskTierWise map[int]float64           `json:"maxPerTaskTierWise"`
	IncludedCountries  []string                  `json:"includedCountries"`
	ExcludedCountries  []string                  `json:"excludedCountries"`
}

func (r *OfferRequest) toInput() *models.OfferInput {
	return &models.OfferInput{
		Title:              r.Title,
		Link:               r.Link,
		BannerImage:        r.BannerImage,
		SquareImage:        r.SquareImage,
		RewardsValue:       r.RewardsValue,
		TierWiseSteps:      r.TierWiseSteps,
		MaxPerTaskTierWise: r.MaxPerTaskTierWise,
		IncludedCountries:  r.IncludedCountries,
		ExcludedCountries:  r.ExcludedCountries,
	}
}

// CreateOffer godoc
// @Summary Create an offer
// @Description Create a new offer owned by the session user
// @Tags offers
// @Accept json
// @Produce json
// @Param request body OfferRequest true "Offer form"
// @Success 201 {object} models.Offer
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/offers [post]
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	offer, err := h.service.CreateOffer(c.Request.Context(), middleware.OwnerID(c), req.toInput())
	if err != nil {
		writeServiceError(c, h.logger, "create offer", err)
		return
	}

	c.JSON(http.StatusCreated, offer)
}

// ListOffers godoc
// @Summary List own offers
// @Tags offers
// @Produce json
// @Success 200 {array} models.Offer
// @Failure 401 {object} ErrorResponse
// @Router /api/offers [get]
func (h *OfferHandler) ListOffers(c *gin.Context) {
	offers, err := h.service.ListOffers(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		writeServiceError(c, h.logger, "list offers", err)
		return
	}

	c.JSON(http.StatusOK, offers)
}

// GetOffer godoc
// @Summary Get own offer
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.Offer
// @Failure 404 {object} ErrorResponse
// @Router /api/offers/{id} [get]
func (h *OfferHandler) GetOffer(c *gin.Context) {
	offer, err := h.service.GetOffer(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "get offer", err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// UpdateOffer godoc
// @Summary Replace own offer
// @Tags offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param request body OfferRequest true "Offer form"
// @Success 200 {object} models.Offer
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/offers/{id} [put]
func (h *OfferHandler) UpdateOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	offer, err := h.service.UpdateOffer(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.toInput())
	if err != nil {
		writeServiceError(c, h.logger, "update offer", err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// DeleteOffer godoc
// @Summary Delete own offer
// @Description Offers with recorded visits or conversions cannot be deleted
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/offers/{id} [delete]
func (h *OfferHandler) DeleteOffer(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.DeleteOffer(c.Request.Context(), middleware.OwnerID(c), id); err != nil {
		writeServiceError(c, h.logger, "delete offer", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Offer deleted successfully"})
}

// GetStats godoc
// @Summary Get visit statistics for an offer
// @Description Total visits and distinct known referrer uids
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.OfferStats
// @Failure 404 {object} ErrorResponse
// @Router /api/offers/{id}/stats [get]
func (h *OfferHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetDailyStats godoc
// @Summary Get daily visit statistics
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.DailyVisitStats
// @Failure 404 {object} ErrorResponse
// @Router /api/offers/{id}/stats/daily [get]
func (h *OfferHandler) GetDailyStats(c *gin.Context) {
	// Невалидное значение сервис заменит на 7
	days, _ := strconv.Atoi(c.Query("days"))

	stats, err := h.service.GetDailyStats(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), days)
	if err != nil {
		writeServiceError(c, h.logger, "get daily stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListPublicOffers godoc
// @Summary Public offer catalog
// @Tags public
// @Produce json
// @Param page query int false "Page number" default(1)
// @Success 200 {array} models.Offer
// @Router /public/offers [get]
func (h *OfferHandler) ListPublicOffers(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))

	offers, err := h.service.ListPublicOffers(c.Request.Context(), page)
	if err != nil {
		writeServiceError(c, h.logger, "list offers", err)
		return
	}

	c.JSON(http.StatusOK, offers)
}

// GetPublicOffer godoc
// @Summary Public offer details
// @Tags public
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.Offer
// @Failure 404 {object} ErrorResponse
// @Router /public/offers/{id} [get]
func (h *OfferHandler) GetPublicOffer(c *gin.Context) {
	offer, err := h.service.GetPublicOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "get offer", err)
		return
	}

	c.JSON(http.StatusOK, offer)
}
