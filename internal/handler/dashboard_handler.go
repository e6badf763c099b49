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

type DashboardHandler struct {
	service service.DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(service service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger,
	}
}

// ListCallbacks godoc
// @Summary List recorded conversions
// @Description Conversions on the owner's properties, newest first
// @Tags dashboard
// @Produce json
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Offset" default(0)
// @Param property query string false "Property name substring"
// @Param offer query string false "Offer title substring"
// @Success 200 {object} models.ConversionPage
// @Router /api/dashboard/callbacks [get]
func (h *DashboardHandler) ListCallbacks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.service.ListConversions(c.Request.Context(), models.ConversionFilter{
		OwnerID:        middleware.OwnerID(c),
		Limit:          limit,
		Offset:         offset,
		PropertyFilter: c.Query("property"),
		OfferFilter:    c.Query("offer"),
	})
	if err != nil {
		writeServiceError(c, h.logger, "list callbacks", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// CallbackStats godoc
// @Summary Conversion counters
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.ConversionStats
// @Router /api/dashboard/callbacks/stats [get]
func (h *DashboardHandler) CallbackStats(c *gin.Context) {
	stats, err := h.service.ConversionStats(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		writeServiceError(c, h.logger, "get callback stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListVisits godoc
// @Summary List visits on own offers
// @Tags dashboard
// @Produce json
// @Param limit query int false "Page size" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.VisitWithOffer
// @Router /api/dashboard/visitors [get]
func (h *DashboardHandler) ListVisits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	visits, err := h.service.ListVisits(c.Request.Context(), middleware.OwnerID(c), limit, offset)
	if err != nil {
		writeServiceError(c, h.logger, "list visits", err)
		return
	}

	c.JSON(http.StatusOK, visits)
}
