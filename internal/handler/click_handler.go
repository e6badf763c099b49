package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ClickHandler struct {
	router      service.ClickRouter
	notFoundURL string
	logger      *zap.Logger
}

func NewClickHandler(router service.ClickRouter, notFoundURL string, logger *zap.Logger) *ClickHandler {
	if notFoundURL == "" {
		notFoundURL = "/404"
	}
	return &ClickHandler{
		router:      router,
		notFoundURL: notFoundURL,
		logger:      logger,
	}
}

// Redirect godoc
// @Summary Track a click and redirect to the offer destination
// @Description Records a visit for the offer and redirects the visitor
// @Tags clicks
// @Param offerId path string true "Offer ID"
// @Param referrer query string false "Referrer token uid-pid"
// @Success 307 {object} nil
// @Failure 500 {object} ErrorResponse
// @Router /r/{offerId} [get]
func (h *ClickHandler) Redirect(c *gin.Context) {
	offerID := c.Param("offerId")

	visit, destination, err := h.router.Resolve(c.Request.Context(), offerID, c.Query("referrer"))
	if err != nil {
		if errors.Is(err, service.ErrOfferNotFound) {
			h.logger.Debug("Offer not found", zap.String("offer_id", offerID))
			c.Redirect(http.StatusTemporaryRedirect, h.notFoundURL)
			return
		}

		h.logger.Error("Failed to record visit", zap.String("offer_id", offerID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Click processing failed"})
		return
	}

	h.logger.Debug("Visit recorded",
		zap.String("click_id", visit.ClickID),
		zap.String("offer_id", visit.OfferID),
	)
	c.Redirect(http.StatusTemporaryRedirect, destination)
}

// NotFound страница для неизвестных офферов
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Offer not found"})
}
