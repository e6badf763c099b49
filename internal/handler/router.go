package handler

import (
	"github.com/SergeiKhy/offer-tracker/internal/middleware"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services набор сервисов, которые обслуживает роутер
type Services struct {
	Clicks     service.ClickRouter
	Callbacks  service.ConversionRecorder
	Offers     service.OfferService
	Properties service.PropertyService
	Dashboard  service.DashboardService
}

// RouterConfig параметры роутера, не являющиеся сервисами
type RouterConfig struct {
	NotFoundURL string
	Sessions    middleware.SessionVerifier
	RateLimiter *middleware.RateLimiter
	Health      map[string]Pinger
	Postbacks   PostbackStats
}

func NewRouter(services Services, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
		)
	})

	clickHandler := NewClickHandler(services.Clicks, cfg.NotFoundURL, logger)
	callbackHandler := NewCallbackHandler(services.Callbacks, logger)
	offerHandler := NewOfferHandler(services.Offers, logger)
	propertyHandler := NewPropertyHandler(services.Properties, logger)
	dashboardHandler := NewDashboardHandler(services.Dashboard, logger)

	router.GET("/health", HealthCheck(cfg.Health, cfg.Postbacks))
	router.GET("/404", NotFound)

	// Клик и колбэк без сессии и без лимита по IP.
	// Колбэк отвечает только 200/400/500, 429 для него не бывает.
	router.GET("/r/:offerId", clickHandler.Redirect)
	router.POST("/api/callback", callbackHandler.Callback)

	// Rate limiting по IP для каталога и кабинета
	limited := router.Group("")
	if cfg.RateLimiter != nil {
		limited.Use(cfg.RateLimiter.Middleware())
	}

	public := limited.Group("/public")
	{
		public.GET("/offers", offerHandler.ListPublicOffers)
		public.GET("/offers/:id", offerHandler.GetPublicOffer)
	}

	api := limited.Group("/api")
	api.Use(middleware.RequireSession(cfg.Sessions))
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.MiddlewareWithKey(middleware.OwnerID))
	}
	{
		api.POST("/offers", offerHandler.CreateOffer)
		api.GET("/offers", offerHandler.ListOffers)
		api.GET("/offers/:id", offerHandler.GetOffer)
		api.PUT("/offers/:id", offerHandler.UpdateOffer)
		api.DELETE("/offers/:id", offerHandler.DeleteOffer)
		api.GET("/offers/:id/stats", offerHandler.GetStats)
		api.GET("/offers/:id/stats/daily", offerHandler.GetDailyStats)

		api.POST("/properties", propertyHandler.CreateProperty)
		api.GET("/properties", propertyHandler.ListProperties)
		api.GET("/properties/:id", propertyHandler.GetProperty)
		api.PUT("/properties/:id", propertyHandler.UpdateProperty)
		api.DELETE("/properties/:id", propertyHandler.DeleteProperty)

		api.GET("/dashboard/callbacks", dashboardHandler.ListCallbacks)
		api.GET("/dashboard/callbacks/stats", dashboardHandler.CallbackStats)
		api.GET("/dashboard/visitors", dashboardHandler.ListVisits)
	}

	return router
}
