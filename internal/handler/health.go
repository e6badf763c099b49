package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/service"
	"github.com/gin-gonic/gin"
)

// Pinger зависимость, которую проверяет health-эндпоинт
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostbackStats заполненность очереди постбэков
type PostbackStats interface {
	Stats() service.DispatcherStats
}

// HealthCheck godoc
// @Summary Health check
// @Description Checks PostgreSQL and Redis connectivity and reports postback queue usage
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func HealthCheck(deps map[string]Pinger, postbacks PostbackStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok"}
		code := http.StatusOK
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				status[name] = "down"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}

		if postbacks != nil {
			status["postbacks"] = postbacks.Stats()
		}

		c.JSON(code, status)
	}
}
