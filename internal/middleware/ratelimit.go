package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig конфигурация rate limiter
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Количество запросов в секунду
	BurstSize         int           // Максимальный размер burst
	CleanupInterval   time.Duration // Интервал очистки неактивных клиентов
}

// DefaultRateLimiterConfig конфигурация по умолчанию
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10,
	BurstSize:         20,
	CleanupInterval:   time.Minute,
}

// client rate limiter одного ключа (IP или владельца)
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter token bucket на каждый ключ
type RateLimiter struct {
	config  RateLimiterConfig
	clients map[string]*client
	mu      sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter создаёт limiter и запускает фоновую очистку
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig.CleanupInterval
	}

	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*client),
		stop:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop останавливает горутину очистки
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup удаляет клиентов, неактивных дольше трёх интервалов
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, c := range rl.clients {
		if time.Since(c.lastSeen) > rl.config.CleanupInterval*3 {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, exists := rl.clients[key]; exists {
		c.lastSeen = time.Now()
		return c.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	rl.clients[key] = &client{
		limiter:  limiter,
		lastSeen: time.Now(),
	}

	return limiter
}

// Middleware ограничивает запросы по IP клиента
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return rl.MiddlewareWithKey(nil)
}

// MiddlewareWithKey ограничивает по произвольному ключу, пустой ключ заменяется IP
func (rl *RateLimiter) MiddlewareWithKey(getKey func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if getKey != nil {
			key = getKey(c)
		}
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.getLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests, retry later",
				"retry_after": int(rl.config.CleanupInterval / time.Second),
			})
			return
		}

		c.Next()
	}
}
