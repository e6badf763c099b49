package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/offer-tracker/internal/auth"
	"github.com/SergeiKhy/offer-tracker/internal/config"
	"github.com/SergeiKhy/offer-tracker/internal/handler"
	"github.com/SergeiKhy/offer-tracker/internal/idgen"
	"github.com/SergeiKhy/offer-tracker/internal/middleware"
	"github.com/SergeiKhy/offer-tracker/internal/repository"
	"github.com/SergeiKhy/offer-tracker/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	if cfg.DB.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Schema applied")
	}

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	sessions, err := auth.NewSessions(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		logger.Fatal("Failed to init sessions", zap.Error(err))
	}

	// Инициализация репозиториев
	offerRepo := repository.NewOfferRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	conversionRepo := repository.NewConversionRepository(db)
	offerCache := repository.NewOfferCache(redis)

	minter := idgen.NewUUIDMinter()

	// Постбэки площадкам (Worker Pool)
	dispatcher := service.NewPostbackDispatcher(propertyRepo, service.NewHTTPPostbackSender(), cfg.Postback.Timeout, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Инициализация сервисов
	services := handler.Services{
		Clicks:     service.NewClickRouter(offerRepo, offerCache, visitRepo, minter, cfg.Redis.OfferTTL, logger),
		Callbacks:  service.NewConversionRecorder(conversionRepo, minter, dispatcher, logger),
		Offers:     service.NewOfferService(offerRepo, visitRepo, offerCache, minter, logger),
		Properties: service.NewPropertyService(propertyRepo, minter),
		Dashboard:  service.NewDashboardService(conversionRepo, visitRepo),
	}

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	// Настройка роутера
	router := handler.NewRouter(services, handler.RouterConfig{
		NotFoundURL: cfg.App.NotFoundURL,
		Sessions:    sessions,
		RateLimiter: rateLimiter,
		Health: map[string]handler.Pinger{
			"postgres": db,
			"redis":    redis,
		},
		Postbacks: dispatcher,
	}, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
