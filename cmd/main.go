package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/cityvoice/internal/auth"
	"github.com/shenikar/cityvoice/internal/config"
	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
	"github.com/shenikar/cityvoice/internal/repository"
	"github.com/shenikar/cityvoice/internal/service"
	"github.com/shenikar/cityvoice/internal/stream"
	"github.com/shenikar/cityvoice/pkg/logger"

	_ "github.com/shenikar/cityvoice/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title CityVoice API
// @version 1.0
// @description Civic issue reporting backend: citizens report and upvote issues, moderators track their status.
// @host localhost:3001
// @BasePath /api
// @securityDefinitions.apikey TokenAuth
// @in header
// @name x-auth-token
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище выбирается один раз при старте
	st := openStores(ctx, cfg, log)
	defer st.close()
	log.WithField("store", st.name).Info("Issue store selected")

	// Redis необязателен: кеш, очередь вебхуков и общий rate limit
	redisClient := openRedis(ctx, cfg, log)
	var issueCache service.IssueCache = repository.NoopIssueCache{}
	if redisClient != nil {
		defer redisClient.Close()
		issueCache = repository.NewRedisIssueCache(redisClient)
	}
	publishers := newEventPublishers(ctx, cfg, redisClient, log)

	// Подписчики websocket получают те же события
	hub := stream.NewHub(log, cfg.CORSOrigins)
	defer hub.Close()
	publishers = append(publishers, hub)

	uploader, uploadDir, closeUploader, err := newUploader(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}
	defer closeUploader()

	// Инициализация сервисов
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	issueService := service.NewIssueService(st.issues, issueCache, publishers, log)
	authService := service.NewAuthService(st.users, tokens, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(issueService, authService, log, cfg, v1.Options{
		Uploader: uploader,
		Limiter:  newLimiter(ctx, cfg, redisClient),
		Stream:   hub,
		Store:    st.name,
	})

	// Настройка Gin роутера
	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if uploadDir != "" {
		router.Static("/uploads", uploadDir)
	}
	api := router.Group("/api")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	// Останавливаем воркер и очистку лимитов до закрытия соединений
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	log.Info("Server gracefully stopped")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "x-auth-token", "If-Match")
	cfg.ExposeHeaders = []string{"ETag", "Retry-After"}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
