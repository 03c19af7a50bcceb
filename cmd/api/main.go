package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/linkbox/internal/config"
	"github.com/SergeiKhy/linkbox/internal/handler"
	"github.com/SergeiKhy/linkbox/internal/logger"
	"github.com/SergeiKhy/linkbox/internal/objectstore"
	"github.com/SergeiKhy/linkbox/internal/repository"
	"github.com/SergeiKhy/linkbox/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	zapLogger, err := logger.ForEnv(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("Connected to PostgreSQL")

	if cfg.DB.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		applied, err := repository.Migrate(ctx, db)
		cancel()
		if err != nil {
			zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		zapLogger.Info("Migrations applied", zap.Strings("files", applied))
	}

	// Журнал экспортов в Redis опционален
	exportRepo := repository.NewNoopExportRepository()
	if cfg.Redis.Enabled() {
		redis, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		exportRepo = repository.NewExportRepository(redis)
		zapLogger.Info("Connected to Redis")
	} else {
		zapLogger.Info("Redis is not configured, export history disabled")
	}

	// Объектное хранилище для CSV-выгрузок
	uploader := objectstore.New(cfg.ObjectStore)
	if !uploader.Configured() {
		zapLogger.Warn("Object store is not configured, exports will fail")
	}

	// Инициализация сервиса
	linkService := service.NewLinkService(
		repository.NewLinkRepository(db),
		exportRepo,
		uploader,
		zapLogger,
		service.Options{ShortLinkBaseURL: cfg.App.ShortLinkBaseURL},
	)

	// Настройка роутера
	router := handler.NewRouter(linkService, zapLogger, cfg.CORS.AllowedOrigins)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
