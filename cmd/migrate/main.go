package main

import (
	"context"
	"log"
	"time"

	"github.com/SergeiKhy/linkbox/internal/config"
	"github.com/SergeiKhy/linkbox/internal/logger"
	"github.com/SergeiKhy/linkbox/internal/repository"
	"go.uber.org/zap"
)

// Применяет встроенные миграции и завершается
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.ForEnv(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	applied, err := repository.Migrate(ctx, db)
	if err != nil {
		zapLogger.Fatal("Migration failed", zap.Strings("applied", applied), zap.Error(err))
	}

	zapLogger.Info("Migrations applied", zap.Strings("files", applied))
}
