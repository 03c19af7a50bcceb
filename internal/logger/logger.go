package logger

import (
	"go.uber.org/zap"
)

// New создаёт production-логгер с заданным текстовым уровнем (debug, info, warn, error)
func New(level string) (*zap.Logger, error) {
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	return cfg.Build()
}

// NewDevelopment создаёт логгер с человекочитаемым выводом для локальной разработки
func NewDevelopment(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl

	return cfg.Build()
}

// ForEnv выбирает конфигурацию логгера по окружению приложения
func ForEnv(env, level string) (*zap.Logger, error) {
	if env == "development" || env == "local" {
		return NewDevelopment(level)
	}
	return New(level)
}
