package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SergeiKhy/linkbox/internal/models"
)

const (
	exportsKey = "exports:recent"
	// MaxExportHistory сколько последних выгрузок хранится в журнале
	MaxExportHistory = 50
)

// ExportRepository журнал успешных выгрузок CSV
type ExportRepository interface {
	Record(ctx context.Context, export *models.Export) error
	Recent(ctx context.Context, limit int) ([]models.Export, error)
}

type exportRepository struct {
	redis *RedisDB
}

func NewExportRepository(redis *RedisDB) ExportRepository {
	return &exportRepository{redis: redis}
}

// Record добавляет выгрузку в начало списка и обрезает его до MaxExportHistory
func (r *exportRepository) Record(ctx context.Context, export *models.Export) error {
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	pipe := r.redis.Client.TxPipeline()
	pipe.LPush(ctx, exportsKey, data)
	pipe.LTrim(ctx, exportsKey, 0, MaxExportHistory-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}

func (r *exportRepository) Recent(ctx context.Context, limit int) ([]models.Export, error) {
	if limit <= 0 || limit > MaxExportHistory {
		limit = MaxExportHistory
	}

	items, err := r.redis.Client.LRange(ctx, exportsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read exports: %w", err)
	}

	exports := make([]models.Export, 0, len(items))
	for _, item := range items {
		var export models.Export
		if err := json.Unmarshal([]byte(item), &export); err != nil {
			return nil, fmt.Errorf("failed to unmarshal export: %w", err)
		}
		exports = append(exports, export)
	}

	return exports, nil
}

// noopExportRepository используется, когда Redis не настроен
type noopExportRepository struct{}

func NewNoopExportRepository() ExportRepository {
	return noopExportRepository{}
}

func (noopExportRepository) Record(context.Context, *models.Export) error {
	return nil
}

func (noopExportRepository) Recent(context.Context, int) ([]models.Export, error) {
	return []models.Export{}, nil
}
