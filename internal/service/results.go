package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cardnews/internal/model"
)

// ResultStore 运行记录, 只追加
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(db *gorm.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Append 新增一条记录
func (s *ResultStore) Append(ctx context.Context, r *model.GenerationResult) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("append generation result: %w", err)
	}
	return nil
}

// List 最近的记录, 新的在前
func (s *ResultStore) List(ctx context.Context, limit int) ([]model.GenerationResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var results []model.GenerationResult
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("list generation results: %w", err)
	}
	return results, nil
}

// Latest 最近一次记录, 没有时返回 nil
func (s *ResultStore) Latest(ctx context.Context) (*model.GenerationResult, error) {
	results, err := s.List(ctx, 1)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return &results[0], nil
}

// CountByKind 各类型的运行次数及降级次数
func (s *ResultStore) CountByKind(ctx context.Context, kind model.Frequency) (total, degradedRuns int64, err error) {
	q := s.db.WithContext(ctx).Model(&model.GenerationResult{}).Where("kind = ?", kind)
	if err = q.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = s.db.WithContext(ctx).Model(&model.GenerationResult{}).
		Where("kind = ? AND degraded = ?", kind, true).
		Count(&degradedRuns).Error
	return total, degradedRuns, err
}
