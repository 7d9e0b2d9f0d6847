package repos

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

// ReparseFilterRepo answers membership questions for seed_reparse_tasks:
// which articulums/items are eligible for reparse at all. Empty filter
// tables mean "no restriction" — everything is eligible.
type ReparseFilterRepo interface {
	ArticulumAllowed(ctx context.Context, articulumID string) (bool, error)
	ItemAllowed(ctx context.Context, avitoItemID string) (bool, error)
}

type gormReparseFilterRepo struct {
	db *gorm.DB
}

func NewReparseFilterRepo(db *gorm.DB) ReparseFilterRepo {
	return &gormReparseFilterRepo{db: db}
}

func (r *gormReparseFilterRepo) ArticulumAllowed(ctx context.Context, articulumID string) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.ReparseFilterArticulum{}).Count(&total).Error; err != nil {
		return false, fmt.Errorf("count reparse filter articulums: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ReparseFilterArticulum{}).
		Where("articulum_id = ?", articulumID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check reparse filter articulum %s: %w", articulumID, err)
	}
	return count > 0, nil
}

func (r *gormReparseFilterRepo) ItemAllowed(ctx context.Context, avitoItemID string) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.ReparseFilterItem{}).Count(&total).Error; err != nil {
		return false, fmt.Errorf("count reparse filter items: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.ReparseFilterItem{}).
		Where("avito_item_id = ?", avitoItemID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check reparse filter item %s: %w", avitoItemID, err)
	}
	return count > 0, nil
}
