package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type ValidationRepo interface {
	WriteResult(ctx context.Context, row *domain.ValidationResult) error
	DeleteAllForArticulum(ctx context.Context, articulumID uuid.UUID) error
	// ItemsPassingAllStages returns the avito_item_ids that have a
	// passed=true row for every stage in enabledStages.
	ItemsPassingAllStages(ctx context.Context, articulumID uuid.UUID, enabledStages []domain.ValidationStage) ([]string, error)
}

type gormValidationRepo struct {
	db *gorm.DB
}

func NewValidationRepo(db *gorm.DB) ValidationRepo {
	return &gormValidationRepo{db: db}
}

func (r *gormValidationRepo) WriteResult(ctx context.Context, row *domain.ValidationResult) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("write validation result (%s/%s): %w", row.AvitoItemID, row.Stage, err)
	}
	return nil
}

func (r *gormValidationRepo) DeleteAllForArticulum(ctx context.Context, articulumID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("articulum_id = ?", articulumID).Delete(&domain.ValidationResult{}).Error; err != nil {
		return fmt.Errorf("delete validation results for articulum %s: %w", articulumID, err)
	}
	return nil
}

func (r *gormValidationRepo) ItemsPassingAllStages(ctx context.Context, articulumID uuid.UUID, enabledStages []domain.ValidationStage) ([]string, error) {
	if len(enabledStages) == 0 {
		var ids []string
		err := r.db.WithContext(ctx).Model(&domain.ValidationResult{}).
			Where("articulum_id = ?", articulumID).
			Distinct("avito_item_id").
			Pluck("avito_item_id", &ids).Error
		return ids, err
	}
	var ids []string
	err := r.db.WithContext(ctx).Raw(`
		SELECT avito_item_id FROM validation_results
		WHERE articulum_id = ? AND stage IN ? AND passed = true
		GROUP BY avito_item_id
		HAVING COUNT(DISTINCT stage) = ?`,
		articulumID, enabledStages, len(enabledStages),
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("items passing all stages for articulum %s: %w", articulumID, err)
	}
	return ids, nil
}
