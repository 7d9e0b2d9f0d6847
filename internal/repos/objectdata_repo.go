package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type ObjectDataRepo interface {
	// InsertWithDelta appends a new object_data row and computes
	// ViewCountDelta against the immediately preceding row for the same
	// avito_item_id, supporting historical view-count-delta analytics.
	InsertWithDelta(ctx context.Context, row *domain.ObjectData) error
	// EligibleForReparse lists avito_item_ids whose most recent
	// object_data row is older than minAge, for seed_reparse_tasks.
	EligibleForReparse(ctx context.Context, minAge time.Duration, limit int) ([]domain.ObjectData, error)
}

type gormObjectDataRepo struct {
	db *gorm.DB
}

func NewObjectDataRepo(db *gorm.DB) ObjectDataRepo {
	return &gormObjectDataRepo{db: db}
}

func (r *gormObjectDataRepo) InsertWithDelta(ctx context.Context, row *domain.ObjectData) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ViewCount != nil {
			var prev domain.ObjectData
			err := tx.Where("avito_item_id = ?", row.AvitoItemID).
				Order("parsed_at DESC").
				First(&prev).Error
			if err == nil && prev.ViewCount != nil {
				delta := *row.ViewCount - *prev.ViewCount
				row.ViewCountDelta = &delta
			}
		}
		if row.ParsedAt.IsZero() {
			row.ParsedAt = time.Now().UTC()
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert object_data for %s: %w", row.AvitoItemID, err)
		}
		return nil
	})
}

func (r *gormObjectDataRepo) EligibleForReparse(ctx context.Context, minAge time.Duration, limit int) ([]domain.ObjectData, error) {
	cutoff := time.Now().UTC().Add(-minAge)
	var rows []domain.ObjectData
	err := r.db.WithContext(ctx).Raw(`
		SELECT * FROM (
			SELECT DISTINCT ON (avito_item_id) *
			FROM object_data
			ORDER BY avito_item_id, parsed_at DESC
		) latest
		WHERE parsed_at < ?
		LIMIT ?`, cutoff, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find reparse-eligible object_data: %w", err)
	}
	return rows, nil
}
