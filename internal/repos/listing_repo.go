package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type ListingRepo interface {
	// UpsertListing inserts by avito_item_id, doing nothing on conflict —
	// "insertions are idempotent on avito_item_id".
	UpsertListing(ctx context.Context, listing *domain.CatalogListing) error
	ListByArticulum(ctx context.Context, articulumID uuid.UUID) ([]domain.CatalogListing, error)
}

type gormListingRepo struct {
	db *gorm.DB
}

func NewListingRepo(db *gorm.DB) ListingRepo {
	return &gormListingRepo{db: db}
}

func (r *gormListingRepo) UpsertListing(ctx context.Context, listing *domain.CatalogListing) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "avito_item_id"}},
			DoNothing: true,
		}).
		Create(listing).Error
	if err != nil {
		return fmt.Errorf("upsert catalog listing %s: %w", listing.AvitoItemID, err)
	}
	return nil
}

func (r *gormListingRepo) ListByArticulum(ctx context.Context, articulumID uuid.UUID) ([]domain.CatalogListing, error) {
	var rows []domain.CatalogListing
	if err := r.db.WithContext(ctx).Where("articulum_id = ?", articulumID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list catalog listings for articulum %s: %w", articulumID, err)
	}
	return rows, nil
}
