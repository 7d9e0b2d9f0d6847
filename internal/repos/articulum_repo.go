// Package repos holds the atomic-SQL gateways for every domain table. Every
// mutation here is either a predicate-guarded conditional UPDATE or a
// SELECT ... FOR UPDATE SKIP LOCKED claim, the same
// ClaimNextRunnable / UpdateFieldsUnlessStatus idiom used in
// internal/jobs/runtime/context.go and internal/jobs/worker/worker.go.
// There is no application-level lock anywhere in this package.
package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type ArticulumRepo interface {
	Create(ctx context.Context, articulum string) (*domain.Articulum, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Articulum, error)

	// Transition performs the single conditional update that is the whole
	// of the state machine: UPDATE articulums SET state=to WHERE id=id AND
	// state=from. Returns ErrTransitionLost if the predicate didn't match.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.ArticulumState) error

	// ClaimForValidation claims the oldest CATALOG_PARSED articulum with
	// FOR UPDATE SKIP LOCKED and moves it to VALIDATING in the same
	// transaction.
	ClaimForValidation(ctx context.Context) (*domain.Articulum, error)

	// RollbackToCatalogParsed atomically moves VALIDATING -> CATALOG_PARSED
	// and deletes all ValidationResult rows for the articulum, used on AI
	// transport failure.
	RollbackToCatalogParsed(ctx context.Context, id uuid.UUID) error

	// RejectByMinCount transitions VALIDATING -> REJECTED_BY_MIN_COUNT.
	RejectByMinCount(ctx context.Context, id uuid.UUID) error
}

type gormArticulumRepo struct {
	db *gorm.DB
}

func NewArticulumRepo(db *gorm.DB) ArticulumRepo {
	return &gormArticulumRepo{db: db}
}

func (r *gormArticulumRepo) Create(ctx context.Context, articulum string) (*domain.Articulum, error) {
	row := &domain.Articulum{
		Articulum: articulum,
		State:     domain.StateNew,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create articulum: %w", err)
	}
	return row, nil
}

func (r *gormArticulumRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Articulum, error) {
	var row domain.Articulum
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("get articulum: %w", err)
	}
	return &row, nil
}

func (r *gormArticulumRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.ArticulumState) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Articulum{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{
			"state":            to,
			"state_updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("transition articulum %s->%s: %w", from, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransitionLost
	}
	return nil
}

func (r *gormArticulumRepo) ClaimForValidation(ctx context.Context) (*domain.Articulum, error) {
	var claimed *domain.Articulum
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.Articulum
		err := tx.Raw(
			`SELECT * FROM articulums WHERE state = ? ORDER BY state_updated_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
			domain.StateCatalogParsed,
		).Scan(&row).Error
		if err != nil {
			return fmt.Errorf("select catalog_parsed articulum: %w", err)
		}
		if row.ID == uuid.Nil {
			return ErrNoTaskAvailable
		}
		res := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", row.ID, domain.StateCatalogParsed).
			Updates(map[string]any{
				"state":            domain.StateValidating,
				"state_updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("claim articulum for validation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTransitionLost
		}
		row.State = domain.StateValidating
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormArticulumRepo) RollbackToCatalogParsed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", id, domain.StateValidating).
			Updates(map[string]any{
				"state":            domain.StateCatalogParsed,
				"state_updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("rollback transition: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTransitionLost
		}
		if err := tx.Where("articulum_id = ?", id).Delete(&domain.ValidationResult{}).Error; err != nil {
			return fmt.Errorf("delete validation results on rollback: %w", err)
		}
		return nil
	})
}

func (r *gormArticulumRepo) RejectByMinCount(ctx context.Context, id uuid.UUID) error {
	return r.Transition(ctx, id, domain.StateValidating, domain.StateRejectedByMinCount)
}
