package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type CatalogTaskRepo interface {
	// Enqueue inserts a pending catalog task for an articulum (used by
	// seed_catalog_tasks).
	Enqueue(ctx context.Context, articulumID uuid.UUID) (*domain.CatalogTask, error)

	// Claim selects the oldest pending task joined to an articulum in NEW,
	// locks it FOR UPDATE SKIP LOCKED, and in the same transaction marks
	// the task processing and transitions the articulum NEW->CATALOG_PARSING
	//. Returns (nil, nil) if nothing is claimable.
	Claim(ctx context.Context, workerID string) (*domain.CatalogTask, error)

	Heartbeat(ctx context.Context, taskID uuid.UUID) error

	// Complete marks the task completed and transitions the articulum
	// CATALOG_PARSING -> CATALOG_PARSED.
	Complete(ctx context.Context, task *domain.CatalogTask) error

	// Fail marks the task failed and returns the articulum to NEW.
	Fail(ctx context.Context, task *domain.CatalogTask, reason string) error

	// ReturnToQueue sets status=pending, clears worker_id, preserves
	// checkpoint_page, and rolls the articulum back to NEW.
	ReturnToQueue(ctx context.Context, task *domain.CatalogTask) error

	// SetCheckpoint persists the resume page without changing status.
	SetCheckpoint(ctx context.Context, taskID uuid.UUID, page int) error

	// IncrementWrongPageCount bumps the diagnostic counter used to decide
	// when PAGE_NOT_DETECTED/WRONG_PAGE should fail the task outright.
	IncrementWrongPageCount(ctx context.Context, taskID uuid.UUID) (int, error)

	// ReleaseStale finds processing rows whose heartbeat is older than
	// staleAfter and, for each, releases the proxy held by its worker_id,
	// resets the articulum to NEW, and returns the task to pending —
	// the heartbeat-recovery sweep for catalog tasks.
	ReleaseStale(ctx context.Context, staleAfter time.Duration, proxies ProxyRepo, articulums ArticulumRepo) (int, error)

	// ReleaseByWorker reclaims every processing task still held by
	// workerID, regardless of heartbeat age, resetting the owning
	// articulum to NEW. Used to reclaim immediately on orchestrator
	// restart instead of waiting out the full heartbeat timeout.
	ReleaseByWorker(ctx context.Context, workerID string) (int, error)

	// RepairOrphanedParsing returns to NEW any articulum stuck in
	// CATALOG_PARSING with no live (processing) catalog task.
	RepairOrphanedParsing(ctx context.Context) (int, error)

	// FindNewArticulumsNeedingTask lists NEW articulums with no pending
	// catalog_task yet, for seed_catalog_tasks.
	FindNewArticulumsNeedingTask(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type gormCatalogTaskRepo struct {
	db *gorm.DB
}

func NewCatalogTaskRepo(db *gorm.DB) CatalogTaskRepo {
	return &gormCatalogTaskRepo{db: db}
}

func (r *gormCatalogTaskRepo) Enqueue(ctx context.Context, articulumID uuid.UUID) (*domain.CatalogTask, error) {
	task := &domain.CatalogTask{
		ArticulumID:    articulumID,
		Status:         domain.TaskPending,
		CheckpointPage: 1,
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("enqueue catalog task: %w", err)
	}
	return task, nil
}

func (r *gormCatalogTaskRepo) Claim(ctx context.Context, workerID string) (*domain.CatalogTask, error) {
	var claimed *domain.CatalogTask
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.CatalogTask
		err := tx.Raw(`
			SELECT ct.* FROM catalog_tasks ct
			JOIN articulums a ON a.id = ct.articulum_id
			WHERE ct.status = ? AND a.state = ?
			ORDER BY ct.created_at ASC
			LIMIT 1
			FOR UPDATE OF ct SKIP LOCKED`,
			domain.TaskPending, domain.StateNew,
		).Scan(&row).Error
		if err != nil {
			return fmt.Errorf("select claimable catalog task: %w", err)
		}
		if row.ID == uuid.Nil {
			return nil
		}

		now := time.Now().UTC()
		res := tx.Model(&domain.CatalogTask{}).
			Where("id = ? AND status = ?", row.ID, domain.TaskPending).
			Updates(map[string]any{
				"status":       domain.TaskProcessing,
				"worker_id":    workerID,
				"heartbeat_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("claim catalog task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		tres := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", row.ArticulumID, domain.StateNew).
			Updates(map[string]any{
				"state":            domain.StateCatalogParsing,
				"state_updated_at": now,
			})
		if tres.Error != nil {
			return fmt.Errorf("transition articulum on catalog claim: %w", tres.Error)
		}
		if tres.RowsAffected == 0 {
			return ErrTransitionLost
		}

		row.Status = domain.TaskProcessing
		row.WorkerID = &workerID
		row.HeartbeatAt = &now
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormCatalogTaskRepo) Heartbeat(ctx context.Context, taskID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.CatalogTask{}).
		Where("id = ? AND status = ?", taskID, domain.TaskProcessing).
		Update("heartbeat_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("heartbeat catalog task: %w", err)
	}
	return nil
}

func (r *gormCatalogTaskRepo) Complete(ctx context.Context, task *domain.CatalogTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.CatalogTask{}).
			Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
			Updates(map[string]any{"status": domain.TaskCompleted, "worker_id": nil})
		if res.Error != nil {
			return fmt.Errorf("complete catalog task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTransitionLost
		}
		tres := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", task.ArticulumID, domain.StateCatalogParsing).
			Updates(map[string]any{"state": domain.StateCatalogParsed, "state_updated_at": time.Now().UTC()})
		if tres.Error != nil {
			return fmt.Errorf("transition articulum on catalog complete: %w", tres.Error)
		}
		if tres.RowsAffected == 0 {
			return ErrTransitionLost
		}
		return nil
	})
}

func (r *gormCatalogTaskRepo) Fail(ctx context.Context, task *domain.CatalogTask, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.CatalogTask{}).
			Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
			Updates(map[string]any{
				"status":         domain.TaskFailed,
				"worker_id":      nil,
				"failure_reason": reason,
			})
		if res.Error != nil {
			return fmt.Errorf("fail catalog task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTransitionLost
		}
		tres := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", task.ArticulumID, domain.StateCatalogParsing).
			Updates(map[string]any{"state": domain.StateNew, "state_updated_at": time.Now().UTC()})
		if tres.Error != nil {
			return fmt.Errorf("transition articulum on catalog fail: %w", tres.Error)
		}
		return nil
	})
}

func (r *gormCatalogTaskRepo) ReturnToQueue(ctx context.Context, task *domain.CatalogTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.CatalogTask{}).
			Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
			Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
		if res.Error != nil {
			return fmt.Errorf("return catalog task to queue: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTransitionLost
		}
		tres := tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", task.ArticulumID, domain.StateCatalogParsing).
			Updates(map[string]any{"state": domain.StateNew, "state_updated_at": time.Now().UTC()})
		if tres.Error != nil {
			return fmt.Errorf("transition articulum on catalog return: %w", tres.Error)
		}
		return nil
	})
}

func (r *gormCatalogTaskRepo) SetCheckpoint(ctx context.Context, taskID uuid.UUID, page int) error {
	err := r.db.WithContext(ctx).Model(&domain.CatalogTask{}).
		Where("id = ?", taskID).
		Update("checkpoint_page", page).Error
	if err != nil {
		return fmt.Errorf("set catalog task checkpoint: %w", err)
	}
	return nil
}

func (r *gormCatalogTaskRepo) IncrementWrongPageCount(ctx context.Context, taskID uuid.UUID) (int, error) {
	var task domain.CatalogTask
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := withLocking(tx).Where("id = ?", taskID).First(&task).Error; err != nil {
			return fmt.Errorf("load catalog task for wrong-page increment: %w", err)
		}
		task.WrongPageCount++
		if err := tx.Model(&domain.CatalogTask{}).Where("id = ?", taskID).
			Update("wrong_page_count", task.WrongPageCount).Error; err != nil {
			return fmt.Errorf("increment wrong page count: %w", err)
		}
		return nil
	})
	return task.WrongPageCount, err
}

func (r *gormCatalogTaskRepo) ReleaseStale(ctx context.Context, staleAfter time.Duration, proxies ProxyRepo, articulums ArticulumRepo) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	var stale []domain.CatalogTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND heartbeat_at < ?", domain.TaskProcessing, cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("find stale catalog tasks: %w", err)
	}

	recovered := 0
	for _, task := range stale {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.CatalogTask{}).
				Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
				Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // already recovered by someone else
			}
			tx.Model(&domain.Articulum{}).
				Where("id = ? AND state = ?", task.ArticulumID, domain.StateCatalogParsing).
				Updates(map[string]any{"state": domain.StateNew, "state_updated_at": time.Now().UTC()})
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("release stale catalog task %s: %w", task.ID, err)
		}
		if task.WorkerID != nil {
			_ = proxies.ReleaseAllForWorker(ctx, *task.WorkerID)
		}
		recovered++
	}
	return recovered, nil
}

func (r *gormCatalogTaskRepo) ReleaseByWorker(ctx context.Context, workerID string) (int, error) {
	var held []domain.CatalogTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND worker_id = ?", domain.TaskProcessing, workerID).
		Find(&held).Error; err != nil {
		return 0, fmt.Errorf("find catalog tasks held by worker %s: %w", workerID, err)
	}

	recovered := 0
	for _, task := range held {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.CatalogTask{}).
				Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
				Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // already recovered by someone else
			}
			tx.Model(&domain.Articulum{}).
				Where("id = ? AND state = ?", task.ArticulumID, domain.StateCatalogParsing).
				Updates(map[string]any{"state": domain.StateNew, "state_updated_at": time.Now().UTC()})
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("release catalog task %s held by worker %s: %w", task.ID, workerID, err)
		}
		recovered++
	}
	return recovered, nil
}

func (r *gormCatalogTaskRepo) RepairOrphanedParsing(ctx context.Context) (int, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE articulums SET state = ?, state_updated_at = now()
		WHERE state = ?
		AND id NOT IN (SELECT articulum_id FROM catalog_tasks WHERE status = ?)`,
		domain.StateNew, domain.StateCatalogParsing, domain.TaskProcessing,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("repair orphaned catalog_parsing articulums: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *gormCatalogTaskRepo) FindNewArticulumsNeedingTask(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(`
		SELECT a.id FROM articulums a
		WHERE a.state = ?
		AND NOT EXISTS (
			SELECT 1 FROM catalog_tasks ct WHERE ct.articulum_id = a.id AND ct.status = ?
		)
		ORDER BY a.created_at ASC
		LIMIT ?`,
		domain.StateNew, domain.TaskPending, limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("find new articulums needing catalog task: %w", err)
	}
	return ids, nil
}
