package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

type ObjectTaskRepo interface {
	// EnqueueForSurvivors creates one pending object_task per
	// (articulumID, avitoItemID) pair that doesn't already have a
	// non-terminal task (uniqueness by avito_item_id among non-terminal
	// tasks,).
	EnqueueForSurvivors(ctx context.Context, articulumID uuid.UUID, avitoItemIDs []string) (int, error)

	// Claim selects the oldest pending object_task (no articulum
	// predicate) with FOR UPDATE SKIP LOCKED, marks it processing, and on
	// the articulum's first claimed object_task transitions
	// VALIDATED -> OBJECT_PARSING.
	Claim(ctx context.Context, workerID string) (*domain.ObjectTask, error)

	Heartbeat(ctx context.Context, taskID uuid.UUID) error
	Complete(ctx context.Context, task *domain.ObjectTask) error
	Fail(ctx context.Context, task *domain.ObjectTask, reason string) error
	// Invalidate is the distinct terminal status for listings detected as
	// used ("б/у") or removed — no retry.
	Invalidate(ctx context.Context, task *domain.ObjectTask, reason string) error
	// ReturnToQueue sets status=pending and clears worker_id for a
	// retryable failure (CAPTCHA, transient server errors). Unlike
	// CatalogTaskRepo.ReturnToQueue it leaves the articulum state alone:
	// sibling object_tasks for the same articulum may still be in flight.
	ReturnToQueue(ctx context.Context, task *domain.ObjectTask) error

	// CountPendingForValidatedArticulums returns how many articulums in
	// VALIDATED state have at least one pending object_task — the
	// "catalog buffer" used by the browser worker's scheduling heuristic.
	CountPendingForValidatedArticulums(ctx context.Context) (int, error)

	// ReleaseStale mirrors CatalogTaskRepo.ReleaseStale for object tasks.
	// It must not regress an articulum that still has other in-flight
	// object_tasks: the predicate only rolls
	// OBJECT_PARSING back to VALIDATED when this was the last in-flight
	// task for that articulum.
	ReleaseStale(ctx context.Context, staleAfter time.Duration, proxies ProxyRepo) (int, error)

	// ReleaseByWorker mirrors CatalogTaskRepo.ReleaseByWorker for object
	// tasks: reclaims every processing task still held by workerID
	// immediately, rather than waiting for the heartbeat timeout.
	ReleaseByWorker(ctx context.Context, workerID string) (int, error)
}

type gormObjectTaskRepo struct {
	db *gorm.DB
}

func NewObjectTaskRepo(db *gorm.DB) ObjectTaskRepo {
	return &gormObjectTaskRepo{db: db}
}

func (r *gormObjectTaskRepo) EnqueueForSurvivors(ctx context.Context, articulumID uuid.UUID, avitoItemIDs []string) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, itemID := range avitoItemIDs {
			var count int64
			if err := tx.Model(&domain.ObjectTask{}).
				Where("avito_item_id = ? AND status IN ?", itemID, []domain.TaskStatus{domain.TaskPending, domain.TaskProcessing}).
				Count(&count).Error; err != nil {
				return fmt.Errorf("check existing object task for %s: %w", itemID, err)
			}
			if count > 0 {
				continue
			}
			task := &domain.ObjectTask{
				ArticulumID: articulumID,
				AvitoItemID: itemID,
				Status:      domain.TaskPending,
			}
			if err := tx.Create(task).Error; err != nil {
				return fmt.Errorf("enqueue object task for %s: %w", itemID, err)
			}
			created++
		}
		return nil
	})
	return created, err
}

func (r *gormObjectTaskRepo) Claim(ctx context.Context, workerID string) (*domain.ObjectTask, error) {
	var claimed *domain.ObjectTask
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.ObjectTask
		err := tx.Raw(
			`SELECT * FROM object_tasks WHERE status = ? ORDER BY created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
			domain.TaskPending,
		).Scan(&row).Error
		if err != nil {
			return fmt.Errorf("select claimable object task: %w", err)
		}
		if row.ID == uuid.Nil {
			return nil
		}

		now := time.Now().UTC()
		res := tx.Model(&domain.ObjectTask{}).
			Where("id = ? AND status = ?", row.ID, domain.TaskPending).
			Updates(map[string]any{
				"status":       domain.TaskProcessing,
				"worker_id":    workerID,
				"heartbeat_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("claim object task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		// First claimed object_task for this articulum: VALIDATED -> OBJECT_PARSING.
		// A lost race here (RowsAffected==0) just means another task for the
		// same articulum already made the transition; that's fine.
		tx.Model(&domain.Articulum{}).
			Where("id = ? AND state = ?", row.ArticulumID, domain.StateValidated).
			Updates(map[string]any{"state": domain.StateObjectParsing, "state_updated_at": now})

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

func (r *gormObjectTaskRepo) Heartbeat(ctx context.Context, taskID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.ObjectTask{}).
		Where("id = ? AND status = ?", taskID, domain.TaskProcessing).
		Update("heartbeat_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("heartbeat object task: %w", err)
	}
	return nil
}

func (r *gormObjectTaskRepo) Complete(ctx context.Context, task *domain.ObjectTask) error {
	res := r.db.WithContext(ctx).Model(&domain.ObjectTask{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
		Updates(map[string]any{"status": domain.TaskCompleted, "worker_id": nil})
	if res.Error != nil {
		return fmt.Errorf("complete object task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransitionLost
	}
	return nil
}

func (r *gormObjectTaskRepo) Fail(ctx context.Context, task *domain.ObjectTask, reason string) error {
	res := r.db.WithContext(ctx).Model(&domain.ObjectTask{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
		Updates(map[string]any{"status": domain.TaskFailed, "worker_id": nil, "failure_reason": reason})
	if res.Error != nil {
		return fmt.Errorf("fail object task: %w", res.Error)
	}
	return nil
}

func (r *gormObjectTaskRepo) Invalidate(ctx context.Context, task *domain.ObjectTask, reason string) error {
	res := r.db.WithContext(ctx).Model(&domain.ObjectTask{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
		Updates(map[string]any{"status": domain.TaskInvalid, "worker_id": nil, "failure_reason": reason})
	if res.Error != nil {
		return fmt.Errorf("invalidate object task: %w", res.Error)
	}
	return nil
}

func (r *gormObjectTaskRepo) ReturnToQueue(ctx context.Context, task *domain.ObjectTask) error {
	res := r.db.WithContext(ctx).Model(&domain.ObjectTask{}).
		Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
		Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
	if res.Error != nil {
		return fmt.Errorf("return object task to queue: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTransitionLost
	}
	return nil
}

func (r *gormObjectTaskRepo) CountPendingForValidatedArticulums(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(DISTINCT a.id) FROM articulums a
		JOIN object_tasks ot ON ot.articulum_id = a.id
		WHERE a.state = ? AND ot.status = ?`,
		domain.StateValidated, domain.TaskPending,
	).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count catalog buffer: %w", err)
	}
	return int(count), nil
}

func (r *gormObjectTaskRepo) ReleaseByWorker(ctx context.Context, workerID string) (int, error) {
	var held []domain.ObjectTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND worker_id = ?", domain.TaskProcessing, workerID).
		Find(&held).Error; err != nil {
		return 0, fmt.Errorf("find object tasks held by worker %s: %w", workerID, err)
	}

	recovered := 0
	for _, task := range held {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.ObjectTask{}).
				Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
				Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			var stillInFlight int64
			if err := tx.Model(&domain.ObjectTask{}).
				Where("articulum_id = ? AND status = ? AND id <> ?", task.ArticulumID, domain.TaskProcessing, task.ID).
				Count(&stillInFlight).Error; err != nil {
				return err
			}
			if stillInFlight == 0 {
				tx.Model(&domain.Articulum{}).
					Where("id = ? AND state = ?", task.ArticulumID, domain.StateObjectParsing).
					Updates(map[string]any{"state": domain.StateValidated, "state_updated_at": time.Now().UTC()})
			}
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("release object task %s held by worker %s: %w", task.ID, workerID, err)
		}
		recovered++
	}
	return recovered, nil
}

func (r *gormObjectTaskRepo) ReleaseStale(ctx context.Context, staleAfter time.Duration, proxies ProxyRepo) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	var stale []domain.ObjectTask
	if err := r.db.WithContext(ctx).
		Where("status = ? AND heartbeat_at < ?", domain.TaskProcessing, cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("find stale object tasks: %w", err)
	}

	recovered := 0
	for _, task := range stale {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.ObjectTask{}).
				Where("id = ? AND status = ?", task.ID, domain.TaskProcessing).
				Updates(map[string]any{"status": domain.TaskPending, "worker_id": nil})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}

			// Only roll the articulum back to VALIDATED if this was the
			// last in-flight (processing) object_task for it — otherwise
			// a sibling task's worker is still legitimately parsing.
			var stillInFlight int64
			if err := tx.Model(&domain.ObjectTask{}).
				Where("articulum_id = ? AND status = ? AND id <> ?", task.ArticulumID, domain.TaskProcessing, task.ID).
				Count(&stillInFlight).Error; err != nil {
				return err
			}
			if stillInFlight == 0 {
				tx.Model(&domain.Articulum{}).
					Where("id = ? AND state = ?", task.ArticulumID, domain.StateObjectParsing).
					Updates(map[string]any{"state": domain.StateValidated, "state_updated_at": time.Now().UTC()})
			}
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("release stale object task %s: %w", task.ID, err)
		}
		if task.WorkerID != nil {
			_ = proxies.ReleaseAllForWorker(ctx, *task.WorkerID)
		}
		recovered++
	}
	return recovered, nil
}
