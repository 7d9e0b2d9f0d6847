package repos

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avitoscout/orchestrator/internal/domain"
)

// WorkerLeaseRepo is purely observational: it backs the ops status
// endpoint and never participates in the core state machine.
type WorkerLeaseRepo interface {
	Upsert(ctx context.Context, workerID, kind string, pid int) error
	Heartbeat(ctx context.Context, workerID string) error
	Remove(ctx context.Context, workerID string) error
	ListAll(ctx context.Context) ([]domain.WorkerLease, error)
}

type gormWorkerLeaseRepo struct {
	db *gorm.DB
}

func NewWorkerLeaseRepo(db *gorm.DB) WorkerLeaseRepo {
	return &gormWorkerLeaseRepo{db: db}
}

func (r *gormWorkerLeaseRepo) Upsert(ctx context.Context, workerID, kind string, pid int) error {
	now := time.Now().UTC()
	lease := &domain.WorkerLease{
		WorkerID:   workerID,
		Kind:       kind,
		PID:        pid,
		StartedAt:  now,
		LastSeenAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "worker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "pid", "started_at", "last_seen_at"}),
	}).Create(lease).Error
	if err != nil {
		return fmt.Errorf("upsert worker lease %s: %w", workerID, err)
	}
	return nil
}

func (r *gormWorkerLeaseRepo) Heartbeat(ctx context.Context, workerID string) error {
	err := r.db.WithContext(ctx).Model(&domain.WorkerLease{}).
		Where("worker_id = ?", workerID).
		Update("last_seen_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("heartbeat worker lease %s: %w", workerID, err)
	}
	return nil
}

func (r *gormWorkerLeaseRepo) Remove(ctx context.Context, workerID string) error {
	if err := r.db.WithContext(ctx).Where("worker_id = ?", workerID).Delete(&domain.WorkerLease{}).Error; err != nil {
		return fmt.Errorf("remove worker lease %s: %w", workerID, err)
	}
	return nil
}

func (r *gormWorkerLeaseRepo) ListAll(ctx context.Context) ([]domain.WorkerLease, error) {
	var rows []domain.WorkerLease
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list worker leases: %w", err)
	}
	return rows, nil
}
