package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

// ThreeStrikes is the error-policy threshold: three consecutive
// transient failures permanently block a proxy.
const ThreeStrikes = 3

type ProxyRepo interface {
	// Acquire atomically selects one unblocked, unclaimed proxy with
	// FOR UPDATE SKIP LOCKED and marks it in-use by workerID. Returns
	// (nil, nil) if none is available right now.
	Acquire(ctx context.Context, workerID string) (*domain.Proxy, error)
	Release(ctx context.Context, proxyID uuid.UUID) error
	// IncrementError bumps consecutive_errors; at >= ThreeStrikes it
	// permanently blocks the proxy instead, atomically. Returns whether
	// the proxy ended up blocked.
	IncrementError(ctx context.Context, proxyID uuid.UUID) (blocked bool, err error)
	Block(ctx context.Context, proxyID uuid.UUID, reason string) error
	ResetErrors(ctx context.Context, proxyID uuid.UUID) error
	// ReleaseAllForWorker is used by heartbeat recovery and orchestrator
	// restart to reclaim everything a dead worker_id was holding.
	ReleaseAllForWorker(ctx context.Context, workerID string) error
}

type gormProxyRepo struct {
	db *gorm.DB
}

func NewProxyRepo(db *gorm.DB) ProxyRepo {
	return &gormProxyRepo{db: db}
}

func (r *gormProxyRepo) Acquire(ctx context.Context, workerID string) (*domain.Proxy, error) {
	var claimed *domain.Proxy
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.Proxy
		err := tx.Raw(
			`SELECT * FROM proxies WHERE is_blocked = false AND is_in_use = false ORDER BY consecutive_errors ASC, created_at ASC LIMIT 1 FOR UPDATE SKIP LOCKED`,
		).Scan(&row).Error
		if err != nil {
			return fmt.Errorf("select free proxy: %w", err)
		}
		if row.ID == uuid.Nil {
			return nil // no proxy available; claimed stays nil
		}
		res := tx.Model(&domain.Proxy{}).
			Where("id = ? AND is_in_use = false AND is_blocked = false", row.ID).
			Updates(map[string]any{
				"is_in_use": true,
				"worker_id": workerID,
			})
		if res.Error != nil {
			return fmt.Errorf("claim proxy: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // lost the race to another worker; caller retries
		}
		row.IsInUse = true
		row.WorkerID = &workerID
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *gormProxyRepo) Release(ctx context.Context, proxyID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.Proxy{}).
		Where("id = ?", proxyID).
		Updates(map[string]any{
			"is_in_use": false,
			"worker_id": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("release proxy: %w", err)
	}
	return nil
}

func (r *gormProxyRepo) IncrementError(ctx context.Context, proxyID uuid.UUID) (bool, error) {
	blocked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.Proxy
		if err := withLocking(tx).Where("id = ?", proxyID).First(&row).Error; err != nil {
			return fmt.Errorf("load proxy for error increment: %w", err)
		}
		now := time.Now().UTC()
		newCount := row.ConsecutiveErrors + 1
		updates := map[string]any{
			"consecutive_errors": newCount,
			"last_error_at":      now,
			"is_in_use":          false,
			"worker_id":          nil,
		}
		if newCount >= ThreeStrikes {
			updates["is_blocked"] = true
			blocked = true
		}
		if err := tx.Model(&domain.Proxy{}).Where("id = ?", proxyID).Updates(updates).Error; err != nil {
			return fmt.Errorf("increment proxy error counter: %w", err)
		}
		return nil
	})
	return blocked, err
}

func (r *gormProxyRepo) Block(ctx context.Context, proxyID uuid.UUID, reason string) error {
	err := r.db.WithContext(ctx).Model(&domain.Proxy{}).
		Where("id = ?", proxyID).
		Updates(map[string]any{
			"is_blocked": true,
			"is_in_use":  false,
			"worker_id":  nil,
		}).Error
	if err != nil {
		return fmt.Errorf("block proxy (%s): %w", reason, err)
	}
	return nil
}

func (r *gormProxyRepo) ResetErrors(ctx context.Context, proxyID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&domain.Proxy{}).
		Where("id = ?", proxyID).
		Updates(map[string]any{
			"consecutive_errors": 0,
		}).Error
	if err != nil {
		return fmt.Errorf("reset proxy error counter: %w", err)
	}
	return nil
}

func (r *gormProxyRepo) ReleaseAllForWorker(ctx context.Context, workerID string) error {
	err := r.db.WithContext(ctx).Model(&domain.Proxy{}).
		Where("worker_id = ?", workerID).
		Updates(map[string]any{
			"is_in_use": false,
			"worker_id": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("release proxies for worker %s: %w", workerID, err)
	}
	return nil
}
