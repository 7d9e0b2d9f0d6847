// Package catalogtasks manages the search-result-page task queue. It is
// a thin wrapper over repos.CatalogTaskRepo; the claim/transition SQL
// itself lives in the repo layer, grounded on
// courseGenerationRunRepo.ClaimNextRunnable.
package catalogtasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type Manager struct {
	repo repos.CatalogTaskRepo
	log  *logging.Logger
}

func New(repo repos.CatalogTaskRepo, log *logging.Logger) *Manager {
	return &Manager{repo: repo, log: log.With("component", "CatalogTaskManager")}
}

func (m *Manager) Claim(ctx context.Context, workerID string) (*domain.CatalogTask, error) {
	return m.repo.Claim(ctx, workerID)
}

func (m *Manager) Heartbeat(ctx context.Context, taskID uuid.UUID) error {
	return m.repo.Heartbeat(ctx, taskID)
}

func (m *Manager) Complete(ctx context.Context, task *domain.CatalogTask) error {
	return m.repo.Complete(ctx, task)
}

func (m *Manager) Fail(ctx context.Context, task *domain.CatalogTask, reason string) error {
	return m.repo.Fail(ctx, task, reason)
}

func (m *Manager) ReturnToQueue(ctx context.Context, task *domain.CatalogTask) error {
	return m.repo.ReturnToQueue(ctx, task)
}

func (m *Manager) SetCheckpoint(ctx context.Context, taskID uuid.UUID, page int) error {
	return m.repo.SetCheckpoint(ctx, taskID, page)
}

func (m *Manager) IncrementWrongPageCount(ctx context.Context, taskID uuid.UUID) (int, error) {
	return m.repo.IncrementWrongPageCount(ctx, taskID)
}

// ReleaseByWorker reclaims every task workerID was holding, used on
// orchestrator restart to recover a crashed worker's in-flight tasks
// without waiting for the heartbeat sweep.
func (m *Manager) ReleaseByWorker(ctx context.Context, workerID string) (int, error) {
	return m.repo.ReleaseByWorker(ctx, workerID)
}

// SeedFromNewArticulums is seed_catalog_tasks: poll for
// articulums in NEW with no pending catalog_task, insert a
// (articulum_id, pending, checkpoint_page=1) row for each, batched.
func (m *Manager) SeedFromNewArticulums(ctx context.Context, batchSize int) (int, error) {
	ids, err := m.repo.FindNewArticulumsNeedingTask(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("seed catalog tasks: %w", err)
	}
	created := 0
	for _, id := range ids {
		if _, err := m.repo.Enqueue(ctx, id); err != nil {
			m.log.Warn("failed to enqueue catalog task", "articulum_id", id, "error", err)
			continue
		}
		created++
	}
	if created > 0 && m.log != nil {
		m.log.Info("seeded catalog tasks", "count", created)
	}
	return created, nil
}
