// Package objecttasks manages the per-listing detail-page task queue.
package objecttasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type Manager struct {
	repo repos.ObjectTaskRepo
	log  *logging.Logger
}

func New(repo repos.ObjectTaskRepo, log *logging.Logger) *Manager {
	return &Manager{repo: repo, log: log.With("component", "ObjectTaskManager")}
}

func (m *Manager) EnqueueForSurvivors(ctx context.Context, articulumID uuid.UUID, avitoItemIDs []string) (int, error) {
	return m.repo.EnqueueForSurvivors(ctx, articulumID, avitoItemIDs)
}

func (m *Manager) Claim(ctx context.Context, workerID string) (*domain.ObjectTask, error) {
	return m.repo.Claim(ctx, workerID)
}

func (m *Manager) Heartbeat(ctx context.Context, taskID uuid.UUID) error {
	return m.repo.Heartbeat(ctx, taskID)
}

func (m *Manager) Complete(ctx context.Context, task *domain.ObjectTask) error {
	return m.repo.Complete(ctx, task)
}

func (m *Manager) Fail(ctx context.Context, task *domain.ObjectTask, reason string) error {
	return m.repo.Fail(ctx, task, reason)
}

func (m *Manager) Invalidate(ctx context.Context, task *domain.ObjectTask, reason string) error {
	return m.repo.Invalidate(ctx, task, reason)
}

func (m *Manager) ReturnToQueue(ctx context.Context, task *domain.ObjectTask) error {
	return m.repo.ReturnToQueue(ctx, task)
}

// CatalogBuffer is the number of VALIDATED articulums with at least one
// pending object_task — the browser worker's scheduling heuristic input.
func (m *Manager) CatalogBuffer(ctx context.Context) (int, error) {
	return m.repo.CountPendingForValidatedArticulums(ctx)
}

func (m *Manager) ReleaseStale(ctx context.Context, staleAfter time.Duration, proxies repos.ProxyRepo) (int, error) {
	return m.repo.ReleaseStale(ctx, staleAfter, proxies)
}

// ReleaseByWorker reclaims every task workerID was holding, used on
// orchestrator restart to recover a crashed worker's in-flight tasks
// without waiting for the heartbeat sweep.
func (m *Manager) ReleaseByWorker(ctx context.Context, workerID string) (int, error) {
	return m.repo.ReleaseByWorker(ctx, workerID)
}
