package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitoscout/orchestrator/internal/domain"
)

func TestProxyRepo_Block(t *testing.T) {
	db := newTestDB(t)
	repo := NewProxyRepo(db)
	ctx := context.Background()

	workerID := "worker-1"
	proxy := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.1", Port: 8080, IsInUse: true, WorkerID: &workerID}
	require.NoError(t, db.Create(proxy).Error)

	require.NoError(t, repo.Block(ctx, proxy.ID, "manual block"))

	var got domain.Proxy
	require.NoError(t, db.First(&got, "id = ?", proxy.ID).Error)
	assert.True(t, got.IsBlocked)
	assert.False(t, got.IsInUse)
	assert.Nil(t, got.WorkerID)
}

func TestProxyRepo_ReleaseAllForWorker(t *testing.T) {
	db := newTestDB(t)
	repo := NewProxyRepo(db)
	ctx := context.Background()

	workerID := "worker-2"
	p1 := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.2", Port: 8080, IsInUse: true, WorkerID: &workerID}
	p2 := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.3", Port: 8080, IsInUse: true, WorkerID: &workerID}
	require.NoError(t, db.Create(p1).Error)
	require.NoError(t, db.Create(p2).Error)

	require.NoError(t, repo.ReleaseAllForWorker(ctx, workerID))

	var rows []domain.Proxy
	require.NoError(t, db.Where("worker_id = ?", workerID).Find(&rows).Error)
	assert.Empty(t, rows)

	var count int64
	require.NoError(t, db.Model(&domain.Proxy{}).Where("is_in_use = ?", false).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestProxyRepo_IncrementError_ReleasesBelowThreshold(t *testing.T) {
	db := newTestDB(t)
	repo := NewProxyRepo(db)
	ctx := context.Background()

	workerID := "worker-3"
	proxy := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.5", Port: 8080, IsInUse: true, WorkerID: &workerID}
	require.NoError(t, db.Create(proxy).Error)

	blocked, err := repo.IncrementError(ctx, proxy.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	var got domain.Proxy
	require.NoError(t, db.First(&got, "id = ?", proxy.ID).Error)
	assert.Equal(t, 1, got.ConsecutiveErrors)
	assert.False(t, got.IsInUse)
	assert.Nil(t, got.WorkerID)
	assert.False(t, got.IsBlocked)
}

func TestProxyRepo_IncrementError_BlocksAtThreshold(t *testing.T) {
	db := newTestDB(t)
	repo := NewProxyRepo(db)
	ctx := context.Background()

	workerID := "worker-4"
	proxy := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.6", Port: 8080, IsInUse: true, WorkerID: &workerID, ConsecutiveErrors: ThreeStrikes - 1}
	require.NoError(t, db.Create(proxy).Error)

	blocked, err := repo.IncrementError(ctx, proxy.ID)
	require.NoError(t, err)
	assert.True(t, blocked)

	var got domain.Proxy
	require.NoError(t, db.First(&got, "id = ?", proxy.ID).Error)
	assert.Equal(t, ThreeStrikes, got.ConsecutiveErrors)
	assert.False(t, got.IsInUse)
	assert.Nil(t, got.WorkerID)
	assert.True(t, got.IsBlocked)
}

func TestProxyRepo_ResetErrors(t *testing.T) {
	db := newTestDB(t)
	repo := NewProxyRepo(db)
	ctx := context.Background()

	proxy := &domain.Proxy{ID: uuid.New(), Host: "10.0.0.4", Port: 8080, ConsecutiveErrors: 2}
	require.NoError(t, db.Create(proxy).Error)

	require.NoError(t, repo.ResetErrors(ctx, proxy.ID))

	var got domain.Proxy
	require.NoError(t, db.First(&got, "id = ?", proxy.ID).Error)
	assert.Zero(t, got.ConsecutiveErrors)
}
