package proxypool

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type fakeProxyRepo struct {
	proxies map[uuid.UUID]*domain.Proxy

	acquireQueue []*domain.Proxy
	blockCalls   []uuid.UUID
	releaseAllFn func(workerID string)
}

func (f *fakeProxyRepo) Acquire(ctx context.Context, workerID string) (*domain.Proxy, error) {
	if len(f.acquireQueue) == 0 {
		return nil, nil
	}
	next := f.acquireQueue[0]
	f.acquireQueue = f.acquireQueue[1:]
	return next, nil
}

func (f *fakeProxyRepo) Release(ctx context.Context, proxyID uuid.UUID) error { return nil }

func (f *fakeProxyRepo) IncrementError(ctx context.Context, proxyID uuid.UUID) (bool, error) {
	p := f.proxies[proxyID]
	p.ConsecutiveErrors++
	if p.ConsecutiveErrors >= repos.ThreeStrikes {
		p.IsBlocked = true
		return true, nil
	}
	return false, nil
}

func (f *fakeProxyRepo) Block(ctx context.Context, proxyID uuid.UUID, reason string) error {
	f.blockCalls = append(f.blockCalls, proxyID)
	if p, ok := f.proxies[proxyID]; ok {
		p.IsBlocked = true
	}
	return nil
}

func (f *fakeProxyRepo) ResetErrors(ctx context.Context, proxyID uuid.UUID) error {
	if p, ok := f.proxies[proxyID]; ok {
		p.ConsecutiveErrors = 0
	}
	return nil
}

func (f *fakeProxyRepo) ReleaseAllForWorker(ctx context.Context, workerID string) error {
	if f.releaseAllFn != nil {
		f.releaseAllFn(workerID)
	}
	return nil
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New("")
	require.NoError(t, err)
	return log
}

func TestPool_IncrementError_BlocksOnThirdStrike(t *testing.T) {
	id := uuid.New()
	repo := &fakeProxyRepo{proxies: map[uuid.UUID]*domain.Proxy{id: {ID: id}}}
	pool := New(repo, testLogger(t))

	for i := 0; i < repos.ThreeStrikes-1; i++ {
		blocked, err := pool.IncrementError(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, blocked)
	}

	blocked, err := pool.IncrementError(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.True(t, repo.proxies[id].IsBlocked)
}

func TestPool_Block_DelegatesToRepo(t *testing.T) {
	id := uuid.New()
	repo := &fakeProxyRepo{proxies: map[uuid.UUID]*domain.Proxy{id: {ID: id}}}
	pool := New(repo, testLogger(t))

	require.NoError(t, pool.Block(context.Background(), id, "manual"))
	assert.Contains(t, repo.blockCalls, id)
	assert.True(t, repo.proxies[id].IsBlocked)
}

func TestPool_AcquireWithWait_TimesOutWhenNoneFree(t *testing.T) {
	repo := &fakeProxyRepo{}
	pool := New(repo, testLogger(t))

	_, err := pool.AcquireWithWait(context.Background(), "worker-1", 50*time.Millisecond)
	assert.ErrorIs(t, err, repos.ErrNoProxyAvailable)
}

func TestPool_AcquireWithWait_ReturnsOnceFreeProxyArrives(t *testing.T) {
	proxy := &domain.Proxy{ID: uuid.New()}
	repo := &fakeProxyRepo{acquireQueue: []*domain.Proxy{nil, nil, proxy}}
	pool := New(repo, testLogger(t))

	got, err := pool.AcquireWithWait(context.Background(), "worker-1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, proxy.ID, got.ID)
}

func TestPool_ReleaseAllForWorker_DelegatesToRepo(t *testing.T) {
	var called string
	repo := &fakeProxyRepo{releaseAllFn: func(workerID string) { called = workerID }}
	pool := New(repo, testLogger(t))

	require.NoError(t, pool.ReleaseAllForWorker(context.Background(), "worker-9"))
	assert.Equal(t, "worker-9", called)
}
