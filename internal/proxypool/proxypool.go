// Package proxypool arbitrates a fixed set of upstream proxies. Acquisition
// is a claim-skip-locked primitive (repos.ProxyRepo.Acquire);
// acquire_with_wait adds a ticker-based polling retry shape grounded on
// internal/jobs/worker/worker.go's runLoop.
package proxypool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type Pool struct {
	repo   repos.ProxyRepo
	log    *logging.Logger
	events *eventbus.Bus
}

func New(repo repos.ProxyRepo, log *logging.Logger) *Pool {
	return &Pool{repo: repo, log: log.With("component", "ProxyPool")}
}

// WithEventBus attaches an optional event publisher for proxy-block events.
func (p *Pool) WithEventBus(bus *eventbus.Bus) *Pool {
	p.events = bus
	return p
}

// Acquire returns one unblocked, unclaimed proxy or (nil, nil) if none is
// free right now.
func (p *Pool) Acquire(ctx context.Context, workerID string) (*domain.Proxy, error) {
	return p.repo.Acquire(ctx, workerID)
}

// AcquireWithWait polls every 250ms until a proxy is free or timeout
// elapses, returning repos.ErrNoProxyAvailable on timeout.
func (p *Pool) AcquireWithWait(ctx context.Context, workerID string, timeout time.Duration) (*domain.Proxy, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		proxy, err := p.repo.Acquire(ctx, workerID)
		if err != nil {
			return nil, err
		}
		if proxy != nil {
			return proxy, nil
		}
		if time.Now().After(deadline) {
			return nil, repos.ErrNoProxyAvailable
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) Release(ctx context.Context, proxyID uuid.UUID) error {
	return p.repo.Release(ctx, proxyID)
}

// IncrementError bumps the consecutive-error counter; three strikes block
// the proxy permanently.
func (p *Pool) IncrementError(ctx context.Context, proxyID uuid.UUID) (blocked bool, err error) {
	blocked, err = p.repo.IncrementError(ctx, proxyID)
	if err == nil && blocked {
		if p.log != nil {
			p.log.Warn("proxy permanently blocked after three strikes", "proxy_id", proxyID)
		}
		if p.events != nil {
			p.events.PublishProxyBlocked(ctx, proxyID.String(), "three consecutive errors")
		}
	}
	return blocked, err
}

// Block unconditionally and permanently blocks the proxy — no unblock path
// exists in the core.
func (p *Pool) Block(ctx context.Context, proxyID uuid.UUID, reason string) error {
	if err := p.repo.Block(ctx, proxyID, reason); err != nil {
		return err
	}
	if p.events != nil {
		p.events.PublishProxyBlocked(ctx, proxyID.String(), reason)
	}
	return nil
}

func (p *Pool) ResetErrors(ctx context.Context, proxyID uuid.UUID) error {
	return p.repo.ResetErrors(ctx, proxyID)
}

func (p *Pool) ReleaseAllForWorker(ctx context.Context, workerID string) error {
	return p.repo.ReleaseAllForWorker(ctx, workerID)
}
