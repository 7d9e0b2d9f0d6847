// Package heartbeat is the sole recovery mechanism for abandoned tasks:
// a periodic sweep that returns stale catalog_tasks and object_tasks to
// their queues, releases the proxies their workers held, and repairs
// articulums orphaned in CATALOG_PARSING. Worker crashes require no
// in-process cleanup beyond this loop.
package heartbeat

import (
	"context"
	"time"

	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type Config struct {
	Period  time.Duration // P, default 30s
	Timeout time.Duration // HEARTBEAT_TIMEOUT, default 1800s
}

type Sweeper struct {
	cfg          Config
	log          *logging.Logger
	catalogTasks repos.CatalogTaskRepo
	objectTasks  repos.ObjectTaskRepo
	proxies      repos.ProxyRepo
	articulums   repos.ArticulumRepo
}

func New(cfg Config, log *logging.Logger, catalogTasks repos.CatalogTaskRepo, objectTasks repos.ObjectTaskRepo, proxies repos.ProxyRepo, articulums repos.ArticulumRepo) *Sweeper {
	return &Sweeper{
		cfg:          cfg,
		log:          log.With("component", "HeartbeatSweeper"),
		catalogTasks: catalogTasks,
		objectTasks:  objectTasks,
		proxies:      proxies,
		articulums:   articulums,
	}
}

// Run loops on cfg.Period until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	recoveredCatalog, err := s.catalogTasks.ReleaseStale(ctx, s.cfg.Timeout, s.proxies, s.articulums)
	if err != nil {
		s.log.Error("catalog task recovery sweep failed", "error", err)
	} else if recoveredCatalog > 0 {
		s.log.Info("recovered stale catalog tasks", "count", recoveredCatalog)
	}

	recoveredObject, err := s.objectTasks.ReleaseStale(ctx, s.cfg.Timeout, s.proxies)
	if err != nil {
		s.log.Error("object task recovery sweep failed", "error", err)
	} else if recoveredObject > 0 {
		s.log.Info("recovered stale object tasks", "count", recoveredObject)
	}

	repaired, err := s.catalogTasks.RepairOrphanedParsing(ctx)
	if err != nil {
		s.log.Error("orphaned catalog_parsing repair failed", "error", err)
	} else if repaired > 0 {
		s.log.Info("repaired orphaned catalog_parsing articulums", "count", repaired)
	}
}
