// Package orchestrator is the parent process: it spawns
// and supervises N browser-worker and M validation-worker subprocesses,
// runs the heartbeat sweep, and drives the two background producers
// (seed_catalog_tasks, seed_reparse_tasks). Supervision is built on
// golang.org/x/sync/errgroup, the same pattern internal/modules/chat/steps/
// maintain.go uses for bounded concurrent fan-out.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avitoscout/orchestrator/internal/heartbeat"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/catalogtasks"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
)

const (
	workerKindBrowser    = "browser"
	workerKindValidation = "validation"
)

type Config struct {
	TotalBrowserWorkers    int
	TotalValidationWorkers int
	BrowserWorkerBinary    string
	ValidationWorkerBinary string
	RestartBackoff         time.Duration
	SeedCatalogInterval    time.Duration
	SeedCatalogBatchSize   int
	ReparseMode            bool
	SeedReparseInterval    time.Duration
	MinReparseInterval     time.Duration
}

type Orchestrator struct {
	cfg          Config
	log          *logging.Logger
	containerID  string
	sweeper      *heartbeat.Sweeper
	catalogTasks *catalogtasks.Manager
	objectTasks  *objecttasks.Manager
	proxies      repos.ProxyRepo
	reparse      *ReparseDeps
	leases       repos.WorkerLeaseRepo
}

// New derives the container hash that prefixes every worker_id in this
// process.
func New(cfg Config, log *logging.Logger, sweeper *heartbeat.Sweeper, catalogTasks *catalogtasks.Manager, proxies repos.ProxyRepo) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		log:          log.With("component", "Orchestrator"),
		containerID:  containerHash(),
		sweeper:      sweeper,
		catalogTasks: catalogTasks,
		proxies:      proxies,
	}
}

// WithWorkerLeases attaches the repo the ops status endpoint reads;
// without it, worker subprocess lifecycle is not recorded anywhere.
func (o *Orchestrator) WithWorkerLeases(leases repos.WorkerLeaseRepo) *Orchestrator {
	o.leases = leases
	return o
}

// WithObjectTasks attaches the manager superviseWorker uses to reclaim a
// restarted worker's in-flight object_tasks immediately; without it, only
// catalog_tasks and proxies are reclaimed on restart.
func (o *Orchestrator) WithObjectTasks(objectTasks *objecttasks.Manager) *Orchestrator {
	o.objectTasks = objectTasks
	return o
}

func containerHash() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = fmt.Sprintf("pid-%d", os.Getpid())
	}
	sum := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(sum[:])[:12]
}

// Run spawns the worker fleet plus the heartbeat sweeper and producers,
// and blocks until ctx is cancelled or a component returns a
// non-recoverable error. It returns nil on graceful shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return o.sweeper.Run(gctx) })
	g.Go(func() error { return o.runSeedCatalogTasks(gctx) })
	if o.cfg.ReparseMode {
		g.Go(func() error { return o.runSeedReparseTasks(gctx) })
	}

	for i := 0; i < o.cfg.TotalBrowserWorkers; i++ {
		workerID := fmt.Sprintf("%s_browser_%d", o.containerID, i)
		g.Go(func() error { return o.superviseWorker(gctx, o.cfg.BrowserWorkerBinary, workerID, workerKindBrowser) })
	}
	for i := 0; i < o.cfg.TotalValidationWorkers; i++ {
		workerID := fmt.Sprintf("%s_validation_%d", o.containerID, i)
		g.Go(func() error { return o.superviseWorker(gctx, o.cfg.ValidationWorkerBinary, workerID, workerKindValidation) })
	}

	o.log.Info("orchestrator started",
		"container_id", o.containerID,
		"browser_workers", o.cfg.TotalBrowserWorkers,
		"validation_workers", o.cfg.TotalValidationWorkers,
	)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// superviseWorker runs one worker subprocess forever, restarting it on
// exit. On every restart it first releases the proxies the failed
// worker_id held and reclaims its in-flight catalog_tasks and
// object_tasks back to pending, the same worker_id-scoped release the
// heartbeat sweep would eventually perform on its own timeout.
func (o *Orchestrator) superviseWorker(ctx context.Context, binary string, workerID string, kind string) error {
	for {
		select {
		case <-ctx.Done():
			if o.leases != nil {
				_ = o.leases.Remove(context.Background(), workerID)
			}
			return nil
		default:
		}

		cmd := exec.CommandContext(ctx, binary, "--worker-id", workerID)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), "WORKER_ID="+workerID)

		o.log.Info("starting worker subprocess", "worker_id", workerID, "binary", binary)
		if err := cmd.Start(); err != nil {
			o.log.Error("failed to start worker subprocess", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.cfg.RestartBackoff):
				continue
			}
		}
		if o.leases != nil {
			if err := o.leases.Upsert(ctx, workerID, kind, cmd.Process.Pid); err != nil {
				o.log.Warn("failed to record worker lease", "worker_id", workerID, "error", err)
			}
		}

		stopHeartbeat := o.startLeaseHeartbeat(ctx, workerID)
		err := cmd.Wait()
		stopHeartbeat()

		if ctx.Err() != nil {
			if o.leases != nil {
				_ = o.leases.Remove(context.Background(), workerID)
			}
			return nil
		}

		if err != nil {
			o.log.Warn("worker subprocess exited", "worker_id", workerID, "error", err)
		} else {
			o.log.Warn("worker subprocess exited cleanly, restarting", "worker_id", workerID)
		}

		if releaseErr := o.proxies.ReleaseAllForWorker(ctx, workerID); releaseErr != nil {
			o.log.Error("failed to release proxies after worker exit", "worker_id", workerID, "error", releaseErr)
		}
		if _, releaseErr := o.catalogTasks.ReleaseByWorker(ctx, workerID); releaseErr != nil {
			o.log.Error("failed to reclaim catalog tasks after worker exit", "worker_id", workerID, "error", releaseErr)
		}
		if o.objectTasks != nil {
			if _, releaseErr := o.objectTasks.ReleaseByWorker(ctx, workerID); releaseErr != nil {
				o.log.Error("failed to reclaim object tasks after worker exit", "worker_id", workerID, "error", releaseErr)
			}
		}
		if o.leases != nil {
			_ = o.leases.Remove(ctx, workerID)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.cfg.RestartBackoff):
		}
	}
}

func (o *Orchestrator) startLeaseHeartbeat(ctx context.Context, workerID string) func() {
	if o.leases == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = o.leases.Heartbeat(ctx, workerID)
			}
		}
	}()
	return func() { close(done) }
}

func (o *Orchestrator) runSeedCatalogTasks(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SeedCatalogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := o.catalogTasks.SeedFromNewArticulums(ctx, o.cfg.SeedCatalogBatchSize); err != nil {
				o.log.Warn("seed_catalog_tasks failed", "error", err)
			}
		}
	}
}
