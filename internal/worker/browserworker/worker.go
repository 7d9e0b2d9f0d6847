// Package browserworker runs the N browser processes. Each
// instance owns one browser, one claimed proxy, and processes exactly one
// task at a time. The claim/dispatch/heartbeat-goroutine shape is
// grounded on internal/jobs/worker.Worker.runLoop (this loop has no panic
// recovery); the
// status-action table is specific to this domain.
package browserworker

import (
	"context"
	"time"

	"github.com/avitoscout/orchestrator/internal/blobstore"
	"github.com/avitoscout/orchestrator/internal/browserdriver"
	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/proxypool"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/catalogtasks"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
)

type Config struct {
	WorkerID          string
	CatalogBufferSize int
	CatalogMaxPages   int
	RotationBudget    int // R, default 10
	WrongPageLimit    int
	HeartbeatInterval time.Duration
	ProxyWaitTimeout  time.Duration
	IdleSleep         time.Duration
	MaxEmptyListings  bool
}

type Worker struct {
	cfg          Config
	log          *logging.Logger
	driver       browserdriver.Client
	proxies      *proxypool.Pool
	listings     repos.ListingRepo
	objectData   repos.ObjectDataRepo
	catalogTasks *catalogtasks.Manager
	objectTasks  *objecttasks.Manager
	images       blobstore.Store
}

// WithImageStore attaches an optional blob store; when set, listing
// thumbnails are downloaded and re-hosted there instead of keeping the
// upstream URLs directly in ImageKeys.
func (w *Worker) WithImageStore(store blobstore.Store) *Worker {
	w.images = store
	return w
}

func New(
	cfg Config,
	log *logging.Logger,
	driver browserdriver.Client,
	proxies *proxypool.Pool,
	listings repos.ListingRepo,
	objectData repos.ObjectDataRepo,
	catalogTasks *catalogtasks.Manager,
	objectTasks *objecttasks.Manager,
) *Worker {
	return &Worker{
		cfg:          cfg,
		log:          log.With("component", "BrowserWorker", "worker_id", cfg.WorkerID),
		driver:       driver,
		proxies:      proxies,
		listings:     listings,
		objectData:   objectData,
		catalogTasks: catalogTasks,
		objectTasks:  objectTasks,
	}
}

// Run drives the decision loop until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("browser worker stopped")
			return nil
		default:
		}

		preferCatalog, err := w.preferCatalogQueue(ctx)
		if err != nil {
			w.log.Warn("failed to evaluate catalog buffer", "error", err)
		}

		handled, err := w.tryOneCycle(ctx, preferCatalog)
		if err != nil {
			w.log.Error("cycle failed", "error", err)
		}
		if !handled {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.IdleSleep):
			}
		}
	}
}

// preferCatalogQueue implements the buffer-depth heuristic: prefer
// catalog tasks when the validated-and-awaiting-parse buffer is below
// CatalogBufferSize.
func (w *Worker) preferCatalogQueue(ctx context.Context) (bool, error) {
	buffer, err := w.objectTasks.CatalogBuffer(ctx)
	if err != nil {
		return true, err
	}
	return buffer < w.cfg.CatalogBufferSize, nil
}

func (w *Worker) tryOneCycle(ctx context.Context, preferCatalog bool) (bool, error) {
	if preferCatalog {
		if handled, err := w.tryCatalog(ctx); handled || err != nil {
			return handled, err
		}
		return w.tryObject(ctx)
	}
	if handled, err := w.tryObject(ctx); handled || err != nil {
		return handled, err
	}
	return w.tryCatalog(ctx)
}

func (w *Worker) tryCatalog(ctx context.Context) (bool, error) {
	task, err := w.catalogTasks.Claim(ctx, w.cfg.WorkerID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	w.processCatalogTask(ctx, task)
	return true, nil
}

func (w *Worker) tryObject(ctx context.Context) (bool, error) {
	task, err := w.objectTasks.Claim(ctx, w.cfg.WorkerID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	w.processObjectTask(ctx, task)
	return true, nil
}

func (w *Worker) acquireProxy(ctx context.Context) (*domain.Proxy, error) {
	return w.proxies.AcquireWithWait(ctx, w.cfg.WorkerID, w.cfg.ProxyWaitTimeout)
}
