// Package validationworker runs the M validation processes.
// It never touches a browser: it claims an articulum already parked in
// CATALOG_PARSED, loads its catalog_listings, runs every enabled stage, and
// decides VALIDATED vs REJECTED_BY_MIN_COUNT. Loop shape is grounded on
// internal/jobs/worker.Worker.runLoop — ticker poll, claim, dispatch,
// panic recovery. A recovered panic is logged only; the articulum is left
// in VALIDATING.
package validationworker

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/statemachine"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
	"github.com/avitoscout/orchestrator/internal/validation"
)

type Config struct {
	WorkerID          string
	PollInterval      time.Duration
	MinValidatedItems int
	SkipObjectParsing bool
	Pipeline          validation.PipelineConfig
}

type Worker struct {
	cfg         Config
	log         *logging.Logger
	sm          *statemachine.StateMachine
	listings    repos.ListingRepo
	validations repos.ValidationRepo
	objectTasks *objecttasks.Manager
	ai          *validation.AIStage
	events      *eventbus.Bus
}

// WithEventBus attaches an optional event publisher for one
// validation_complete summary per articulum (item and survivor counts).
func (w *Worker) WithEventBus(bus *eventbus.Bus) *Worker {
	w.events = bus
	return w
}

func New(
	cfg Config,
	log *logging.Logger,
	sm *statemachine.StateMachine,
	listings repos.ListingRepo,
	validations repos.ValidationRepo,
	objectTasks *objecttasks.Manager,
	ai *validation.AIStage,
) *Worker {
	return &Worker{
		cfg:         cfg,
		log:         log.With("component", "ValidationWorker", "worker_id", cfg.WorkerID),
		sm:          sm,
		listings:    listings,
		validations: validations,
		objectTasks: objectTasks,
		ai:          ai,
	}
}

// Run loops until ctx is cancelled, claiming one articulum at a time. It
// returns nil on graceful shutdown; if the AI stage's consecutive-failure
// budget is exhausted it calls os.Exit(2) directly so the supervising
// orchestrator restarts it with a clean failure counter.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("validation worker stopped")
			return nil
		case <-ticker.C:
			articulum, err := w.sm.ClaimForValidation(ctx)
			if err != nil {
				w.log.Warn("claim for validation failed", "error", err)
				continue
			}
			if articulum == nil {
				continue
			}
			w.processOne(ctx, articulum)
		}
	}
}

func (w *Worker) processOne(ctx context.Context, articulum *domain.Articulum) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("validation worker panic", "articulum_id", articulum.ID, "panic", r)
		}
	}()

	rows, err := w.listings.ListByArticulum(ctx, articulum.ID)
	if err != nil {
		w.log.Error("failed to load listings", "articulum_id", articulum.ID, "error", err)
		return
	}

	items := make([]validation.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, validation.Item{
			AvitoItemID:   r.AvitoItemID,
			Title:         r.Title,
			Snippet:       r.Snippet,
			Price:         r.Price,
			SellerReviews: r.SellerReviews,
		})
	}

	verdicts := validation.RunDeterministicStages(articulum.Articulum, items, w.cfg.Pipeline)

	if w.cfg.Pipeline.EnableAI && w.ai != nil {
		aiVerdicts, err := w.ai.Evaluate(ctx, articulum.Articulum, items)
		if err != nil {
			if errors.Is(err, validation.ErrTooManyConsecutiveFailures) {
				w.log.Error("ai validation exhausted consecutive-failure budget, exiting", "error", err)
				if rbErr := w.sm.RollbackToCatalogParsed(ctx, articulum.ID); rbErr != nil {
					w.log.Error("rollback before exit failed", "articulum_id", articulum.ID, "error", rbErr)
				}
				os.Exit(2)
			}
			w.log.Warn("ai validation transport failure, rolling back articulum", "articulum_id", articulum.ID, "error", err)
			if rbErr := w.sm.RollbackToCatalogParsed(ctx, articulum.ID); rbErr != nil {
				w.log.Error("rollback to catalog_parsed failed", "articulum_id", articulum.ID, "error", rbErr)
			}
			return
		}
		verdicts = append(verdicts, aiVerdicts...)
	}

	for _, v := range verdicts {
		result := &domain.ValidationResult{
			ArticulumID:     articulum.ID,
			AvitoItemID:     v.AvitoItemID,
			Stage:           v.Stage,
			Passed:          v.Passed,
			RejectionReason: v.RejectionReason,
		}
		if err := w.validations.WriteResult(ctx, result); err != nil {
			w.log.Error("failed to persist validation result", "articulum_id", articulum.ID, "item", v.AvitoItemID, "error", err)
		}
	}

	enabledStages := w.cfg.Pipeline.EnabledStages()
	survivors, err := w.validations.ItemsPassingAllStages(ctx, articulum.ID, enabledStages)
	if err != nil {
		w.log.Error("failed to compute survivors", "articulum_id", articulum.ID, "error", err)
		return
	}

	if w.events != nil {
		w.events.Publish(ctx, eventbus.ChannelValidationEvents, eventbus.Event{
			Type: "validation_complete",
			Data: map[string]any{
				"articulum_id":   articulum.ID.String(),
				"item_count":     len(items),
				"survivor_count": len(survivors),
			},
		})
	}

	if len(survivors) < w.cfg.MinValidatedItems {
		if err := w.sm.RejectByMinCount(ctx, articulum.ID); err != nil {
			w.log.Error("reject by min count failed", "articulum_id", articulum.ID, "error", err)
		}
		w.log.Info("articulum rejected below minimum", "articulum_id", articulum.ID, "survivor_count", len(survivors))
		return
	}

	if err := w.sm.MarkValidated(ctx, articulum.ID); err != nil {
		w.log.Error("mark validated failed", "articulum_id", articulum.ID, "error", err)
		return
	}

	if w.cfg.SkipObjectParsing {
		return
	}
	created, err := w.objectTasks.EnqueueForSurvivors(ctx, articulum.ID, survivors)
	if err != nil {
		w.log.Error("failed to enqueue object tasks", "articulum_id", articulum.ID, "error", err)
		return
	}
	w.log.Info("articulum validated", "articulum_id", articulum.ID, "survivor_count", len(survivors), "object_tasks_created", created)
}
