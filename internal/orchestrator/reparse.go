package orchestrator

import (
	"context"
	"time"

	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
)

// ReparseDeps wires the extra collaborators seed_reparse_tasks needs; kept
// separate from Config/New so REPARSE_MODE=false deployments never have to
// construct them.
type ReparseDeps struct {
	ObjectData  repos.ObjectDataRepo
	ReparseFilter repos.ReparseFilterRepo
	ObjectTasks *objecttasks.Manager
}

func (o *Orchestrator) WithReparseDeps(deps ReparseDeps) *Orchestrator {
	o.reparse = &deps
	return o
}

// runSeedReparseTasks is seed_reparse_tasks: create
// object_tasks from past object_data rows older than
// MIN_REPARSE_INTERVAL_HOURS, filtered by the reparse filter tables.
func (o *Orchestrator) runSeedReparseTasks(ctx context.Context) error {
	if o.reparse == nil {
		o.log.Warn("reparse mode enabled but no ReparseDeps wired, skipping producer")
		return nil
	}
	ticker := time.NewTicker(o.cfg.SeedReparseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.seedReparseOnce(ctx)
		}
	}
}

func (o *Orchestrator) seedReparseOnce(ctx context.Context) {
	candidates, err := o.reparse.ObjectData.EligibleForReparse(ctx, o.cfg.MinReparseInterval, o.cfg.SeedCatalogBatchSize)
	if err != nil {
		o.log.Warn("seed_reparse_tasks: failed to list eligible rows", "error", err)
		return
	}

	created := 0
	for _, row := range candidates {
		articulumAllowed, err := o.reparse.ReparseFilter.ArticulumAllowed(ctx, row.ArticulumID.String())
		if err != nil || !articulumAllowed {
			continue
		}
		itemAllowed, err := o.reparse.ReparseFilter.ItemAllowed(ctx, row.AvitoItemID)
		if err != nil || !itemAllowed {
			continue
		}
		n, err := o.reparse.ObjectTasks.EnqueueForSurvivors(ctx, row.ArticulumID, []string{row.AvitoItemID})
		if err != nil {
			o.log.Warn("seed_reparse_tasks: failed to enqueue", "articulum_id", row.ArticulumID, "item", row.AvitoItemID, "error", err)
			continue
		}
		created += n
	}
	if created > 0 {
		o.log.Info("seeded reparse object_tasks", "count", created)
	}
}
