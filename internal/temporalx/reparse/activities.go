package reparse

import (
	"context"
	"fmt"
	"time"

	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
)

// Activities bundles the repos/managers seed_reparse_tasks needs, mirroring
// jobrun.Activities's "dependencies as struct fields registered once"
// shape.
type Activities struct {
	Log           *logging.Logger
	ObjectData    repos.ObjectDataRepo
	ReparseFilter repos.ReparseFilterRepo
	ObjectTasks   *objecttasks.Manager
	MinAge        time.Duration
	BatchSize     int
}

// Tick runs one pass: list object_data rows older than MinAge, keep the
// ones the reparse filter tables allow, and enqueue an object_task for
// each. It is the same logic as orchestrator.seedReparseOnce, expressed
// as a Temporal activity so the schedule survives orchestrator restarts.
func (a *Activities) Tick(ctx context.Context) (TickResult, error) {
	if a == nil || a.ObjectData == nil || a.ReparseFilter == nil || a.ObjectTasks == nil {
		return TickResult{}, fmt.Errorf("reparse: activities not configured")
	}

	candidates, err := a.ObjectData.EligibleForReparse(ctx, a.MinAge, a.BatchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("reparse: list eligible rows: %w", err)
	}

	created := 0
	for _, row := range candidates {
		articulumAllowed, err := a.ReparseFilter.ArticulumAllowed(ctx, row.ArticulumID.String())
		if err != nil || !articulumAllowed {
			continue
		}
		itemAllowed, err := a.ReparseFilter.ItemAllowed(ctx, row.AvitoItemID)
		if err != nil || !itemAllowed {
			continue
		}
		n, err := a.ObjectTasks.EnqueueForSurvivors(ctx, row.ArticulumID, []string{row.AvitoItemID})
		if err != nil {
			if a.Log != nil {
				a.Log.Warn("reparse tick: failed to enqueue", "articulum_id", row.ArticulumID, "item", row.AvitoItemID, "error", err)
			}
			continue
		}
		created += n
	}
	return TickResult{Created: created}, nil
}
