package reparse

import (
	"time"

	"go.temporal.io/sdk/workflow"
)

const (
	defaultTickInterval = 1 * time.Hour
	continueTickLimit   = 2000
	continueHistoryLimit = 15000
)

// Workflow ticks the reparse-seeding activity on an interval, sleeping
// between ticks and continuing-as-new once the run has accumulated enough
// history — the same tick-sleep-continue-as-new shape as jobrun.Workflow,
// minus its signal channel and waiting_user branch: this loop never waits
// on a human, it only waits on the clock.
func Workflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	})

	ticks := 0
	for {
		ticks++
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityName).Get(ctx, &out); err != nil {
			return err
		}

		if shouldContinueAsNew(ctx, ticks) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}

		if err := workflow.Sleep(ctx, defaultTickInterval); err != nil {
			return err
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, ticks int) bool {
	if ticks >= continueTickLimit {
		return true
	}
	info := workflow.GetInfo(ctx)
	if info == nil {
		return false
	}
	return info.GetCurrentHistoryLength() >= continueHistoryLimit
}
