// Package reparse is a Temporal-driven alternative to the orchestrator's
// plain ticker-based seed_reparse_tasks producer (internal/orchestrator/
// reparse.go), for deployments that already run Temporal for durable
// scheduling and want seed_reparse_tasks survivable across orchestrator
// restarts. The workflow is a single recurring
// tick-sleep-continue-as-new loop with no signals and no waiting state:
// seed_reparse_tasks is one fixed operation, not a pluggable job type.
package reparse

const (
	WorkflowName = "seed_reparse_tasks"
	ActivityName = "seed_reparse_tasks_tick"
)

// TickResult reports one pass of the reparse-seeding sweep.
type TickResult struct {
	Created int `json:"created"`
}
