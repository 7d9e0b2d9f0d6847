// Package statemachine owns articulum lifecycle transitions as atomic
// conditional updates. It is a thin service wrapping
// repos.ArticulumRepo and covers the validation-side edges of the diagram
// below. The catalog-side edges (NEW -> CATALOG_PARSING -> CATALOG_PARSED,
// and the return to NEW) are written by repos.CatalogTaskRepo, and
// VALIDATED -> OBJECT_PARSING by repos.ObjectTaskRepo.Claim, each in the
// same transaction as the task row they belong to.
//
//	NEW -> CATALOG_PARSING -> CATALOG_PARSED -> VALIDATING -> VALIDATED -> OBJECT_PARSING
//	                                                       -> REJECTED_BY_MIN_COUNT
//	                              ^ rollback_to_catalog_parsed
package statemachine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/repos"
)

type StateMachine struct {
	articulums repos.ArticulumRepo
	events     *eventbus.Bus
}

func New(articulums repos.ArticulumRepo) *StateMachine {
	return &StateMachine{articulums: articulums}
}

// WithEventBus attaches an optional event publisher; every transition
// below becomes a best-effort broadcast on top of the database update.
func (sm *StateMachine) WithEventBus(bus *eventbus.Bus) *StateMachine {
	sm.events = bus
	return sm
}

// MarkValidated transitions VALIDATING -> VALIDATED. The caller (validation
// worker) is responsible for creating object_tasks for survivors in the
// same logical step; that lives in internal/tasks/objecttasks since it
// touches a different table.
func (sm *StateMachine) MarkValidated(ctx context.Context, id uuid.UUID) error {
	if err := sm.articulums.Transition(ctx, id, domain.StateValidating, domain.StateValidated); err != nil {
		return fmt.Errorf("mark validated: %w", err)
	}
	if sm.events != nil {
		sm.events.PublishArticulumTransition(ctx, id.String(), string(domain.StateValidating), string(domain.StateValidated))
	}
	return nil
}

// RejectByMinCount transitions VALIDATING -> REJECTED_BY_MIN_COUNT
// (terminal), used when fewer than MIN_VALIDATED_ITEMS items passed every
// enabled stage.
func (sm *StateMachine) RejectByMinCount(ctx context.Context, id uuid.UUID) error {
	if err := sm.articulums.RejectByMinCount(ctx, id); err != nil {
		return fmt.Errorf("reject by min count: %w", err)
	}
	if sm.events != nil {
		sm.events.PublishArticulumTransition(ctx, id.String(), string(domain.StateValidating), string(domain.StateRejectedByMinCount))
	}
	return nil
}

// RollbackToCatalogParsed atomically moves VALIDATING -> CATALOG_PARSED and
// deletes all validation_results for the articulum, used when the LLM
// endpoint is unavailable during AI validation.
func (sm *StateMachine) RollbackToCatalogParsed(ctx context.Context, id uuid.UUID) error {
	if err := sm.articulums.RollbackToCatalogParsed(ctx, id); err != nil {
		return fmt.Errorf("rollback to catalog_parsed: %w", err)
	}
	if sm.events != nil {
		sm.events.PublishAIRollback(ctx, id.String(), "llm endpoint unavailable")
	}
	return nil
}

// ClaimForValidation claims the oldest CATALOG_PARSED articulum and moves
// it to VALIDATING in one transaction.
func (sm *StateMachine) ClaimForValidation(ctx context.Context) (*domain.Articulum, error) {
	row, err := sm.articulums.ClaimForValidation(ctx)
	if err != nil {
		if err == repos.ErrNoTaskAvailable || err == repos.ErrTransitionLost {
			return nil, nil
		}
		return nil, fmt.Errorf("claim articulum for validation: %w", err)
	}
	return row, nil
}
