// Package domain holds the GORM-mapped persistent types for the
// orchestration core: articulums, proxies, task queues, listings, and
// validation outcomes. The database is the single source of truth;
// every type here is a thin column mapping, never a place for business
// logic — that lives in internal/statemachine, internal/proxypool, and
// internal/tasks.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArticulumState is the enum driving the articulum lifecycle state machine.
type ArticulumState string

const (
	StateNew                  ArticulumState = "NEW"
	StateCatalogParsing        ArticulumState = "CATALOG_PARSING"
	StateCatalogParsed         ArticulumState = "CATALOG_PARSED"
	StateValidating            ArticulumState = "VALIDATING"
	StateValidated             ArticulumState = "VALIDATED"
	StateObjectParsing         ArticulumState = "OBJECT_PARSING"
	StateRejectedByMinCount    ArticulumState = "REJECTED_BY_MIN_COUNT"
)

// Articulum is a part number supplied as input; the unit of work that flows
// through the pipeline. Created externally in state NEW, mutated only
// through the state machine, never deleted by the core.
type Articulum struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Articulum       string         `gorm:"uniqueIndex;not null"`
	State           ArticulumState `gorm:"type:varchar(32);not null;index;default:'NEW'"`
	StateUpdatedAt  time.Time      `gorm:"not null;autoCreateTime"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"not null;autoUpdateTime"`
}

func (Articulum) TableName() string { return "articulums" }
