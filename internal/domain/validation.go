package domain

import (
	"time"

	"github.com/google/uuid"
)

// ValidationStage is one of the three pipeline stages. An
// item is fully validated iff it has a passed=true row for every enabled
// stage.
type ValidationStage string

const (
	StagePriceFilter ValidationStage = "price_filter"
	StageMechanical  ValidationStage = "mechanical"
	StageAI          ValidationStage = "ai"
)

// ValidationResult is a per-(articulum, item, stage) outcome row.
type ValidationResult struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ArticulumID uuid.UUID       `gorm:"type:uuid;not null;index:idx_validation_results_articulum_stage"`
	AvitoItemID string          `gorm:"not null;index"`
	Stage       ValidationStage `gorm:"type:varchar(32);not null;index:idx_validation_results_articulum_stage"`
	Passed      bool            `gorm:"not null"`
	RejectionReason string      `gorm:"default:''"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (ValidationResult) TableName() string { return "validation_results" }

// ReparseFilterArticulum restricts which articulums are eligible for
// seed_reparse_tasks. Membership-only table.
type ReparseFilterArticulum struct {
	ArticulumID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
}

func (ReparseFilterArticulum) TableName() string { return "reparse_filter_articulums" }

// ReparseFilterItem restricts which avito_item_ids are eligible for
// reparse, independent of articulum-level filtering.
type ReparseFilterItem struct {
	AvitoItemID string    `gorm:"primaryKey"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
}

func (ReparseFilterItem) TableName() string { return "reparse_filter_items" }

// WorkerLease is a purely observational row per live worker process,
// upserted by the orchestrator on spawn/heartbeat. Nothing in the core
// state machine reads it; it exists only to ground the ops status
// endpoint without creating a second coordination channel.
type WorkerLease struct {
	WorkerID   string    `gorm:"primaryKey"`
	Kind       string    `gorm:"not null"` // "browser" | "validation"
	PID        int       `gorm:"not null"`
	StartedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"not null"`
}

func (WorkerLease) TableName() string { return "worker_leases" }
