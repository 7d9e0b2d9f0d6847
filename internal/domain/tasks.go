package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is shared between CatalogTask and ObjectTask.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskInvalid    TaskStatus = "invalid"
)

// CatalogTask drives one search-result-page parse for one articulum.
// Invariant: at most one task per articulum in `processing`; worker_id
// non-null iff status=processing.
type CatalogTask struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ArticulumID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status        TaskStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_catalog_tasks_status_heartbeat"`
	CheckpointPage int       `gorm:"not null;default:1"`
	WorkerID      *string    `gorm:"index"`
	HeartbeatAt   *time.Time `gorm:"index:idx_catalog_tasks_status_heartbeat"`
	FailureReason string     `gorm:"default:''"`
	WrongPageCount int       `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (CatalogTask) TableName() string { return "catalog_tasks" }

// ObjectTask drives one listing-detail-page parse. A catalog listing may
// produce at most one object_task (uniqueness by avito_item_id among
// non-terminal tasks is enforced at the repo layer, not by a DB constraint,
// since terminal rows must remain for history).
type ObjectTask struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ArticulumID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	AvitoItemID   string     `gorm:"not null;index"`
	Status        TaskStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_object_tasks_status_heartbeat"`
	WorkerID      *string    `gorm:"index"`
	HeartbeatAt   *time.Time `gorm:"index:idx_object_tasks_status_heartbeat"`
	FailureReason string     `gorm:"default:''"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (ObjectTask) TableName() string { return "object_tasks" }
