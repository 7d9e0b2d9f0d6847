package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CatalogListing is one search-result row. Insertions are idempotent on
// AvitoItemID (conflict → do nothing).
type CatalogListing struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ArticulumID uuid.UUID `gorm:"type:uuid;not null;index"`
	AvitoItemID string    `gorm:"uniqueIndex;not null"`

	Title        string   `gorm:"not null;default:''"`
	Price        *float64
	Snippet      string `gorm:"default:''"`
	SellerName   string `gorm:"default:''"`
	SellerReviews *int

	// ImageKeys holds blob-store keys for listing thumbnails re-hosted
	// through internal/blobstore, or the upstream thumbnail URLs when the
	// browser worker runs without a blob store (supplemental field, written
	// by internal/worker/browserworker).
	ImageKeys datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (CatalogListing) TableName() string { return "catalog_listings" }

// ObjectData is append-only: every successful detail parse creates a new
// row with ParsedAt, supporting historical view-count-delta analytics.
type ObjectData struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	ArticulumID uuid.UUID `gorm:"type:uuid;not null;index"`
	AvitoItemID string    `gorm:"not null;index"`

	Title          string `gorm:"not null;default:''"`
	Price          *float64
	Characteristics datatypes.JSONMap `gorm:"type:jsonb"`
	Description    string            `gorm:"default:''"`

	ViewCount      *int
	ViewCountDelta *int

	ParsedAt time.Time `gorm:"not null;index"`
}

func (ObjectData) TableName() string { return "object_data" }
