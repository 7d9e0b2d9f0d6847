package domain

import (
	"time"

	"github.com/google/uuid"
)

// Proxy is one upstream HTTP(S) proxy in the pool. The database is the
// sole coordinator of occupancy; see internal/proxypool for the atomic
// acquire/release/error operations.
type Proxy struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Label  string    `gorm:"not null;default:''"`
	Host   string    `gorm:"not null"`
	Port   int       `gorm:"not null"`
	Username string  `gorm:"default:''"`
	Password string  `gorm:"default:''"`

	IsBlocked bool `gorm:"not null;default:false;index"`
	IsInUse   bool `gorm:"not null;default:false;index"`

	WorkerID *string `gorm:"index"`

	ConsecutiveErrors int        `gorm:"not null;default:0"`
	LastErrorAt       *time.Time

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (Proxy) TableName() string { return "proxies" }

func (p *Proxy) Address() string {
	return p.Host
}
