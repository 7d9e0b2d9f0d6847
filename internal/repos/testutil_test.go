package repos

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avitoscout/orchestrator/internal/domain"
)

// newTestDB opens a fresh in-memory sqlite database and migrates every
// model a repo test in this package needs. Postgres-only surface (raw
// FOR UPDATE SKIP LOCKED claims) is not covered by this package's tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Articulum{},
		&domain.Proxy{},
		&domain.ValidationResult{},
		&domain.WorkerLease{},
	))
	return db
}
