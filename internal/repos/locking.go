package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withLocking attaches SELECT ... FOR UPDATE to tx, for the single-row
// claims that aren't already expressed as raw SQL. SQLite (used by the
// package's test suite) has no row-locking syntax, so the clause is only
// attached against Postgres; elsewhere tx is returned unchanged.
func withLocking(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() != "postgres" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
