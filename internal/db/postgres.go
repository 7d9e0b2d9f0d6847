// Package db wires the Postgres connection: a thin PostgresService
// around *gorm.DB, GORM logger configured to ignore record-not-found
// (critical for polling workers), and an AutoMigrateAll for every domain
// model.
package db

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/avitoscout/orchestrator/internal/config"
	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/logging"
)

type PostgresService struct {
	db  *gorm.DB
	log *logging.Logger
}

func NewPostgresService(cfg config.Postgres, log *logging.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	gormLog := gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	serviceLog.Info("connecting to postgres", "host", cfg.Host, "name", cfg.Name)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

// AutoMigrateAll creates/updates every domain table. Order matters only for
// readability; GORM does not enforce FKs here (DisableForeignKeyConstraintWhenMigrating).
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("auto migrating postgres tables")
	err := s.db.AutoMigrate(
		&domain.Articulum{},
		&domain.Proxy{},
		&domain.CatalogTask{},
		&domain.ObjectTask{},
		&domain.CatalogListing{},
		&domain.ObjectData{},
		&domain.ValidationResult{},
		&domain.ReparseFilterArticulum{},
		&domain.ReparseFilterItem{},
		&domain.WorkerLease{},
	)
	if err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }
