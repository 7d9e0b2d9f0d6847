package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avitoscout/orchestrator/internal/config"
	"github.com/avitoscout/orchestrator/internal/db"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/heartbeat"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/observability"
	"github.com/avitoscout/orchestrator/internal/opsapi"
	opsmiddleware "github.com/avitoscout/orchestrator/internal/opsapi/middleware"
	"github.com/avitoscout/orchestrator/internal/orchestrator"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/catalogtasks"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
	"github.com/avitoscout/orchestrator/internal/temporalx"
	"github.com/avitoscout/orchestrator/internal/temporalx/temporalworker"
)

func main() {
	log, err := logging.New(strings.TrimSpace(os.Getenv("LOG_MODE")))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("failed to automigrate postgres", "error", err)
	}
	gdb := pg.DB()

	articulums := repos.NewArticulumRepo(gdb)
	proxies := repos.NewProxyRepo(gdb)
	catalogTaskRepo := repos.NewCatalogTaskRepo(gdb)
	objectTaskRepo := repos.NewObjectTaskRepo(gdb)
	objectDataRepo := repos.NewObjectDataRepo(gdb)
	reparseFilterRepo := repos.NewReparseFilterRepo(gdb)
	workerLeaseRepo := repos.NewWorkerLeaseRepo(gdb)

	var bus *eventbus.Bus
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		bus = eventbus.New(cfg.RedisAddr, "", 0, log)
	}

	registry := prometheus.NewRegistry()
	observability.NewMetrics(registry)
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "avitoscout-orchestrator",
		Environment: strings.TrimSpace(os.Getenv("APP_ENV")),
		Version:     strings.TrimSpace(os.Getenv("APP_VERSION")),
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(ctx)
	}()

	catalogTasks := catalogtasks.New(catalogTaskRepo, log)
	objectTasks := objecttasks.New(objectTaskRepo, log)

	sweeper := heartbeat.New(heartbeat.Config{
		Period:  time.Duration(cfg.HeartbeatUpdateInterval) * time.Second,
		Timeout: time.Duration(cfg.HeartbeatTimeoutSeconds) * time.Second,
	}, log, catalogTaskRepo, objectTaskRepo, proxies, articulums)

	orchCfg := orchestrator.Config{
		TotalBrowserWorkers:    cfg.TotalBrowserWorkers,
		TotalValidationWorkers: cfg.TotalValidationWorkers,
		BrowserWorkerBinary:    envOr("BROWSER_WORKER_BINARY", "./browserworker"),
		ValidationWorkerBinary: envOr("VALIDATION_WORKER_BINARY", "./validationworker"),
		RestartBackoff:         5 * time.Second,
		SeedCatalogInterval:    30 * time.Second,
		SeedCatalogBatchSize:   50,
		ReparseMode:            cfg.ReparseMode,
		SeedReparseInterval:    time.Hour,
		MinReparseInterval:     time.Duration(cfg.MinReparseIntervalHours) * time.Hour,
	}

	orch := orchestrator.New(orchCfg, log, sweeper, catalogTasks, proxies).
		WithWorkerLeases(workerLeaseRepo).
		WithObjectTasks(objectTasks)
	if cfg.ReparseMode && strings.TrimSpace(cfg.TemporalAddress) == "" {
		orch = orch.WithReparseDeps(orchestrator.ReparseDeps{
			ObjectData:    objectDataRepo,
			ReparseFilter: reparseFilterRepo,
			ObjectTasks:   objectTasks,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReparseMode && strings.TrimSpace(cfg.TemporalAddress) != "" {
		if !startTemporalReparseWorker(ctx, log, cfg, objectDataRepo, reparseFilterRepo, objectTasks) {
			orch = orch.WithReparseDeps(orchestrator.ReparseDeps{
				ObjectData:    objectDataRepo,
				ReparseFilter: reparseFilterRepo,
				ObjectTasks:   objectTasks,
			})
		}
	}

	auth := opsmiddleware.NewAuthMiddleware(log, cfg.AdminJWTSecret)
	router := opsapi.NewRouter(opsapi.RouterConfig{
		Auth:            auth,
		Proxies:         proxies,
		CatalogDB:       catalogTaskRepo,
		ObjectDB:        objectTaskRepo,
		Articulums:      articulums,
		WorkerLease:     workerLeaseRepo,
		MetricsRegistry: registry,
	})

	go func() {
		log.Info("ops HTTP API listening", "addr", cfg.OpsHTTPAddr)
		if err := router.Run(cfg.OpsHTTPAddr); err != nil {
			log.Warn("ops HTTP API stopped", "error", err)
		}
	}()

	log.Info("starting orchestrator",
		"browser_workers", cfg.TotalBrowserWorkers,
		"validation_workers", cfg.TotalValidationWorkers,
		"reparse_mode", cfg.ReparseMode,
	)
	if bus != nil {
		defer bus.Close()
	}
	if err := orch.Run(ctx); err != nil {
		log.Fatal("orchestrator exited with error", "error", err)
	}
}

// startTemporalReparseWorker starts the Temporal-backed reparse producer.
// It returns false only when Temporal cannot be dialled, in which case the
// caller wires the plain ticker producer instead.
func startTemporalReparseWorker(
	ctx context.Context,
	log *logging.Logger,
	cfg *config.Config,
	objectData repos.ObjectDataRepo,
	reparseFilter repos.ReparseFilterRepo,
	objectTasks *objecttasks.Manager,
) bool {
	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("failed to dial temporal, falling back to plain ticker producer", "error", err)
		return false
	}
	runner, err := temporalworker.NewRunner(log, tc, objectData, reparseFilter, objectTasks,
		time.Duration(cfg.MinReparseIntervalHours)*time.Hour, 50)
	if err != nil {
		log.Error("failed to build temporal reparse runner", "error", err)
		return true
	}
	if err := runner.Start(ctx); err != nil {
		log.Error("temporal reparse worker failed to start", "error", err)
	}
	return true
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
