package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avitoscout/orchestrator/internal/config"
	"github.com/avitoscout/orchestrator/internal/db"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/llm"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/statemachine"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
	"github.com/avitoscout/orchestrator/internal/validation"
	"github.com/avitoscout/orchestrator/internal/worker/validationworker"
)

func main() {
	workerID := flag.String("worker-id", "", "worker id assigned by the orchestrator")
	flag.Parse()

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

	id := strings.TrimSpace(*workerID)
	if id == "" {
		id = strings.TrimSpace(os.Getenv("WORKER_ID"))
	}
	if id == "" {
		log.Fatal("missing --worker-id / WORKER_ID")
	}

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", "error", err)
	}
	gdb := pg.DB()

	articulums := repos.NewArticulumRepo(gdb)
	listingRepo := repos.NewListingRepo(gdb)
	validationRepo := repos.NewValidationRepo(gdb)
	objectTaskRepo := repos.NewObjectTaskRepo(gdb)

	var bus *eventbus.Bus
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		bus = eventbus.New(cfg.RedisAddr, "", 0, log)
		defer bus.Close()
	}

	sm := statemachine.New(articulums)
	if bus != nil {
		sm.WithEventBus(bus)
	}

	objectTasks := objecttasks.New(objectTaskRepo, log)

	var aiStage *validation.AIStage
	if cfg.EnableAIValidation {
		client, err := llm.NewClient()
		if err != nil {
			log.Warn("AI validation enabled but client construction failed, disabling stage", "error", err)
		} else {
			aiStage = validation.NewAIStage(client, log)
		}
	}

	workerCfg := validationworker.Config{
		WorkerID:          id,
		PollInterval:      2 * time.Second,
		MinValidatedItems: cfg.MinValidatedItems,
		SkipObjectParsing: cfg.SkipObjectParsing,
		Pipeline: validation.PipelineConfig{
			EnablePriceValidation: cfg.EnablePriceFilter,
			MinPrice:              cfg.MinPrice,
			EnableMechanical:      true,
			Mechanical: validation.MechanicalConfig{
				RequireArticulumInText: cfg.RequireArticulum,
				StopWords:              cfg.StopWords,
				MinSellerReviews:       cfg.MinSellerReviews,
				EnableIQRCheck:         true,
			},
			EnableAI: cfg.EnableAIValidation && aiStage != nil,
		},
	}

	w := validationworker.New(workerCfg, log, sm, listingRepo, validationRepo, objectTasks, aiStage)
	if bus != nil {
		w.WithEventBus(bus)
	}

	log.Info("validation worker starting", "worker_id", id, "ai_enabled", workerCfg.Pipeline.EnableAI)
	if err := w.Run(context.Background()); err != nil {
		log.Fatal("validation worker exited with error", "error", err)
	}
}
