package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/avitoscout/orchestrator/internal/blobstore"
	"github.com/avitoscout/orchestrator/internal/browserdriver"
	"github.com/avitoscout/orchestrator/internal/config"
	"github.com/avitoscout/orchestrator/internal/db"
	"github.com/avitoscout/orchestrator/internal/eventbus"
	"github.com/avitoscout/orchestrator/internal/logging"
	"github.com/avitoscout/orchestrator/internal/proxypool"
	"github.com/avitoscout/orchestrator/internal/repos"
	"github.com/avitoscout/orchestrator/internal/tasks/catalogtasks"
	"github.com/avitoscout/orchestrator/internal/tasks/objecttasks"
	"github.com/avitoscout/orchestrator/internal/worker/browserworker"
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

	proxyRepo := repos.NewProxyRepo(gdb)
	listingRepo := repos.NewListingRepo(gdb)
	objectDataRepo := repos.NewObjectDataRepo(gdb)
	catalogTaskRepo := repos.NewCatalogTaskRepo(gdb)
	objectTaskRepo := repos.NewObjectTaskRepo(gdb)

	conn, err := grpc.NewClient(cfg.BrowserDriverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal("failed to dial browser driver", "addr", cfg.BrowserDriverAddr, "error", err)
	}
	defer conn.Close()
	driver := browserdriver.NewGRPCClient(conn)

	var bus *eventbus.Bus
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		bus = eventbus.New(cfg.RedisAddr, "", 0, log)
		defer bus.Close()
	}

	proxies := proxypool.New(proxyRepo, log)
	if bus != nil {
		proxies.WithEventBus(bus)
	}

	catalogTasks := catalogtasks.New(catalogTaskRepo, log)
	objectTasks := objecttasks.New(objectTaskRepo, log)

	workerCfg := browserworker.Config{
		WorkerID:          id,
		CatalogBufferSize: cfg.CatalogBufferSize,
		CatalogMaxPages:   cfg.CatalogMaxPages,
		RotationBudget:    cfg.RotationBudget,
		WrongPageLimit:    5,
		HeartbeatInterval: time.Duration(cfg.HeartbeatUpdateInterval) * time.Second,
		ProxyWaitTimeout:  cfg.ProxyWaitTimeout,
		IdleSleep:         2 * time.Second,
	}

	w := browserworker.New(workerCfg, log, driver, proxies, listingRepo, objectDataRepo, catalogTasks, objectTasks)

	if strings.TrimSpace(cfg.BlobBucketName) != "" {
		store, err := blobstore.NewFromEnv(context.Background(), log)
		if err != nil {
			log.Warn("blob store unavailable, listing images will not be persisted", "error", err)
		} else {
			w.WithImageStore(store)
		}
	}

	log.Info("browser worker starting", "worker_id", id, "driver_addr", cfg.BrowserDriverAddr)
	if err := w.Run(context.Background()); err != nil {
		log.Fatal("browser worker exited with error", "error", err)
	}
}
