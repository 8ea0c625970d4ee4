package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/vendortrack/vendorperf/config"
	"github.com/vendortrack/vendorperf/internal/bootstrap"
	cronjob "github.com/vendortrack/vendorperf/internal/jobs/cron"
	"github.com/vendortrack/vendorperf/internal/projects"
	"github.com/vendortrack/vendorperf/internal/ratings"
	"github.com/vendortrack/vendorperf/internal/reconcile"
	reconcilerepo "github.com/vendortrack/vendorperf/internal/reconcile/repository"
	"github.com/vendortrack/vendorperf/internal/storage/postgres"
	"github.com/vendortrack/vendorperf/internal/vendors"
	vendorrepo "github.com/vendortrack/vendorperf/internal/vendors/repository"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: worker reconcile|recompute|advance|schedule")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&cfg.Database)})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("db (sql): %v", err)
	}
	defer sqlDB.Close()

	projectRepo := projects.NewRepo(pool)
	ratingRepo := ratings.NewRepo(pool)
	auditRepo := reconcilerepo.NewAuditRepository(sqlDB)

	engine := reconcile.NewEngine(
		projectRepo, ratingRepo,
		reconcilerepo.NewDeltaWriter(pool),
		auditRepo,
		cfg.Reconcile.ImportWindow,
	)

	var cache vendors.SummaryCache
	if redisClient, err := bootstrap.OpenRedis(ctx, cfg.Redis); err != nil {
		log.Printf("redis unavailable, skipping summary publication: %v", err)
	} else {
		defer redisClient.Close()
		cache = vendorrepo.NewCacheRepository(redisClient)
	}

	vendorService := vendors.NewService(
		projectRepo, ratingRepo,
		vendorrepo.NewSummaryRepository(sqlDB),
		cache,
		vendors.Thresholds{TopMin: cfg.Reconcile.TierTopMin, MidMin: cfg.Reconcile.TierMidMin},
	)

	switch os.Args[1] {
	case "reconcile":
		report, err := engine.Run(ctx)
		if err != nil {
			log.Fatalf("reconcile: %v", err)
		}
		printJSON(report)

	case "recompute":
		report, err := vendorService.RecomputeAll(ctx)
		if err != nil {
			log.Fatalf("recompute: %v", err)
		}
		printJSON(report)

	case "advance":
		driver := projects.NewDriver(projectRepo, ratingRepo)
		res, err := driver.Advance(ctx, time.Now().UTC())
		if err != nil {
			log.Fatalf("advance: %v", err)
		}
		printJSON(res)

	case "schedule":
		cronjob.NewScheduler(engine, vendorService).Start()
		select {} // cron owns the process from here

	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}
