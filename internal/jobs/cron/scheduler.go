package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vendortrack/vendorperf/internal/reconcile"
	"github.com/vendortrack/vendorperf/internal/vendors"
)

// Scheduler runs the nightly batch: reconcile first, then rebuild vendor
// summaries from the repaired population.
type Scheduler struct {
	engine  *reconcile.Engine
	vendors *vendors.Service
	spec    string
}

func NewScheduler(engine *reconcile.Engine, vendorService *vendors.Service) *Scheduler {
	return &Scheduler{
		engine:  engine,
		vendors: vendorService,
		spec:    "0 0 0 * * *", // nightly at 12:00AM
	}
}

// Start initializes cron tasks
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(s.spec, func() {
		s.runNightly()
	})
	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (reconcile + recompute nightly at 12:00AM)")
	c.Start()
}

func (s *Scheduler) runNightly() {
	log.Println("Nightly job started (reconcile + recompute)...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := s.engine.Run(ctx)
	if err != nil {
		log.Printf("Reconcile failed: %v", err)
		return
	}
	log.Printf("Reconcile done: found=%d fixed=%d unresolved=%d",
		report.Found(), report.Fixed(), len(report.Unresolved))

	recompute, err := s.vendors.RecomputeAll(ctx)
	if err != nil {
		log.Printf("Recompute failed: %v", err)
		return
	}
	log.Printf("Recompute done: vendors=%d", recompute.Recomputed)

	log.Println("Nightly job completed successfully at:", time.Now().Format(time.RFC1123))
}
