package vendors

import (
	"context"
	"fmt"
	"log"
	"time"

	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/vendors/domain"
)

// ProjectSource is the read side of the project boundary.
type ProjectSource interface {
	ListAll(ctx context.Context) ([]projdomain.Project, error)
}

// RatingSource is the read side of the rating boundary.
type RatingSource interface {
	ListAll(ctx context.Context) ([]ratingdomain.Rating, error)
}

// SummarySink persists a full summary, replacing any previous one for the
// vendor wholesale.
type SummarySink interface {
	Upsert(ctx context.Context, s *domain.VendorPerformanceSummary) error
}

// SummaryCache publishes summaries for fast reads. Publication failures
// are logged, not fatal: the cache is rebuildable.
type SummaryCache interface {
	Publish(ctx context.Context, s *domain.VendorPerformanceSummary) error
}

// RecomputeReport is the structured result of a recomputation trigger.
type RecomputeReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	VendorIDs  []string  `json:"vendor_ids"`
	Recomputed int       `json:"recomputed"`
}

// Service recomputes vendor summaries from a consistent snapshot.
type Service struct {
	projects   ProjectSource
	ratings    RatingSource
	sink       SummarySink
	cache      SummaryCache // optional
	thresholds Thresholds
	now        func() time.Time
}

func NewService(projects ProjectSource, ratings RatingSource, sink SummarySink, cache SummaryCache, thresholds Thresholds) *Service {
	return &Service{
		projects:   projects,
		ratings:    ratings,
		sink:       sink,
		cache:      cache,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecomputeAll rebuilds every vendor's summary. Safe to re-trigger: the
// same rating population always produces the same summaries.
func (s *Service) RecomputeAll(ctx context.Context) (*RecomputeReport, error) {
	report := &RecomputeReport{StartedAt: s.now()}

	projects, ratings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	report.VendorIDs = VendorIDs(projects)
	for _, vendorID := range report.VendorIDs {
		if _, err := s.recompute(ctx, vendorID, projects, ratings); err != nil {
			return report, err
		}
		report.Recomputed++
	}

	report.FinishedAt = s.now()
	log.Printf("[vendors] recompute vendors=%d", report.Recomputed)
	return report, nil
}

// RecomputeVendor rebuilds a single vendor's summary.
func (s *Service) RecomputeVendor(ctx context.Context, vendorID string) (*domain.VendorPerformanceSummary, error) {
	projects, ratings, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return s.recompute(ctx, vendorID, projects, ratings)
}

func (s *Service) snapshot(ctx context.Context) ([]projdomain.Project, []ratingdomain.Rating, error) {
	projects, err := s.projects.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("recompute snapshot projects: %w", err)
	}
	ratings, err := s.ratings.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("recompute snapshot ratings: %w", err)
	}
	return projects, ratings, nil
}

func (s *Service) recompute(ctx context.Context, vendorID string, projects []projdomain.Project, ratings []ratingdomain.Rating) (*domain.VendorPerformanceSummary, error) {
	summary := Aggregate(vendorID, projects, ratings, s.thresholds, s.now())

	if err := s.sink.Upsert(ctx, &summary); err != nil {
		return nil, fmt.Errorf("persist summary for vendor %s: %w", vendorID, err)
	}

	if s.cache != nil {
		if err := s.cache.Publish(ctx, &summary); err != nil {
			log.Printf("[vendors] vendor=%s cache publish failed: %v", vendorID, err)
		}
	}
	return &summary, nil
}
