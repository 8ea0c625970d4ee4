package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vendortrack/vendorperf/internal/vendors/domain"
)

// SummaryRepository handles PostgreSQL operations for vendor performance
// summaries.
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository creates a new SummaryRepository
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert replaces a vendor's summary wholesale, keyed by vendor_id.
// Summaries are a materialized view: there is no partial patch.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.VendorPerformanceSummary) error {
	const query = `
		INSERT INTO vendor_performance_summaries (
			vendor_id, total_projects, completed_projects, rated_projects,
			avg_success, avg_quality, avg_communication, avg_overall,
			recommend_rate, on_time_rate, on_budget_rate,
			last_project_at, tier, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (vendor_id) DO UPDATE SET
			total_projects = EXCLUDED.total_projects,
			completed_projects = EXCLUDED.completed_projects,
			rated_projects = EXCLUDED.rated_projects,
			avg_success = EXCLUDED.avg_success,
			avg_quality = EXCLUDED.avg_quality,
			avg_communication = EXCLUDED.avg_communication,
			avg_overall = EXCLUDED.avg_overall,
			recommend_rate = EXCLUDED.recommend_rate,
			on_time_rate = EXCLUDED.on_time_rate,
			on_budget_rate = EXCLUDED.on_budget_rate,
			last_project_at = EXCLUDED.last_project_at,
			tier = EXCLUDED.tier,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		s.VendorID, s.TotalProjects, s.CompletedProjects, s.RatedProjects,
		s.AvgSuccess, s.AvgQuality, s.AvgCommunication, s.AvgOverall,
		s.RecommendRate, s.OnTimeRate, s.OnBudgetRate,
		s.LastProjectAt, s.Tier, s.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vendor summary: %w", err)
	}
	return nil
}

// GetByVendorID retrieves a summary, or nil when the vendor has never been
// aggregated.
func (r *SummaryRepository) GetByVendorID(ctx context.Context, vendorID string) (*domain.VendorPerformanceSummary, error) {
	const query = `
		SELECT vendor_id, total_projects, completed_projects, rated_projects,
		       avg_success, avg_quality, avg_communication, avg_overall,
		       recommend_rate, on_time_rate, on_budget_rate,
		       last_project_at, tier, computed_at
		FROM vendor_performance_summaries
		WHERE vendor_id = $1
	`

	var s domain.VendorPerformanceSummary
	err := r.db.QueryRowContext(ctx, query, vendorID).Scan(
		&s.VendorID, &s.TotalProjects, &s.CompletedProjects, &s.RatedProjects,
		&s.AvgSuccess, &s.AvgQuality, &s.AvgCommunication, &s.AvgOverall,
		&s.RecommendRate, &s.OnTimeRate, &s.OnBudgetRate,
		&s.LastProjectAt, &s.Tier, &s.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor summary: %w", err)
	}
	return &s, nil
}
