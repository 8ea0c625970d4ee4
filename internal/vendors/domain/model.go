package domain

import "time"

// Performance tiers derived from average overall rating.
const (
	TierTop     = "top"
	TierMid     = "mid"
	TierLow     = "low"
	TierUnrated = "unrated"
)

// VendorPerformanceSummary is the materialized per-vendor view the
// aggregator produces. It is derived, never authoritative: discard and
// rebuild it from the rating population at any time.
type VendorPerformanceSummary struct {
	VendorID string `json:"vendor_id"`

	TotalProjects     int `json:"total_projects"`
	CompletedProjects int `json:"completed_projects"`
	RatedProjects     int `json:"rated_projects"`

	// Averages carry their own denominators: a metric only averages over
	// ratings where the field is present. nil means no data at all.
	AvgSuccess       *float64 `json:"avg_success,omitempty"`
	AvgQuality       *float64 `json:"avg_quality,omitempty"`
	AvgCommunication *float64 `json:"avg_communication,omitempty"`
	AvgOverall       *float64 `json:"avg_overall,omitempty"`

	RecommendRate *float64 `json:"recommend_rate,omitempty"`
	OnTimeRate    *float64 `json:"on_time_rate,omitempty"`
	OnBudgetRate  *float64 `json:"on_budget_rate,omitempty"`

	LastProjectAt *time.Time `json:"last_project_at,omitempty"`
	Tier          string     `json:"tier"`
	ComputedAt    time.Time  `json:"computed_at"`
}
