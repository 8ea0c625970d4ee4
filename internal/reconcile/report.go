package reconcile

import "time"

// DefectClass labels one category of structural defect found by a pass.
type DefectClass string

const (
	DefectOrphanedReference  DefectClass = "orphaned_reference"
	DefectDuplicateRating    DefectClass = "duplicate_rating"
	DefectAmbiguousDuplicate DefectClass = "ambiguous_duplicate"
	DefectInconsistentState  DefectClass = "inconsistent_state"

	// ActionOperatorPurge is not a defect: it records the explicit audited
	// purge of a project and its dependent ratings.
	ActionOperatorPurge DefectClass = "operator_purge"
)

// Report is the structured result of one reconciliation pass. Expected
// defect classes come back as counts and identifiers, not errors.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ProjectsSeen int `json:"projects_seen"`
	RatingsSeen  int `json:"ratings_seen"`

	// OrphanedRatingIDs lists ratings whose project reference does not
	// resolve. They are excluded from aggregation but never auto-deleted.
	OrphanedRatingIDs []string `json:"orphaned_rating_ids"`

	// DuplicatesDeleted lists rating ids removed by duplicate resolution.
	DuplicatesDeleted []string `json:"duplicates_deleted"`

	// StatusCorrections maps project id to the corrected status.
	StatusCorrections map[string]string `json:"status_corrections"`

	// Unresolved lists defects a pass could not repair automatically.
	// They are left untouched for an operator to decide.
	Unresolved []UnresolvedDefect `json:"unresolved"`
}

// UnresolvedDefect describes one defect surfaced to the operator queue.
type UnresolvedDefect struct {
	Class     DefectClass `json:"class"`
	ProjectID string      `json:"project_id,omitempty"`
	RatingIDs []string    `json:"rating_ids,omitempty"`
	Detail    string      `json:"detail"`
}

// Found counts every defect the pass observed.
func (r *Report) Found() int {
	return len(r.OrphanedRatingIDs) + len(r.DuplicatesDeleted) +
		len(r.StatusCorrections) + len(r.Unresolved)
}

// Fixed counts the defects the pass repaired.
func (r *Report) Fixed() int {
	return len(r.DuplicatesDeleted) + len(r.StatusCorrections)
}

// Clean reports whether the pass changed nothing. A second run directly
// after a successful one must be clean apart from orphan reporting.
func (r *Report) Clean() bool {
	return len(r.DuplicatesDeleted) == 0 && len(r.StatusCorrections) == 0
}

// AuditEvent is one logged repair or finding, persisted for auditability.
type AuditEvent struct {
	ID         string      `json:"id"`
	RunID      string      `json:"run_id"`
	Class      DefectClass `json:"class"`
	EntityType string      `json:"entity_type"` // "project" or "rating"
	EntityID   string      `json:"entity_id"`
	Detail     string      `json:"detail"`
	CreatedAt  time.Time   `json:"created_at"`
}
