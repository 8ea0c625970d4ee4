package domain

import "time"

// Provenance records where a rating came from. Bulk historical loads are
// tagged once at normalization time so downstream passes never need to
// compare rater identities against the sentinel again.
type Provenance string

const (
	ProvenanceLive     Provenance = "live"
	ProvenanceImported Provenance = "imported"
)

// ImportedRaterID is the reserved rater identity used by bulk historical
// imports. Any raw record carrying it is normalized with ProvenanceImported.
const ImportedRaterID = "imported"

// Rating is the canonical evaluation of a project's vendor performance.
// Both legacy shapes (paired project+rating rows and consolidated single
// rows) collapse into this type at the normalization boundary; the shape
// distinction never propagates past it.
type Rating struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"` // required; practical uniqueness key
	VendorID  *string `json:"vendor_id,omitempty"`

	// Sub-ratings on a 1-5 scale. nil means "not scored", never zero.
	Success       *int `json:"success,omitempty"`
	Quality       *int `json:"quality,omitempty"`
	Communication *int `json:"communication,omitempty"`

	// SuppliedOverall is the overall value a rater entered directly. It is
	// retained for audit; aggregation uses the derived value whenever any
	// sub-rating is present.
	SuppliedOverall *float64 `json:"supplied_overall,omitempty"`

	Recommend    *bool  `json:"recommend,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
	PrivateNotes string `json:"private_notes,omitempty"`

	RaterID    string     `json:"rater_id"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Imported reports whether the rating originated from a bulk historical load.
func (r *Rating) Imported() bool {
	return r.Provenance == ProvenanceImported
}

// SubRatingCount returns how many of the three sub-ratings are present.
// Duplicate resolution uses it as the completeness tie-break.
func (r *Rating) SubRatingCount() int {
	n := 0
	if r.Success != nil {
		n++
	}
	if r.Quality != nil {
		n++
	}
	if r.Communication != nil {
		n++
	}
	return n
}
