// Package normalize collapses the two historical rating shapes into the
// canonical Rating type. The paired shape keeps project and rating fields in
// separate rows joined by project id; the consolidated shape carries both on
// one row. The distinction is a migration artifact and stops here.
package normalize

import (
	"strings"
	"time"

	"github.com/vendortrack/vendorperf/internal/ratings/domain"
)

// RawRatingRow mirrors a row from the legacy rating table, or the rating
// columns of a consolidated row. Nullable columns stay pointers so missing
// sub-ratings are preserved as nil, never coerced to zero.
type RawRatingRow struct {
	ID            string
	ProjectID     string
	VendorID      *string
	Success       *int
	Quality       *int
	Communication *int
	Overall       *float64 // directly supplied by the rater, if any
	Recommend     *bool
	Feedback      string
	PrivateNotes  string
	RaterID       string
	CreatedAt     time.Time
}

// RawProjectRow mirrors the project columns that accompany a rating in the
// consolidated shape.
type RawProjectRow struct {
	ID        string
	Title     string
	ClientID  string
	VendorID  *string
	Status    string
	CreatedAt time.Time
	Deadline  *time.Time
	OnTime    *bool
	OnBudget  *bool
}

// Record is one raw input record in either shape. Exactly one of the two
// fields is set.
type Record struct {
	// Paired is a standalone rating row that names its project by id.
	Paired *RawRatingRow
	// Consolidated is a single row carrying both project and rating fields.
	Consolidated *ConsolidatedRow
}

// ConsolidatedRow is the single-row shape produced by the consolidated table
// and by bulk import spreadsheets.
type ConsolidatedRow struct {
	Project RawProjectRow
	Rating  RawRatingRow
}

// Normalize converts one raw record to a canonical Rating. It fails with a
// MalformedRecordError when the record does not name its project; every
// rating must carry a project reference even if that project later proves
// not to exist.
func Normalize(rec Record) (*domain.Rating, error) {
	switch {
	case rec.Paired != nil:
		return fromRow(*rec.Paired, nil)
	case rec.Consolidated != nil:
		row := rec.Consolidated
		raw := row.Rating
		if raw.ProjectID == "" {
			raw.ProjectID = row.Project.ID
		}
		return fromRow(raw, row.Project.VendorID)
	default:
		return nil, &domain.MalformedRecordError{Reason: "empty record"}
	}
}

// NormalizeBatch normalizes every record it can and collects the failures.
// Malformed records never abort the batch.
func NormalizeBatch(records []Record) ([]domain.Rating, []error) {
	out := make([]domain.Rating, 0, len(records))
	var errs []error

	for _, rec := range records {
		r, err := Normalize(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, *r)
	}
	return out, errs
}

func fromRow(raw RawRatingRow, projectVendor *string) (*domain.Rating, error) {
	if strings.TrimSpace(raw.ProjectID) == "" {
		return nil, &domain.MalformedRecordError{
			RecordID: raw.ID,
			Reason:   "missing project reference",
		}
	}

	vendor := raw.VendorID
	if vendor == nil {
		vendor = projectVendor
	}

	provenance := domain.ProvenanceLive
	if raw.RaterID == domain.ImportedRaterID {
		provenance = domain.ProvenanceImported
	}

	return &domain.Rating{
		ID:              raw.ID,
		ProjectID:       raw.ProjectID,
		VendorID:        vendor,
		Success:         raw.Success,
		Quality:         raw.Quality,
		Communication:   raw.Communication,
		SuppliedOverall: raw.Overall,
		Recommend:       raw.Recommend,
		Feedback:        raw.Feedback,
		PrivateNotes:    raw.PrivateNotes,
		RaterID:         raw.RaterID,
		Provenance:      provenance,
		CreatedAt:       raw.CreatedAt,
	}, nil
}
