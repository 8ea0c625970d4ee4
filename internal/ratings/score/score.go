package score

import (
	"math"

	"github.com/vendortrack/vendorperf/internal/ratings/domain"
)

// Completeness classifies a project's review state. It is derived on every
// read from the project and its rating, never stored, so it cannot drift
// from the actual rating content.
type Completeness string

const (
	NeedsReview Completeness = "needs_review"
	Incomplete  Completeness = "incomplete"
	Complete    Completeness = "complete"
)

// Overall derives the overall rating from the three sub-ratings: the mean of
// whichever values are present, rounded to one decimal place (half up).
// Partial information still yields a usable signal; nil means no signal.
func Overall(success, quality, communication *int) *float64 {
	sum, n := 0, 0
	for _, v := range []*int{success, quality, communication} {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}

	mean := float64(sum) / float64(n)
	rounded := roundHalfUp(mean, 1)
	return &rounded
}

// EffectiveOverall returns the overall value aggregation should use. The
// derived mean wins whenever at least one sub-rating is present; the rater's
// directly supplied overall is an audit field and only fills in when nothing
// is derivable.
func EffectiveOverall(r *domain.Rating) *float64 {
	if derived := Overall(r.Success, r.Quality, r.Communication); derived != nil {
		return derived
	}
	return r.SuppliedOverall
}

// Classify maps (rating presence, sub-rating presence) to a review state.
// A project with no rating needs review; a rating missing any sub-rating is
// incomplete; all three present is complete.
func Classify(r *domain.Rating) Completeness {
	if r == nil {
		return NeedsReview
	}
	if r.SubRatingCount() < 3 {
		return Incomplete
	}
	return Complete
}

func roundHalfUp(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Floor(v*shift+0.5) / shift
}

// Round2 rounds to two decimal places (half up). Vendor summaries round
// every average through it so recomputation is byte-identical.
func Round2(v float64) float64 {
	return roundHalfUp(v, 2)
}
