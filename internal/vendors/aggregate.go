// Package vendors folds the post-reconciliation rating population into
// per-vendor performance summaries and publishes them.
package vendors

import (
	"sort"
	"time"

	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/ratings/score"
	"github.com/vendortrack/vendorperf/internal/vendors/domain"
)

// Thresholds buckets average overall rating into performance tiers. The
// values come from configuration, not from the algorithm.
type Thresholds struct {
	TopMin float64
	MidMin float64
}

// TierFor maps an average overall rating to a tier.
func TierFor(avgOverall *float64, t Thresholds) string {
	switch {
	case avgOverall == nil:
		return domain.TierUnrated
	case *avgOverall >= t.TopMin:
		return domain.TierTop
	case *avgOverall >= t.MidMin:
		return domain.TierMid
	default:
		return domain.TierLow
	}
}

// Aggregate produces one vendor's summary from full population snapshots.
// Only ratings whose project exists and belongs to the vendor count;
// orphaned ratings never reach a summary. The computation is total and
// deterministic: identical inputs yield identical summaries.
func Aggregate(vendorID string, projects []projdomain.Project, ratings []ratingdomain.Rating, t Thresholds, computedAt time.Time) domain.VendorPerformanceSummary {
	s := domain.VendorPerformanceSummary{
		VendorID:   vendorID,
		ComputedAt: computedAt,
	}

	vendorProjects := make(map[string]*projdomain.Project)
	for i := range projects {
		p := &projects[i]
		if p.VendorID == nil || *p.VendorID != vendorID {
			continue
		}
		vendorProjects[p.ID] = p

		s.TotalProjects++
		if p.Status == projdomain.StatusCompleted || p.Status == projdomain.StatusArchived {
			s.CompletedProjects++
		}
		if s.LastProjectAt == nil || p.CreatedAt.After(*s.LastProjectAt) {
			created := p.CreatedAt
			s.LastProjectAt = &created
		}
	}

	// One rating per project: earliest wins, matching the reconciliation
	// retention order, in case aggregation runs before a pass has cleaned
	// up duplicates.
	counted := pickPerProject(ratings, vendorProjects)

	var success, quality, communication, overall meanAcc
	var recommend, onTime, onBudget rateAcc

	for _, rt := range counted {
		s.RatedProjects++
		success.add(intVal(rt.Success))
		quality.add(intVal(rt.Quality))
		communication.add(intVal(rt.Communication))
		overall.add(score.EffectiveOverall(rt))
		recommend.add(rt.Recommend)

		p := vendorProjects[rt.ProjectID]
		onTime.add(p.OnTime)
		onBudget.add(p.OnBudget)
	}

	s.AvgSuccess = success.mean()
	s.AvgQuality = quality.mean()
	s.AvgCommunication = communication.mean()
	s.AvgOverall = overall.mean()
	s.RecommendRate = recommend.rate()
	s.OnTimeRate = onTime.rate()
	s.OnBudgetRate = onBudget.rate()
	s.Tier = TierFor(s.AvgOverall, t)

	return s
}

// VendorIDs returns every distinct vendor referenced by the projects, in
// sorted order for deterministic recomputation.
func VendorIDs(projects []projdomain.Project) []string {
	set := make(map[string]struct{})
	for i := range projects {
		if projects[i].VendorID != nil {
			set[*projects[i].VendorID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func pickPerProject(ratings []ratingdomain.Rating, vendorProjects map[string]*projdomain.Project) []*ratingdomain.Rating {
	byProject := make(map[string]*ratingdomain.Rating)
	for i := range ratings {
		rt := &ratings[i]
		if _, ok := vendorProjects[rt.ProjectID]; !ok {
			continue
		}
		existing, ok := byProject[rt.ProjectID]
		if !ok || earlier(rt, existing) {
			byProject[rt.ProjectID] = rt
		}
	}

	out := make([]*ratingdomain.Rating, 0, len(byProject))
	for _, rt := range byProject {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

func earlier(a, b *ratingdomain.Rating) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.SubRatingCount() != b.SubRatingCount() {
		return a.SubRatingCount() > b.SubRatingCount()
	}
	return a.ID < b.ID
}

// meanAcc averages present values only; each metric has its own denominator.
type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v *float64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.n++
}

func (a *meanAcc) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	m := score.Round2(a.sum / float64(a.n))
	return &m
}

// rateAcc counts true over non-nil; a nil flag joins neither side.
type rateAcc struct {
	trues int
	n     int
}

func (a *rateAcc) add(v *bool) {
	if v == nil {
		return
	}
	a.n++
	if *v {
		a.trues++
	}
}

func (a *rateAcc) rate() *float64 {
	if a.n == 0 {
		return nil
	}
	r := score.Round2(float64(a.trues) / float64(a.n))
	return &r
}

func intVal(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
