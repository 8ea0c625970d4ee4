package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/reconcile"
	"github.com/vendortrack/vendorperf/internal/vendors"
	vendordomain "github.com/vendortrack/vendorperf/internal/vendors/domain"
	vendorrepo "github.com/vendortrack/vendorperf/internal/vendors/repository"
)

// store is an in-memory stand-in for the postgres population. Apply mutates
// it the way the transactional delta writer would, so a second pass runs
// over genuinely repaired data.
type store struct {
	mu       sync.Mutex
	projects []projdomain.Project
	ratings  []ratingdomain.Rating
}

func (s *store) Apply(ctx context.Context, delta reconcile.VendorDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(delta.DeleteRatingIDs) > 0 {
		drop := make(map[string]bool, len(delta.DeleteRatingIDs))
		for _, id := range delta.DeleteRatingIDs {
			drop[id] = true
		}
		kept := s.ratings[:0]
		for _, rt := range s.ratings {
			if !drop[rt.ID] {
				kept = append(kept, rt)
			}
		}
		s.ratings = kept
	}

	for i := range s.projects {
		if status, ok := delta.StatusCorrections[s.projects[i].ID]; ok {
			s.projects[i].Status = status
		}
	}
	return nil
}

type projectSource struct{ s *store }

func (p projectSource) ListAll(ctx context.Context) ([]projdomain.Project, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make([]projdomain.Project, len(p.s.projects))
	copy(out, p.s.projects)
	return out, nil
}

type ratingSource struct{ s *store }

func (r ratingSource) ListAll(ctx context.Context) ([]ratingdomain.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]ratingdomain.Rating, len(r.s.ratings))
	copy(out, r.s.ratings)
	return out, nil
}

type summarySink struct {
	stored map[string]vendordomain.VendorPerformanceSummary
}

func (f *summarySink) Upsert(ctx context.Context, s *vendordomain.VendorPerformanceSummary) error {
	if f.stored == nil {
		f.stored = make(map[string]vendordomain.VendorPerformanceSummary)
	}
	f.stored[s.VendorID] = *s
	return nil
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

// TestReconcileThenRecompute drives the nightly batch order end to end over
// a defective population: reconcile repairs it, recompute publishes vendor
// summaries from the repaired state, and a second reconcile pass is clean.
func TestReconcileThenRecompute(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	s := &store{
		projects: []projdomain.Project{
			{ID: "prj-1", Title: "warehouse build", ClientID: "cli-1", VendorID: strp("ven-1"), Status: projdomain.StatusArchived, CreatedAt: base},
			{ID: "prj-2", Title: "fleet rollout", ClientID: "cli-1", VendorID: strp("ven-1"), Status: projdomain.StatusCompleted, CreatedAt: base.Add(24 * time.Hour)},
		},
		ratings: []ratingdomain.Rating{
			{ID: "rat-1", ProjectID: "prj-1", Success: intp(4), Quality: intp(5), Communication: intp(3),
				RaterID: "user-1", Provenance: ratingdomain.ProvenanceLive, CreatedAt: base},
			// duplicate pair from a repeated bulk load, one hour apart
			{ID: "rat-2a", ProjectID: "prj-2", Success: intp(5), Quality: intp(5), Communication: intp(5),
				RaterID: ratingdomain.ImportedRaterID, Provenance: ratingdomain.ProvenanceImported, CreatedAt: base},
			{ID: "rat-2b", ProjectID: "prj-2", Success: intp(1), Quality: intp(1), Communication: intp(1),
				RaterID: ratingdomain.ImportedRaterID, Provenance: ratingdomain.ProvenanceImported, CreatedAt: base.Add(time.Hour)},
			// references a project that was never imported
			{ID: "rat-lost", ProjectID: "PRJ-9999", Success: intp(1), Quality: intp(1), Communication: intp(1),
				RaterID: ratingdomain.ImportedRaterID, Provenance: ratingdomain.ProvenanceImported, CreatedAt: base},
		},
	}

	engine := reconcile.NewEngine(projectSource{s}, ratingSource{s}, s, nil, 48*time.Hour)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sink := &summarySink{}
	cache := vendorrepo.NewCacheRepository(client)
	vendorService := vendors.NewService(projectSource{s}, ratingSource{s}, sink, cache,
		vendors.Thresholds{TopMin: 4.0, MidMin: 3.0})

	report, err := engine.Run(ctx)
	require.NoError(t, err)

	t.Run("first pass repairs the population", func(t *testing.T) {
		assert.Equal(t, []string{"rat-lost"}, report.OrphanedRatingIDs)
		assert.Equal(t, []string{"rat-2b"}, report.DuplicatesDeleted)
		assert.Equal(t, map[string]string{"prj-2": projdomain.StatusArchived}, report.StatusCorrections)
		assert.Empty(t, report.Unresolved)

		ratings, err := ratingSource{s}.ListAll(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(ratings))
		for _, rt := range ratings {
			ids = append(ids, rt.ID)
		}
		assert.Equal(t, []string{"rat-1", "rat-2a", "rat-lost"}, ids,
			"the orphan is reported, never deleted")
	})

	recompute, err := vendorService.RecomputeAll(ctx)
	require.NoError(t, err)

	t.Run("summaries aggregate only the repaired population", func(t *testing.T) {
		assert.Equal(t, []string{"ven-1"}, recompute.VendorIDs,
			"the orphan's phantom project never spawns a vendor")

		summary := sink.stored["ven-1"]
		assert.Equal(t, 2, summary.TotalProjects)
		assert.Equal(t, 2, summary.CompletedProjects)
		assert.Equal(t, 2, summary.RatedProjects)
		require.NotNil(t, summary.AvgOverall)
		assert.Equal(t, 4.5, *summary.AvgOverall,
			"neither the deleted duplicate nor the orphan drags the average")
		assert.Equal(t, vendordomain.TierTop, summary.Tier)
	})

	t.Run("published cache matches the persisted summary", func(t *testing.T) {
		got, err := cache.Get(ctx, "ven-1")
		require.NoError(t, err)
		require.NotNil(t, got)

		stored := sink.stored["ven-1"]
		assert.Equal(t, stored.RatedProjects, got.RatedProjects)
		assert.Equal(t, stored.AvgOverall, got.AvgOverall)
		assert.Equal(t, stored.Tier, got.Tier)
		assert.True(t, stored.ComputedAt.Equal(got.ComputedAt))
	})

	t.Run("second pass is clean apart from orphan reporting", func(t *testing.T) {
		again, err := engine.Run(ctx)
		require.NoError(t, err)

		assert.True(t, again.Clean())
		assert.Equal(t, []string{"rat-lost"}, again.OrphanedRatingIDs,
			"the orphan stays on the report until an operator decides")
	})
}
