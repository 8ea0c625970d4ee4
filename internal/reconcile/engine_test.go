package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }
func timep(v time.Time) *time.Time {
	return &v
}

// population is an in-memory stand-in for the project and rating stores.
// Apply mutates it the way the pgx delta writer mutates postgres, so
// re-running the engine over it exercises idempotence for real.
type population struct {
	projects []projdomain.Project
	ratings  []ratingdomain.Rating

	applied []VendorDelta
	failFor string // vendor id whose Apply fails
}

func (p *population) ListAllProjects(ctx context.Context) ([]projdomain.Project, error) {
	out := make([]projdomain.Project, len(p.projects))
	copy(out, p.projects)
	return out, nil
}

func (p *population) ListAllRatings(ctx context.Context) ([]ratingdomain.Rating, error) {
	out := make([]ratingdomain.Rating, len(p.ratings))
	copy(out, p.ratings)
	return out, nil
}

func (p *population) Apply(ctx context.Context, delta VendorDelta) error {
	if p.failFor != "" && delta.VendorID == p.failFor {
		return errors.New("connection reset by peer")
	}
	p.applied = append(p.applied, delta)

	doomed := make(map[string]bool, len(delta.DeleteRatingIDs))
	for _, id := range delta.DeleteRatingIDs {
		doomed[id] = true
	}
	kept := p.ratings[:0]
	for _, rt := range p.ratings {
		if !doomed[rt.ID] {
			kept = append(kept, rt)
		}
	}
	p.ratings = kept

	for i := range p.projects {
		if status, ok := delta.StatusCorrections[p.projects[i].ID]; ok {
			p.projects[i].Status = status
		}
	}
	return nil
}

type projectSource struct{ p *population }

func (s projectSource) ListAll(ctx context.Context) ([]projdomain.Project, error) {
	return s.p.ListAllProjects(ctx)
}

type ratingSource struct{ p *population }

func (s ratingSource) ListAll(ctx context.Context) ([]ratingdomain.Rating, error) {
	return s.p.ListAllRatings(ctx)
}

func newTestEngine(p *population) *Engine {
	e := NewEngine(projectSource{p}, ratingSource{p}, p, nil, 48*time.Hour)
	e.now = func() time.Time { return base.Add(90 * 24 * time.Hour) }
	return e
}

func project(id, vendor, status string) projdomain.Project {
	return projdomain.Project{
		ID:        id,
		Title:     "engagement " + id,
		ClientID:  "cli-1",
		VendorID:  strp(vendor),
		Status:    status,
		CreatedAt: base,
	}
}

func imported(id, projectID string, createdAt time.Time, subs ...int) ratingdomain.Rating {
	rt := ratingdomain.Rating{
		ID:         id,
		ProjectID:  projectID,
		RaterID:    ratingdomain.ImportedRaterID,
		Provenance: ratingdomain.ProvenanceImported,
		CreatedAt:  createdAt,
	}
	fill(&rt, subs)
	return rt
}

func live(id, projectID string, createdAt time.Time, subs ...int) ratingdomain.Rating {
	rt := ratingdomain.Rating{
		ID:         id,
		ProjectID:  projectID,
		RaterID:    "user-1",
		Provenance: ratingdomain.ProvenanceLive,
		CreatedAt:  createdAt,
	}
	fill(&rt, subs)
	return rt
}

func fill(rt *ratingdomain.Rating, subs []int) {
	if len(subs) > 0 {
		rt.Success = intp(subs[0])
	}
	if len(subs) > 1 {
		rt.Quality = intp(subs[1])
	}
	if len(subs) > 2 {
		rt.Communication = intp(subs[2])
	}
}

func TestEngine_OrphanedRatings(t *testing.T) {
	p := &population{
		projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
		ratings: []ratingdomain.Rating{
			live("rat-1", "PRJ-9999", base, 4, 5, 3), // no such project
		},
	}

	report, err := newTestEngine(p).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"rat-1"}, report.OrphanedRatingIDs)
	assert.Empty(t, report.DuplicatesDeleted, "orphans are never auto-deleted")
	assert.Len(t, p.ratings, 1, "orphaned rating stays in storage")
}

func TestEngine_DuplicateResolution(t *testing.T) {
	t.Run("earliest imported duplicate wins", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				imported("rat-b", "prj-1", base.Add(time.Hour), 4, 5, 3),
				imported("rat-a", "prj-1", base, 4, 5, 3),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{"rat-b"}, report.DuplicatesDeleted)
		require.Len(t, p.ratings, 1)
		assert.Equal(t, "rat-a", p.ratings[0].ID)
	})

	t.Run("equal timestamps retain the most complete set", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				imported("rat-two", "prj-1", base, 4, 5),
				imported("rat-three", "prj-1", base, 4, 5, 3),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{"rat-two"}, report.DuplicatesDeleted)
		require.Len(t, p.ratings, 1)
		assert.Equal(t, "rat-three", p.ratings[0].ID)
	})

	t.Run("equal timestamps and completeness retain the lowest id", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				imported("rat-b", "prj-1", base, 4, 5, 3),
				imported("rat-a", "prj-1", base, 4, 5, 3),
			},
		}

		_, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		require.Len(t, p.ratings, 1)
		assert.Equal(t, "rat-a", p.ratings[0].ID)
	})

	t.Run("a live rating supersedes imported duplicates", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				imported("rat-old", "prj-1", base, 4, 5, 3),
				live("rat-live", "prj-1", base.Add(time.Hour), 2, 2),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{"rat-old"}, report.DuplicatesDeleted)
		require.Len(t, p.ratings, 1)
		assert.Equal(t, "rat-live", p.ratings[0].ID)
	})

	t.Run("two live ratings are ambiguous and untouched", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				live("rat-1", "prj-1", base, 4, 5, 3),
				live("rat-2", "prj-1", base.Add(time.Hour), 2, 2, 2),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Empty(t, report.DuplicatesDeleted)
		require.Len(t, report.Unresolved, 1)
		assert.Equal(t, DefectAmbiguousDuplicate, report.Unresolved[0].Class)
		assert.Equal(t, "prj-1", report.Unresolved[0].ProjectID)
		assert.Len(t, p.ratings, 2)
	})

	t.Run("imported duplicates beyond the batch window are ambiguous", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusActive)},
			ratings: []ratingdomain.Rating{
				imported("rat-1", "prj-1", base, 4, 5, 3),
				imported("rat-2", "prj-1", base.Add(30*24*time.Hour), 3, 3, 3),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Empty(t, report.DuplicatesDeleted)
		require.Len(t, report.Unresolved, 1)
		assert.Equal(t, DefectAmbiguousDuplicate, report.Unresolved[0].Class)
		assert.Len(t, p.ratings, 2)
	})
}

func TestEngine_StatusRepair(t *testing.T) {
	t.Run("complete rating archives the project", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusCompleted)},
			ratings:  []ratingdomain.Rating{live("rat-1", "prj-1", base, 4, 5, 3)},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, projdomain.StatusArchived, report.StatusCorrections["prj-1"])
		assert.Equal(t, projdomain.StatusArchived, p.projects[0].Status)
	})

	t.Run("archived without a complete rating falls back to completed", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusArchived)},
			ratings:  []ratingdomain.Rating{live("rat-1", "prj-1", base, 4)},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, projdomain.StatusCompleted, report.StatusCorrections["prj-1"])
	})

	t.Run("archived with no rating and no deadline falls back to active", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusArchived)},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, projdomain.StatusActive, report.StatusCorrections["prj-1"])
	})

	t.Run("archived with no rating but a passed deadline falls back to completed", func(t *testing.T) {
		prj := project("prj-1", "ven-1", projdomain.StatusArchived)
		prj.Deadline = timep(base.Add(24 * time.Hour))
		p := &population{projects: []projdomain.Project{prj}}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, projdomain.StatusCompleted, report.StatusCorrections["prj-1"])
	})

	t.Run("incomplete rating on a completed project is consistent", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusCompleted)},
			ratings:  []ratingdomain.Rating{live("rat-1", "prj-1", base, 4)},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.StatusCorrections)
	})

	t.Run("ambiguous duplicates freeze the project's status", func(t *testing.T) {
		p := &population{
			projects: []projdomain.Project{project("prj-1", "ven-1", projdomain.StatusArchived)},
			ratings: []ratingdomain.Rating{
				live("rat-1", "prj-1", base, 4, 5, 3),
				live("rat-2", "prj-1", base.Add(time.Hour), 2),
			},
		}

		report, err := newTestEngine(p).Run(context.Background())
		require.NoError(t, err)

		assert.Empty(t, report.StatusCorrections, "no repair until the operator resolves the duplicates")
		assert.Equal(t, projdomain.StatusArchived, p.projects[0].Status)
	})
}

func TestEngine_Idempotence(t *testing.T) {
	p := &population{
		projects: []projdomain.Project{
			project("prj-1", "ven-1", projdomain.StatusArchived), // wrongly archived
			project("prj-2", "ven-2", projdomain.StatusCompleted),
		},
		ratings: []ratingdomain.Rating{
			imported("rat-1a", "prj-1", base, 4, 5),
			imported("rat-1b", "prj-1", base.Add(time.Minute), 4, 5),
			live("rat-2", "prj-2", base, 4, 5, 3),
			live("rat-orphan", "PRJ-9999", base, 1, 1, 1),
		},
	}

	engine := newTestEngine(p)

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Clean())
	assert.Equal(t, []string{"rat-1b"}, first.DuplicatesDeleted)
	assert.Equal(t, projdomain.StatusCompleted, first.StatusCorrections["prj-1"])
	assert.Equal(t, projdomain.StatusArchived, first.StatusCorrections["prj-2"])

	second, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, second.Clean(), "second run must produce an empty diff")
	assert.Empty(t, second.DuplicatesDeleted)
	assert.Empty(t, second.StatusCorrections)
	// Orphans are reported every pass until resolved by an operator.
	assert.Equal(t, []string{"rat-orphan"}, second.OrphanedRatingIDs)
}

func TestEngine_StorageFailureAbortsVendor(t *testing.T) {
	p := &population{
		projects: []projdomain.Project{
			project("prj-1", "ven-a", projdomain.StatusCompleted),
			project("prj-2", "ven-b", projdomain.StatusCompleted),
		},
		ratings: []ratingdomain.Rating{
			live("rat-1", "prj-1", base, 4, 5, 3),
			live("rat-2", "prj-2", base, 4, 5, 3),
		},
		failFor: "ven-b",
	}

	_, err := newTestEngine(p).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `vendor "ven-b"`)

	// ven-a committed before the failure; ven-b untouched.
	assert.Equal(t, projdomain.StatusArchived, p.projects[0].Status)
	assert.Equal(t, projdomain.StatusCompleted, p.projects[1].Status)
}
