package projects

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/ratings/score"
)

// ProjectStore is the project boundary the lifecycle driver needs.
type ProjectStore interface {
	ListAll(ctx context.Context) ([]domain.Project, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// RatingSource is the read side of the rating boundary.
type RatingSource interface {
	ListAll(ctx context.Context) ([]ratingdomain.Rating, error)
}

// Driver advances project lifecycle status from rating state and deadlines.
// The machine only moves forward: active -> completed -> archived, with
// archived reachable directly from active once a complete rating lands.
type Driver struct {
	projects ProjectStore
	ratings  RatingSource
}

func NewDriver(projects ProjectStore, ratings RatingSource) *Driver {
	return &Driver{projects: projects, ratings: ratings}
}

// NextStatus computes the status a project should hold given its review
// state. The second return is false when no transition applies.
func NextStatus(p *domain.Project, completeness score.Completeness, now time.Time) (string, bool) {
	if p.Status == domain.StatusArchived {
		return "", false
	}

	// Archival happens if and only if the review is complete.
	if completeness == score.Complete {
		return domain.StatusArchived, true
	}

	if p.Status == domain.StatusActive && p.Deadline != nil && p.Deadline.Before(now) {
		return domain.StatusCompleted, true
	}

	return "", false
}

// AdvanceResult lists the transitions one pass applied.
type AdvanceResult struct {
	Advanced map[string]string `json:"advanced"` // project id -> new status
}

// Advance runs one pass over the full population and applies every due
// forward transition. Safe to re-run: a second pass over the same state
// applies nothing.
func (d *Driver) Advance(ctx context.Context, now time.Time) (*AdvanceResult, error) {
	projects, err := d.projects.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle snapshot projects: %w", err)
	}
	ratings, err := d.ratings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle snapshot ratings: %w", err)
	}

	byProject := make(map[string]*ratingdomain.Rating, len(ratings))
	for i := range ratings {
		rt := &ratings[i]
		if existing, ok := byProject[rt.ProjectID]; ok && !existing.CreatedAt.After(rt.CreatedAt) {
			// duplicate rows are the reconciliation engine's problem;
			// classification uses the earliest
			continue
		}
		byProject[rt.ProjectID] = rt
	}

	res := &AdvanceResult{Advanced: make(map[string]string)}
	for i := range projects {
		p := &projects[i]
		next, ok := NextStatus(p, score.Classify(byProject[p.ID]), now)
		if !ok || !domain.CanTransition(p.Status, next) {
			continue
		}
		if err := d.projects.UpdateStatus(ctx, p.ID, next); err != nil {
			return nil, fmt.Errorf("advance %s: %w", p.ID, err)
		}
		log.Printf("[lifecycle] project=%s %s -> %s", p.ID, p.Status, next)
		res.Advanced[p.ID] = next
	}
	return res, nil
}

// Close marks a project completed ahead of its deadline. Explicit close is
// the one operator-driven transition; everything else is derived.
func (d *Driver) Close(ctx context.Context, p *domain.Project) error {
	if p.Status != domain.StatusActive {
		return domain.ErrProjectAlreadyClosed
	}
	return d.projects.UpdateStatus(ctx, p.ID, domain.StatusCompleted)
}
