// Package reconcile repairs the structural defects that historical imports
// left in the project and rating populations: duplicate ratings from
// repeated bulk loads, ratings pointing at projects that were never
// imported, and lifecycle statuses that disagree with actual rating
// content. A pass is a pure in-memory computation over a full snapshot
// followed by a bounded set of writes, and is idempotent: re-running it
// over a repaired population writes nothing.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	projdomain "github.com/vendortrack/vendorperf/internal/projects/domain"
	ratingdomain "github.com/vendortrack/vendorperf/internal/ratings/domain"
	"github.com/vendortrack/vendorperf/internal/ratings/score"
)

// ProjectSource is the read side of the project boundary.
type ProjectSource interface {
	ListAll(ctx context.Context) ([]projdomain.Project, error)
}

// RatingSource is the read side of the rating boundary.
type RatingSource interface {
	ListAll(ctx context.Context) ([]ratingdomain.Rating, error)
}

// VendorDelta is the bounded write set one pass produces for one vendor.
type VendorDelta struct {
	VendorID          string
	DeleteRatingIDs   []string
	StatusCorrections map[string]string // project id -> corrected status
}

// DeltaWriter commits one vendor's delta as a single all-or-nothing unit.
// A failed Apply must leave that vendor untouched; deltas already applied
// for other vendors stay committed.
type DeltaWriter interface {
	Apply(ctx context.Context, delta VendorDelta) error
}

// AuditSink records repairs and findings for later inspection.
type AuditSink interface {
	Record(ctx context.Context, events []AuditEvent) error
	StoreReport(ctx context.Context, report *Report) error
}

// Engine runs reconciliation passes. Two passes over the same vendor never
// interleave; passes over disjoint vendors may run concurrently.
type Engine struct {
	projects     ProjectSource
	ratings      RatingSource
	writer       DeltaWriter
	audit        AuditSink // optional
	importWindow time.Duration
	now          func() time.Time
	locks        vendorLocks
}

func NewEngine(projects ProjectSource, ratings RatingSource, writer DeltaWriter, audit AuditSink, importWindow time.Duration) *Engine {
	return &Engine{
		projects:     projects,
		ratings:      ratings,
		writer:       writer,
		audit:        audit,
		importWindow: importWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full reconciliation pass: snapshot, compute, commit
// per-vendor deltas. Expected defect classes land in the report; only
// storage failures come back as errors, and a storage failure aborts
// before the affected vendor's delta commits.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:             uuid.New().String(),
		StartedAt:         e.now(),
		StatusCorrections: make(map[string]string),
	}

	projects, err := e.projects.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile snapshot projects: %w", err)
	}
	ratings, err := e.ratings.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile snapshot ratings: %w", err)
	}
	report.ProjectsSeen = len(projects)
	report.RatingsSeen = len(ratings)

	projectByID := make(map[string]*projdomain.Project, len(projects))
	for i := range projects {
		projectByID[projects[i].ID] = &projects[i]
	}

	groups := groupByProject(ratings)

	var events []AuditEvent
	survivors := make(map[string]*ratingdomain.Rating, len(groups))
	deleteByVendor := make(map[string][]string)
	frozen := make(map[string]bool) // projects with unresolved duplicates; no repairs apply

	projectIDs := sortedKeys(groups)
	for _, pid := range projectIDs {
		group := groups[pid]

		project, ok := projectByID[pid]
		if !ok {
			// Orphaned: the project may simply not be imported yet, so the
			// ratings are reported and excluded, never deleted here.
			for _, rt := range group {
				report.OrphanedRatingIDs = append(report.OrphanedRatingIDs, rt.ID)
				events = append(events, e.event(report.RunID, DefectOrphanedReference,
					"rating", rt.ID, fmt.Sprintf("project %s does not exist", pid)))
			}
			continue
		}

		keep, deleted, unresolved := resolveDuplicates(group, e.importWindow)
		if unresolved != nil {
			report.Unresolved = append(report.Unresolved, *unresolved)
			events = append(events, e.event(report.RunID, unresolved.Class,
				"project", pid, unresolved.Detail))
			frozen[pid] = true
			continue
		}

		survivors[pid] = keep
		if len(deleted) > 0 {
			vendor := vendorKey(project)
			for _, id := range deleted {
				report.DuplicatesDeleted = append(report.DuplicatesDeleted, id)
				deleteByVendor[vendor] = append(deleteByVendor[vendor], id)
				events = append(events, e.event(report.RunID, DefectDuplicateRating,
					"rating", id, fmt.Sprintf("duplicate of %s for project %s", keep.ID, pid)))
			}
		}
	}

	correctionsByVendor := make(map[string]map[string]string)
	now := e.now()
	for i := range projects {
		p := &projects[i]
		if frozen[p.ID] {
			continue
		}
		corrected, ok := repairedStatus(p, survivors[p.ID], now)
		if !ok {
			continue
		}
		vendor := vendorKey(p)
		if correctionsByVendor[vendor] == nil {
			correctionsByVendor[vendor] = make(map[string]string)
		}
		correctionsByVendor[vendor][p.ID] = corrected
		report.StatusCorrections[p.ID] = corrected
		events = append(events, e.event(report.RunID, DefectInconsistentState,
			"project", p.ID, fmt.Sprintf("status %s corrected to %s", p.Status, corrected)))
	}

	if err := e.commit(ctx, deleteByVendor, correctionsByVendor); err != nil {
		return report, err
	}

	report.FinishedAt = e.now()
	e.recordAudit(ctx, report, events)

	log.Printf("[reconcile] run=%s projects=%d ratings=%d orphans=%d deleted=%d corrected=%d unresolved=%d",
		report.RunID, report.ProjectsSeen, report.RatingsSeen,
		len(report.OrphanedRatingIDs), len(report.DuplicatesDeleted),
		len(report.StatusCorrections), len(report.Unresolved))

	return report, nil
}

// commit applies one delta per vendor, serialized per vendor, in sorted
// vendor order so repeated runs touch storage in the same sequence.
func (e *Engine) commit(ctx context.Context, deletes map[string][]string, corrections map[string]map[string]string) error {
	vendors := make(map[string]struct{}, len(deletes)+len(corrections))
	for v := range deletes {
		vendors[v] = struct{}{}
	}
	for v := range corrections {
		vendors[v] = struct{}{}
	}

	for _, vendor := range sortedSet(vendors) {
		delta := VendorDelta{
			VendorID:          vendor,
			DeleteRatingIDs:   deletes[vendor],
			StatusCorrections: corrections[vendor],
		}

		unlock := e.locks.lock(vendor)
		err := e.writer.Apply(ctx, delta)
		unlock()
		if err != nil {
			return fmt.Errorf("commit deltas for vendor %q: %w", vendor, err)
		}
	}
	return nil
}

func (e *Engine) recordAudit(ctx context.Context, report *Report, events []AuditEvent) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, events); err != nil {
		log.Printf("[reconcile] run=%s audit record failed: %v", report.RunID, err)
	}
	if err := e.audit.StoreReport(ctx, report); err != nil {
		log.Printf("[reconcile] run=%s report store failed: %v", report.RunID, err)
	}
}

func (e *Engine) event(runID string, class DefectClass, entityType, entityID, detail string) AuditEvent {
	return AuditEvent{
		ID:         uuid.New().String(),
		RunID:      runID,
		Class:      class,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  e.now(),
	}
}

// resolveDuplicates picks the rating to retain from one project's group.
// A single live rating supersedes any number of imported duplicates. All-
// imported groups resolve deterministically (earliest created, then most
// complete sub-rating set, then lowest id) provided their timestamps fall
// within the import batch window. Anything else has no defensible winner
// and is surfaced unresolved.
func resolveDuplicates(group []ratingdomain.Rating, window time.Duration) (*ratingdomain.Rating, []string, *UnresolvedDefect) {
	if len(group) == 1 {
		return &group[0], nil, nil
	}

	projectID := group[0].ProjectID

	var live, imported []*ratingdomain.Rating
	for i := range group {
		if group[i].Imported() {
			imported = append(imported, &group[i])
		} else {
			live = append(live, &group[i])
		}
	}

	if len(live) > 1 {
		return nil, nil, &UnresolvedDefect{
			Class:     DefectAmbiguousDuplicate,
			ProjectID: projectID,
			RatingIDs: ids(group),
			Detail:    fmt.Sprintf("%d live ratings for one project; resubmission intent unknown", len(live)),
		}
	}

	if len(live) == 1 {
		// A real review supersedes bulk history.
		return live[0], idsOf(imported), nil
	}

	sortCandidates(imported)
	first, last := imported[0], imported[len(imported)-1]
	if last.CreatedAt.Sub(first.CreatedAt) > window {
		return nil, nil, &UnresolvedDefect{
			Class:     DefectAmbiguousDuplicate,
			ProjectID: projectID,
			RatingIDs: ids(group),
			Detail: fmt.Sprintf("imported duplicates span %s, beyond the import batch window %s",
				last.CreatedAt.Sub(first.CreatedAt), window),
		}
	}

	return first, idsOf(imported[1:]), nil
}

// sortCandidates orders duplicate candidates by retention preference:
// earliest created, then most complete sub-rating set, then lowest id.
func sortCandidates(group []*ratingdomain.Rating) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.SubRatingCount() != b.SubRatingCount() {
			return a.SubRatingCount() > b.SubRatingCount()
		}
		return a.ID < b.ID
	})
}

// repairedStatus returns the status a project should be corrected to, or
// false when the stored status is already consistent. Archived belongs only
// to projects whose rating is complete; a wrongly archived project falls
// back to what the lifecycle driver would produce.
func repairedStatus(p *projdomain.Project, rating *ratingdomain.Rating, now time.Time) (string, bool) {
	completeness := score.Classify(rating)

	if completeness == score.Complete {
		if p.Status != projdomain.StatusArchived {
			return projdomain.StatusArchived, true
		}
		return "", false
	}

	if p.Status == projdomain.StatusArchived {
		if rating != nil {
			return projdomain.StatusCompleted, true
		}
		if p.Deadline != nil && p.Deadline.Before(now) {
			return projdomain.StatusCompleted, true
		}
		return projdomain.StatusActive, true
	}

	return "", false
}

func groupByProject(ratings []ratingdomain.Rating) map[string][]ratingdomain.Rating {
	groups := make(map[string][]ratingdomain.Rating)
	for _, rt := range ratings {
		groups[rt.ProjectID] = append(groups[rt.ProjectID], rt)
	}
	// Stable intra-group order regardless of snapshot source.
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})
	}
	return groups
}

func vendorKey(p *projdomain.Project) string {
	if p.VendorID == nil {
		return ""
	}
	return *p.VendorID
}

func ids(group []ratingdomain.Rating) []string {
	out := make([]string, len(group))
	for i := range group {
		out[i] = group[i].ID
	}
	return out
}

func idsOf(group []*ratingdomain.Rating) []string {
	out := make([]string, len(group))
	for i := range group {
		out[i] = group[i].ID
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
