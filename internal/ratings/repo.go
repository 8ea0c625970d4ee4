package ratings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendortrack/vendorperf/internal/ratings/domain"
)

// querier is the subset of pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repo struct {
	db querier
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const ratingColumns = `
id, project_id, vendor_id, success, quality, communication,
supplied_overall, recommend, feedback, private_notes,
rater_id, provenance, created_at`

// ListAll returns the full rating population ordered by creation time then
// id, so snapshot iteration order is stable across runs.
func (r *Repo) ListAll(ctx context.Context) ([]domain.Rating, error) {
	q := `select ` + ratingColumns + `
from ratings
order by created_at, id;`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Rating, 0, 64)
	for rows.Next() {
		var rt domain.Rating
		if err := scanRating(rows, &rt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

// GetByProjectID returns the rating for a project, or ErrRatingNotFound.
func (r *Repo) GetByProjectID(ctx context.Context, projectID string) (*domain.Rating, error) {
	q := `select ` + ratingColumns + `
from ratings
where project_id = $1
order by created_at, id
limit 1;`

	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, domain.ErrRatingNotFound
	}
	var rt domain.Rating
	if err := scanRating(rows, &rt); err != nil {
		return nil, err
	}
	return &rt, rows.Err()
}

// Upsert inserts a rating or replaces the row carrying the same rating id.
// The table deliberately allows multiple rows per project: historical loads
// produce them, and a live resubmission lands as a new row that supersedes
// the imported ones on the next reconciliation pass. Project-level
// uniqueness is the reconciliation engine's concern, not a storage
// constraint.
func (r *Repo) Upsert(ctx context.Context, rt *domain.Rating) error {
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now().UTC()
	}

	const q = `
insert into ratings (
	id, project_id, vendor_id, success, quality, communication,
	supplied_overall, recommend, feedback, private_notes,
	rater_id, provenance, created_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
on conflict (id) do update set
	project_id = excluded.project_id,
	vendor_id = excluded.vendor_id,
	success = excluded.success,
	quality = excluded.quality,
	communication = excluded.communication,
	supplied_overall = excluded.supplied_overall,
	recommend = excluded.recommend,
	feedback = excluded.feedback,
	private_notes = excluded.private_notes,
	rater_id = excluded.rater_id,
	provenance = excluded.provenance;`

	_, err := r.db.Exec(ctx, q,
		rt.ID, rt.ProjectID, rt.VendorID, rt.Success, rt.Quality, rt.Communication,
		rt.SuppliedOverall, rt.Recommend, rt.Feedback, rt.PrivateNotes,
		rt.RaterID, string(rt.Provenance), rt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given ratings. Only the reconciliation engine
// deletes ratings; ordinary application flow never does.
func (r *Repo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	const q = `delete from ratings where id = any($1);`

	ct, err := r.db.Exec(ctx, q, ids)
	if err != nil {
		return 0, fmt.Errorf("delete ratings: %w", err)
	}
	return ct.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner, rt *domain.Rating) error {
	var provenance string
	err := row.Scan(
		&rt.ID, &rt.ProjectID, &rt.VendorID,
		&rt.Success, &rt.Quality, &rt.Communication,
		&rt.SuppliedOverall, &rt.Recommend, &rt.Feedback, &rt.PrivateNotes,
		&rt.RaterID, &provenance, &rt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("scan rating: %w", err)
	}
	rt.Provenance = domain.Provenance(provenance)
	return nil
}
