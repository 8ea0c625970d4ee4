package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendortrack/vendorperf/internal/projects/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const projectColumns = `
id, title, client_id, vendor_id, status, created_at, deadline, on_time, on_budget`

// Create inserts a new project with a fresh public id, retrying on the
// unlikely id collision.
func (r *Repo) Create(ctx context.Context, title, clientID string, vendorID *string, deadline *time.Time) (*domain.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("title required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := NewPublicID("prj")
		if err != nil {
			return nil, err
		}

		const q = `
insert into projects (id, title, client_id, vendor_id, status, deadline)
values ($1, $2, $3, $4, $5, $6)
returning ` + projectColumns + `;`

		var p domain.Project
		err = r.db.QueryRow(ctx, q, publicID, title, clientID, vendorID, domain.StatusActive, deadline).
			Scan(&p.ID, &p.Title, &p.ClientID, &p.VendorID, &p.Status,
				&p.CreatedAt, &p.Deadline, &p.OnTime, &p.OnBudget)

		if err == nil {
			return &p, nil
		}

		// unique violation on id -> retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

// GetByID returns one project or ErrProjectNotFound.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	const q = `select ` + projectColumns + ` from projects where id = $1;`

	var p domain.Project
	err := r.db.QueryRow(ctx, q, id).
		Scan(&p.ID, &p.Title, &p.ClientID, &p.VendorID, &p.Status,
			&p.CreatedAt, &p.Deadline, &p.OnTime, &p.OnBudget)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListAll returns the full project population in stable order for batch
// snapshots.
func (r *Repo) ListAll(ctx context.Context) ([]domain.Project, error) {
	const q = `select ` + projectColumns + ` from projects order by created_at, id;`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 64)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Title, &p.ClientID, &p.VendorID, &p.Status,
			&p.CreatedAt, &p.Deadline, &p.OnTime, &p.OnBudget); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateStatus sets a project's lifecycle status. Callers are responsible
// for transition legality; the reconciliation engine may also use it to
// correct a defective status backward.
func (r *Repo) UpdateStatus(ctx context.Context, id, status string) error {
	if !domain.ValidStatus(status) {
		return domain.ErrInvalidStatus
	}

	const q = `update projects set status = $2 where id = $1;`

	ct, err := r.db.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// Purge physically deletes a project and its dependent ratings in one
// transaction. It exists only for the audited admin purge; ratings are
// never orphaned by it.
func (r *Repo) Purge(ctx context.Context, id string) (ratingsDeleted int64, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ct, err := tx.Exec(ctx, `delete from ratings where project_id = $1;`, id)
	if err != nil {
		return 0, fmt.Errorf("purge ratings: %w", err)
	}
	ratingsDeleted = ct.RowsAffected()

	ct, err = tx.Exec(ctx, `delete from projects where id = $1;`, id)
	if err != nil {
		return 0, fmt.Errorf("purge project: %w", err)
	}
	if ct.RowsAffected() == 0 {
		err = domain.ErrProjectNotFound
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return ratingsDeleted, nil
}
