package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vendortrack/vendorperf/internal/reconcile"
)

// DeltaWriter commits one vendor's reconciliation delta inside a single
// transaction, so a storage failure mid-vendor leaves that vendor exactly
// as the snapshot saw it.
type DeltaWriter struct {
	db *pgxpool.Pool
}

func NewDeltaWriter(db *pgxpool.Pool) *DeltaWriter {
	return &DeltaWriter{db: db}
}

func (w *DeltaWriter) Apply(ctx context.Context, delta reconcile.VendorDelta) error {
	if len(delta.DeleteRatingIDs) == 0 && len(delta.StatusCorrections) == 0 {
		return nil
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delta: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(delta.DeleteRatingIDs) > 0 {
		if _, err := tx.Exec(ctx,
			`delete from ratings where id = any($1);`, delta.DeleteRatingIDs); err != nil {
			return fmt.Errorf("delete duplicate ratings: %w", err)
		}
	}

	for projectID, status := range delta.StatusCorrections {
		if _, err := tx.Exec(ctx,
			`update projects set status = $2 where id = $1;`, projectID, status); err != nil {
			return fmt.Errorf("correct status of %s: %w", projectID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delta: %w", err)
	}
	return nil
}
