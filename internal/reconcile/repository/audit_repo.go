package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vendortrack/vendorperf/internal/reconcile"
)

// AuditRepository persists reconciliation audit events and run reports.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts one row per audit event. Corrections are logged, not
// silently applied.
func (r *AuditRepository) Record(ctx context.Context, events []reconcile.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO reconcile_audit_events (
			id, run_id, defect_class, entity_type, entity_id, detail, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if _, err := r.db.ExecContext(ctx, query,
			ev.ID, ev.RunID, string(ev.Class), ev.EntityType, ev.EntityID, ev.Detail, ev.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to record audit event: %w", err)
		}
	}
	return nil
}

// StoreReport upserts the report of a run, keyed by run id, with the full
// report held as JSONB for the operator surface.
func (r *AuditRepository) StoreReport(ctx context.Context, report *reconcile.Report) error {
	const query = `
		INSERT INTO reconcile_reports (run_id, started_at, finished_at, report)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			report = EXCLUDED.report
	`

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query,
		report.RunID, report.StartedAt, report.FinishedAt, payload,
	); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently finished run report, or nil when
// no pass has run yet.
func (r *AuditRepository) LatestReport(ctx context.Context) (*reconcile.Report, error) {
	const query = `
		SELECT report
		FROM reconcile_reports
		ORDER BY finished_at DESC
		LIMIT 1
	`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest report: %w", err)
	}

	var report reconcile.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
