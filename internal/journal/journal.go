// Package journal keeps a SQLite log of blind writes and how each one
// reconciled, so unconfirmed writes can be found and repeated by hand.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

// OutcomePending is reported by Stats for writes not yet reconciled.
const OutcomePending = "pending"

// Fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Entry struct {
	ID             string          `json:"id"`
	Action         string          `json:"action"`
	CostSheetID    string          `json:"costSheetId"`
	Particular     string          `json:"particular,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	TransportError string          `json:"transportError,omitempty"`
	SubmittedAt    time.Time       `json:"submittedAt"`
	ReconciledAt   *time.Time      `json:"reconciledAt,omitempty"`
	Outcome        string          `json:"outcome"`
	RowsSeen       int             `json:"rowsSeen"`
	ReconcileError string          `json:"reconcileError,omitempty"`
}

type Repository struct {
	db *sql.DB
}

var _ ledger.Recorder = (*Repository)(nil)

// Open creates the database file and its directory if needed and migrates it.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; recorders are called from many reconciliation goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordWrite inserts a submitted write. Replays of the same write are ignored.
func (r *Repository) RecordWrite(ctx context.Context, w ledger.WriteRecord) error {
	payload := string(w.Payload)
	if payload == "" {
		payload = "{}"
	}
	submitted := w.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO blind_writes
			(id, action, cost_sheet_id, particular, payload, transport_error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Action, w.CostSheetID, w.Particular, payload, w.TransportError,
		submitted.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert blind write: %w", err)
	}
	return nil
}

// RecordReconciliation stores the outcome on the matching write. It matches
// by write id, then falls back to the latest unreconciled write with the same
// action, sheet and particular.
func (r *Repository) RecordReconciliation(ctx context.Context, rec ledger.ReconcileRecord) error {
	reconciled := rec.ReconciledAt
	if reconciled.IsZero() {
		reconciled = time.Now()
	}
	args := []any{reconciled.UTC().Format(timeLayout), string(rec.Outcome), rec.Rows, rec.Error}

	res, err := r.db.ExecContext(ctx, `
		UPDATE blind_writes
		SET reconciled_at = ?, outcome = ?, rows_seen = ?, reconcile_error = ?
		WHERE id = ?`,
		append(args, rec.WriteID)...)
	if err != nil {
		return fmt.Errorf("update blind write: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	res, err = r.db.ExecContext(ctx, `
		UPDATE blind_writes
		SET reconciled_at = ?, outcome = ?, rows_seen = ?, reconcile_error = ?
		WHERE id = (
			SELECT id FROM blind_writes
			WHERE action = ? AND cost_sheet_id = ? AND particular = ? AND reconciled_at IS NULL
			ORDER BY submitted_at DESC
			LIMIT 1
		)`,
		append(args, rec.Action, rec.CostSheetID, rec.Particular)...)
	if err != nil {
		return fmt.Errorf("update blind write: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.WarnContext(ctx, "Reconciliation has no matching write",
			applog.FieldComponent, applog.ComponentJournal,
			"write_id", rec.WriteID,
			applog.FieldAction, rec.Action,
			applog.FieldCostSheetID, rec.CostSheetID)
	}
	return nil
}

// Unconfirmed lists the most recent writes whose outcome is not confirmed,
// including those still pending.
func (r *Repository) Unconfirmed(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, cost_sheet_id, particular, payload, transport_error,
		       submitted_at, reconciled_at, COALESCE(outcome, ''), rows_seen, reconcile_error
		FROM blind_writes
		WHERE outcome IS NULL OR outcome != ?
		ORDER BY submitted_at DESC
		LIMIT ?`, string(ledger.OutcomeConfirmed), limit)
	if err != nil {
		return nil, fmt.Errorf("query unconfirmed writes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			payload    string
			submitted  string
			reconciled sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.CostSheetID, &e.Particular, &payload,
			&e.TransportError, &submitted, &reconciled, &e.Outcome, &e.RowsSeen, &e.ReconcileError); err != nil {
			return nil, fmt.Errorf("scan blind write: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		if e.SubmittedAt, err = time.Parse(timeLayout, submitted); err != nil {
			return nil, fmt.Errorf("parse submitted_at %q: %w", submitted, err)
		}
		if reconciled.Valid {
			t, err := time.Parse(timeLayout, reconciled.String)
			if err != nil {
				return nil, fmt.Errorf("parse reconciled_at %q: %w", reconciled.String, err)
			}
			e.ReconciledAt = &t
		}
		if e.Outcome == "" {
			e.Outcome = OutcomePending
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts writes per outcome.
func (r *Repository) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(outcome, ?), COUNT(*)
		FROM blind_writes
		GROUP BY 1`, OutcomePending)
	if err != nil {
		return nil, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan journal stats: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}
