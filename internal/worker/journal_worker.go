package worker

import (
	"context"
	"fmt"
	"log/slog"

	"costledger/internal/amqp"
	"costledger/internal/journal"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

// Journal is the part of the journal repository the worker needs.
type Journal interface {
	ledger.Recorder
	Unconfirmed(ctx context.Context, limit int) ([]journal.Entry, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// JournalWorker writes ledger events from the broker into the journal and
// reports writes that never reconciled as confirmed.
type JournalWorker struct {
	journal   Journal
	batchSize int
}

func NewJournalWorker(j Journal, batchSize int) *JournalWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &JournalWorker{journal: j, batchSize: batchSize}
}

// HandleEvent stores one event. Errors requeue the delivery.
func (w *JournalWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Kind {
	case amqp.KindWrite:
		if err := w.journal.RecordWrite(ctx, ev.WriteRecord()); err != nil {
			return fmt.Errorf("record write %s: %w", ev.WriteID, err)
		}
	case amqp.KindReconcile:
		if err := w.journal.RecordReconciliation(ctx, ev.ReconcileRecord()); err != nil {
			return fmt.Errorf("record reconciliation %s: %w", ev.WriteID, err)
		}
	default:
		return fmt.Errorf("unsupported event kind %q", ev.Kind)
	}

	slog.DebugContext(ctx, "Journaled ledger event",
		applog.FieldComponent, applog.ComponentWorker,
		"kind", ev.Kind,
		applog.FieldAction, ev.Action,
		applog.FieldCostSheetID, ev.CostSheetID,
		applog.FieldOutcome, ev.Outcome)
	return nil
}

// StartupCheck logs the journal's outcome counts.
func (w *JournalWorker) StartupCheck(ctx context.Context) error {
	stats, err := w.journal.Stats(ctx)
	if err != nil {
		return fmt.Errorf("journal stats: %w", err)
	}
	args := []any{applog.FieldComponent, applog.ComponentWorker}
	for outcome, n := range stats {
		args = append(args, outcome, n)
	}
	slog.InfoContext(ctx, "Journal status", args...)
	return nil
}

// ReportUnconfirmed logs every unconfirmed write in the current batch so an
// operator can repeat it, and returns how many there were.
func (w *JournalWorker) ReportUnconfirmed(ctx context.Context) (int, error) {
	entries, err := w.journal.Unconfirmed(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unconfirmed writes: %w", err)
	}
	for _, e := range entries {
		slog.WarnContext(ctx, "Write not confirmed by the backend",
			applog.FieldComponent, applog.ComponentWorker,
			"write_id", e.ID,
			applog.FieldAction, e.Action,
			applog.FieldCostSheetID, e.CostSheetID,
			applog.FieldParticular, e.Particular,
			applog.FieldOutcome, e.Outcome,
			"submitted_at", e.SubmittedAt)
	}
	return len(entries), nil
}
