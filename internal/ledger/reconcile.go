package ledger

import (
	"context"

	"costledger/internal/core"
)

// Reconciliation tracks the delayed read-back of one blind write. Its result
// accessors return zero values until Done is closed.
type Reconciliation struct {
	WriteID     string
	Action      string
	CostSheetID string
	Particular  string
	// Removed is how many local rows a soft delete took out optimistically.
	// Particulars are not unique, so it can be more than one.
	Removed int

	done    chan struct{}
	rows    []core.LineItem
	sheets  []core.CostSheet
	outcome Outcome
	err     error
}

func newReconciliation(w WriteRecord, removed int) *Reconciliation {
	return &Reconciliation{
		WriteID:     w.ID,
		Action:      w.Action,
		CostSheetID: w.CostSheetID,
		Particular:  w.Particular,
		Removed:     removed,
		done:        make(chan struct{}),
	}
}

func (r *Reconciliation) Done() <-chan struct{} { return r.done }

// Wait blocks until the read-back finished or ctx ends. It returns the
// read-back's LoadError, if any; the write itself never fails.
func (r *Reconciliation) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciliation) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Rows are the active items the read-back returned for the sheet.
func (r *Reconciliation) Rows() []core.LineItem {
	if !r.finished() {
		return nil
	}
	return cloneItems(r.rows)
}

// Sheets is the list returned by the read-back after a create.
func (r *Reconciliation) Sheets() []core.CostSheet {
	if !r.finished() {
		return nil
	}
	return cloneSheets(r.sheets)
}

func (r *Reconciliation) Outcome() Outcome {
	if !r.finished() {
		return ""
	}
	return r.outcome
}

func (r *Reconciliation) Confirmed() bool {
	return r.Outcome() == OutcomeConfirmed
}

func (r *Reconciliation) Err() error {
	if !r.finished() {
		return nil
	}
	return r.err
}
