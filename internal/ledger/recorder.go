package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Outcome string

const (
	// OutcomeConfirmed: the reconciliation read shows the write.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeUnconfirmed: the read succeeded but does not show the write yet.
	OutcomeUnconfirmed Outcome = "unconfirmed"
	// OutcomeFailed: the reconciliation read itself failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeDiscarded: another sheet was opened before the read returned.
	OutcomeDiscarded Outcome = "discarded"
)

// WriteRecord describes one blind write as it was submitted.
type WriteRecord struct {
	ID             string
	Action         string
	CostSheetID    string
	Particular     string
	Payload        json.RawMessage
	TransportError string
	SubmittedAt    time.Time
}

// ReconcileRecord describes the read-back that followed a write.
type ReconcileRecord struct {
	WriteID      string
	Action       string
	CostSheetID  string
	Particular   string
	Outcome      Outcome
	Rows         int
	Error        string
	ReconciledAt time.Time
}

// Recorder observes blind writes and their reconciliation. Errors are logged
// by the store and never change its behaviour.
type Recorder interface {
	RecordWrite(ctx context.Context, rec WriteRecord) error
	RecordReconciliation(ctx context.Context, rec ReconcileRecord) error
}

type NopRecorder struct{}

func (NopRecorder) RecordWrite(context.Context, WriteRecord) error { return nil }

func (NopRecorder) RecordReconciliation(context.Context, ReconcileRecord) error { return nil }

// MultiRecorder fans out to every recorder and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordWrite(ctx context.Context, rec WriteRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordWrite(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordReconciliation(ctx context.Context, rec ReconcileRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordReconciliation(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Recorder = NopRecorder{}
	_ Recorder = MultiRecorder(nil)
)
