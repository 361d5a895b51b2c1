package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"costledger/internal/ledger"
)

const (
	KindWrite     = "ledger.write"
	KindReconcile = "ledger.reconcile"
)

// LedgerEvent is the wire form of a blind write or its reconciliation.
type LedgerEvent struct {
	Kind           string          `json:"kind"`
	WriteID        string          `json:"writeId"`
	Action         string          `json:"action"`
	CostSheetID    string          `json:"costSheetId"`
	Particular     string          `json:"particular,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Outcome        string          `json:"outcome,omitempty"`
	Rows           int             `json:"rows,omitempty"`
	TransportError string          `json:"transportError,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewWriteEvent(w ledger.WriteRecord) *LedgerEvent {
	ts := w.SubmittedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEvent{
		Kind:           KindWrite,
		WriteID:        w.ID,
		Action:         w.Action,
		CostSheetID:    w.CostSheetID,
		Particular:     w.Particular,
		Payload:        w.Payload,
		TransportError: w.TransportError,
		Timestamp:      ts,
	}
}

func NewReconcileEvent(r ledger.ReconcileRecord) *LedgerEvent {
	ts := r.ReconciledAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerEvent{
		Kind:        KindReconcile,
		WriteID:     r.WriteID,
		Action:      r.Action,
		CostSheetID: r.CostSheetID,
		Particular:  r.Particular,
		Outcome:     string(r.Outcome),
		Rows:        r.Rows,
		Error:       r.Error,
		Timestamp:   ts,
	}
}

// WriteRecord converts a write event back to the ledger record.
func (e *LedgerEvent) WriteRecord() ledger.WriteRecord {
	return ledger.WriteRecord{
		ID:             e.WriteID,
		Action:         e.Action,
		CostSheetID:    e.CostSheetID,
		Particular:     e.Particular,
		Payload:        e.Payload,
		TransportError: e.TransportError,
		SubmittedAt:    e.Timestamp,
	}
}

// ReconcileRecord converts a reconcile event back to the ledger record.
func (e *LedgerEvent) ReconcileRecord() ledger.ReconcileRecord {
	return ledger.ReconcileRecord{
		WriteID:      e.WriteID,
		Action:       e.Action,
		CostSheetID:  e.CostSheetID,
		Particular:   e.Particular,
		Outcome:      ledger.Outcome(e.Outcome),
		Rows:         e.Rows,
		Error:        e.Error,
		ReconciledAt: e.Timestamp,
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Kind {
	case KindWrite, KindReconcile:
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.Action == "" {
		return nil, fmt.Errorf("event %q has no action", ev.Kind)
	}
	return &ev, nil
}
