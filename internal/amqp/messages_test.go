package amqp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costledger/internal/ledger"
)

func TestWriteEventCarriesRecord(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	w := ledger.WriteRecord{
		ID:             "w1",
		Action:         "softDeleteLineItem",
		CostSheetID:    "CS-1",
		Particular:     "X",
		Payload:        json.RawMessage(`{"costSheetId":"CS-1","particular":"X"}`),
		TransportError: "dial tcp: timeout",
		SubmittedAt:    ts,
	}

	b, err := NewWriteEvent(w).ToJSON()
	require.NoError(t, err)
	ev, err := LedgerEventFromJSON(b)
	require.NoError(t, err)

	assert.Equal(t, KindWrite, ev.Kind)
	got := ev.WriteRecord()
	assert.Equal(t, w.ID, got.ID)
	assert.JSONEq(t, string(w.Payload), string(got.Payload))
	assert.Equal(t, w.TransportError, got.TransportError)
	assert.True(t, ts.Equal(got.SubmittedAt))
}

func TestReconcileEventCarriesOutcome(t *testing.T) {
	ev := NewReconcileEvent(ledger.ReconcileRecord{
		WriteID: "w1", Action: "addLineItem", CostSheetID: "CS-1",
		Outcome: ledger.OutcomeUnconfirmed, Rows: 4,
	})
	assert.Equal(t, KindReconcile, ev.Kind)
	assert.False(t, ev.Timestamp.IsZero())

	rec := ev.ReconcileRecord()
	assert.Equal(t, ledger.OutcomeUnconfirmed, rec.Outcome)
	assert.Equal(t, 4, rec.Rows)
}

func TestLedgerEventFromJSONRejectsUnknown(t *testing.T) {
	_, err := LedgerEventFromJSON([]byte(`{"kind":"expense.sync","action":"x"}`))
	assert.ErrorContains(t, err, "unknown event kind")
	_, err = LedgerEventFromJSON([]byte(`{"kind":"ledger.write"}`))
	assert.ErrorContains(t, err, "no action")
}
