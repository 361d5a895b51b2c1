package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiRecorderFansOutAndJoinsErrors(t *testing.T) {
	ok := &fakeRecorder{}
	bad := &fakeRecorder{err: errors.New("broker down")}
	m := MultiRecorder{ok, nil, bad, NopRecorder{}}
	ctx := context.Background()

	err := m.RecordWrite(ctx, WriteRecord{ID: "w1"})
	assert.ErrorContains(t, err, "broker down")
	err = m.RecordReconciliation(ctx, ReconcileRecord{WriteID: "w1", Outcome: OutcomeConfirmed})
	assert.ErrorContains(t, err, "broker down")

	assert.Len(t, ok.writes, 1)
	assert.Len(t, ok.results, 1)
	assert.Len(t, bad.writes, 1)
}

func TestErrorMessages(t *testing.T) {
	err := invalid("particular", ErrNoIdentifyingKey)
	assert.Equal(t, "particular: cannot delete: line item has no particular", err.Error())

	lerr := &LoadError{Op: "load cost sheets", Err: errors.New("timeout")}
	assert.Equal(t, "could not load cost sheets: timeout", lerr.Error())
	assert.Equal(t, "no cost sheet is open", (&ValidationError{Err: ErrNoOpenSheet}).Error())
}
