package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentLedger)

	l.InfoContext(context.Background(), "Blind write issued",
		FieldCostSheetID, "CS-1", FieldParticular, "Cab")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ledger", rec[FieldComponent])
	assert.Equal(t, "CS-1", rec[FieldCostSheetID])
	assert.Equal(t, "Blind write issued", rec["msg"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.InfoContext(context.Background(), "hidden")
	assert.Empty(t, buf.String())
	l.WarnContext(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextLoggerAndAccessLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	ctx := WithContext(context.Background(), l.With(FieldRequestID, "req-1"))

	FromContext(ctx).InfoContext(ctx, "inside")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	buf.Reset()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/sheets/CS-1/items?particular=Cab", nil)
	NewStructuredLogger(l).LogHTTPEnd(ctx, r, http.StatusConflict, 3, "10.0.0.1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "req-1", rec[FieldRequestID])
	assert.Equal(t, "10.0.0.1", rec[FieldClientIP])
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithWrite("addLineItem", "CS-1", "").WithError(errors.New("boom")).WithError(nil)
	assert.Equal(t, "addLineItem", f[FieldAction])
	assert.NotContains(t, f, FieldParticular)
	assert.Equal(t, "boom", f[FieldError])
	assert.Len(t, f.ToSlice(), len(f)*2)
}
