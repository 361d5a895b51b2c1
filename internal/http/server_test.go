package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costledger/internal/core"
	"costledger/internal/gateway/memory"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

const (
	sessionA = "session-aaaa"
	sessionB = "session-bbbb"
)

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New(core.Vocabulary{
		Heads:         []string{"Travel", "Food"},
		PaymentStatus: []string{"Pending", "Paid"},
	})
	mem.Seed(core.CostSheet{ID: "CS-1", ClientName: "Acme", Status: core.StatusDraft},
		core.LineItem{Head: "Travel", Particular: "Cab", TotalAmount: "100", Active: true},
		core.LineItem{Head: "Food", Particular: "Lunch", TotalAmount: "20", Active: true},
	)

	srv := NewServer(":0", Deps{
		Gateway:            mem,
		StoreOptions:       ledger.Options{After: immediate},
		Logger:             applog.New(applog.Config{Output: io.Discard}),
		RateLimitPerMinute: 1000,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, mem
}

func do(t *testing.T, srv *Server, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(HeaderSessionID, session)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func items(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["items"].([]any)
	require.True(t, ok, "items missing: %v", body)
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.(map[string]any))
	}
	return out
}

func particulars(list []map[string]any) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		out = append(out, it["particular"].(string))
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv, mem := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	mem.SetOffline(true, false)
	rec := do(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestSessionHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/sheets", sessionA, "")
	assert.Equal(t, sessionA, rec.Header().Get(HeaderSessionID))

	rec = do(t, srv, http.MethodGet, "/api/v1/sheets", "", "")
	assert.NotEmpty(t, rec.Header().Get(HeaderSessionID), "a missing session gets a fresh id")
	assert.Equal(t, 2, srv.Sessions())
}

func TestGetSheetReturnsItemsAndTotals(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	assert.ElementsMatch(t, []string{"Cab", "Lunch"}, particulars(items(t, body)))
	totals := body["totals"].(map[string]any)
	assert.Equal(t, "120", totals["grandTotal"])
	assert.Equal(t, "120", totals["grandDisplay"])
	assert.EqualValues(t, 0, totals["excluded"])
}

func TestAddItemRequiresOpenSheet(t *testing.T) {
	srv, mem := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/sheets/CS-1/items/Travel", sessionA, `{"particular":"Bus","amount":"10"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, mem.Calls("addLineItem"))
}

func TestAddItemComputesAndReconciles(t *testing.T) {
	srv, mem := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "").Code)

	rec := do(t, srv, http.MethodPost, "/api/v1/sheets/CS-1/items/Travel?wait=true", sessionA,
		`{"particular":"Bus","quantity":"5","rate":"100","taxPercent":"18"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	rc := body["reconciliation"].(map[string]any)
	assert.Equal(t, "confirmed", rc["outcome"])
	assert.Equal(t, true, rc["confirmed"])

	var bus map[string]any
	for _, it := range items(t, body) {
		if it["particular"] == "Bus" {
			bus = it
		}
	}
	require.NotNil(t, bus)
	assert.Equal(t, "500", bus["amount"])
	assert.Equal(t, "90", bus["taxAmount"])
	assert.Equal(t, "590", bus["totalAmount"])
	assert.Equal(t, "590", bus["display"].(map[string]any)["totalAmount"])
	assert.Equal(t, 1, mem.Calls("addLineItem"))
}

func TestAddItemWithoutWaitIsAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")

	rec := do(t, srv, http.MethodPost, "/api/v1/sheets/CS-1/items/Food", sessionA, `{"particular":"Tea","amount":"15"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, particulars(items(t, decode(t, rec))), "Tea", "optimistic view includes the new item")
}

func TestAddItemValidation(t *testing.T) {
	srv, mem := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		field  string
	}{
		{"empty item", "/api/v1/sheets/CS-1/items/Travel", `{"quantity":"2"}`, http.StatusUnprocessableEntity, "lineItem"},
		{"no body and no draft", "/api/v1/sheets/CS-1/items/Travel", "", http.StatusUnprocessableEntity, "lineItem"},
		{"unknown head", "/api/v1/sheets/CS-1/items/Snacks", `{"particular":"Chips"}`, http.StatusUnprocessableEntity, "head"},
		{"bad json", "/api/v1/sheets/CS-1/items/Travel", `{"particular":`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, sessionA, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				assert.Equal(t, tt.field, decode(t, rec)["field"])
			}
		})
	}
	assert.Zero(t, mem.Calls("addLineItem"))
}

func TestDraftsFeedAdd(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")

	rec := do(t, srv, http.MethodPut, "/api/v1/sheets/CS-1/drafts/Food", sessionA, `{"particular":"Tea","quantity":"2","rate":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode(t, rec)["preview"].(map[string]any)
	assert.Equal(t, "20", preview["totalAmount"])

	rec = do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1/drafts/Food", sessionA, "")
	assert.Equal(t, "Tea", decode(t, rec)["draft"].(map[string]any)["particular"])

	rec = do(t, srv, http.MethodPost, "/api/v1/sheets/CS-1/items/Food?wait=true", sessionA, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, particulars(items(t, decode(t, rec))), "Tea")

	rec = do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1/drafts/Food", sessionA, "")
	assert.Empty(t, decode(t, rec)["draft"].(map[string]any)["particular"], "draft is cleared after add")
}

func TestDeleteItem(t *testing.T) {
	srv, mem := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")

	rec := do(t, srv, http.MethodDelete, "/api/v1/sheets/CS-1/items", sessionA, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodDelete, "/api/v1/sheets/CS-1/items?particular=Cab&wait=true", sessionA, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	rc := body["reconciliation"].(map[string]any)
	assert.EqualValues(t, 1, rc["removed"])
	assert.Equal(t, "confirmed", rc["outcome"])
	assert.Equal(t, []string{"Lunch"}, particulars(items(t, body)))
	assert.Equal(t, 1, mem.Calls("softDeleteLineItem"))
}

func TestSessionsAreIndependent(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1", sessionA, "")

	rec := do(t, srv, http.MethodPost, "/api/v1/sheets/CS-1/items/Travel", sessionB, `{"particular":"Bus","amount":"10"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "session B never opened the sheet")
}

func TestCreateSheet(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/sheets?wait=true", sessionA,
		`{"clientName":"Globex","linkedType":"Deal","linkedId":"D-9","linkedName":"Globex renewal"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "confirmed", body["reconciliation"].(map[string]any)["outcome"])
	assert.Len(t, body["sheets"], 2)

	rec = do(t, srv, http.MethodPost, "/api/v1/sheets", sessionA, `{"clientName":"X","status":"Published"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoadFailureIsBadGateway(t *testing.T) {
	srv, mem := newTestServer(t)
	mem.SetOffline(true, false)

	for _, path := range []string{"/api/v1/sheets", "/api/v1/sheets/CS-1", "/api/v1/validation"} {
		rec := do(t, srv, http.MethodGet, path, sessionA, "")
		assert.Equal(t, http.StatusBadGateway, rec.Code, path)
		assert.Contains(t, decode(t, rec)["error"], "could not load")
	}
	rec := do(t, srv, http.MethodPost, "/api/v1/refresh", sessionA, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchItemsAndTotals(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1/items?q=cab", sessionA, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Cab"}, particulars(items(t, decode(t, rec))))

	rec = do(t, srv, http.MethodGet, "/api/v1/sheets/CS-1/totals", sessionA, "")
	require.Equal(t, http.StatusOK, rec.Code)
	heads := decode(t, rec)["heads"].([]any)
	require.Len(t, heads, 2)
	assert.Equal(t, "Travel", heads[0].(map[string]any)["head"])
	assert.Equal(t, "100", heads[0].(map[string]any)["total"])
}

func TestRateLimited(t *testing.T) {
	mem := memory.New(core.Vocabulary{Heads: []string{"Travel"}})
	srv := NewServer(":0", Deps{
		Gateway:            mem,
		Logger:             applog.New(applog.Config{Output: io.Discard}),
		RateLimitPerMinute: 1,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/validation", sessionA, "").Code)
	rec := do(t, srv, http.MethodGet, "/api/v1/validation", sessionA, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
