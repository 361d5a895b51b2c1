package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"costledger/internal/core"
)

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	writes int
}

func parseRange(rng string) (tab, cell string) {
	tab, cell, _ = strings.Cut(rng, "!")
	if strings.HasPrefix(tab, "'") && strings.HasSuffix(tab, "'") {
		tab = strings.ReplaceAll(tab[1:len(tab)-1], "''", "'")
	}
	return tab, cell
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := strings.Index(r.URL.Path, "/values")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	rest := r.URL.Path[i+len("/values"):]
	switch {
	case rest == ":batchUpdate":
		var req gsheet.BatchUpdateValuesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, vr := range req.Data {
			tab, cell := parseRange(vr.Range)
			col, row := splitCell(cell)
			rows := f.tabs[tab]
			for len(rows[row-1]) <= col {
				rows[row-1] = append(rows[row-1], "")
			}
			rows[row-1][col] = vr.Values[0][0]
		}
		f.writes++
		_, _ = w.Write([]byte(`{}`))
	case strings.HasSuffix(rest, ":append"):
		tab, _ := parseRange(strings.TrimSuffix(strings.TrimPrefix(rest, "/"), ":append"))
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.tabs[tab] = append(f.tabs[tab], vr.Values...)
		f.writes++
		_, _ = w.Write([]byte(`{}`))
	default:
		tab, _ := parseRange(strings.TrimPrefix(rest, "/"))
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.tabs[tab]})
	}
}

// splitCell turns "S3" into column index 18 and row 3.
func splitCell(cell string) (int, int) {
	j := strings.IndexFunc(cell, func(r rune) bool { return r >= '0' && r <= '9' })
	col := 0
	for _, r := range cell[:j] {
		col = col*26 + int(r-'A'+1)
	}
	row, _ := strconv.Atoi(cell[j:])
	return col - 1, row
}

func newTestClient(t *testing.T, tabs map[string][][]any) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: tabs}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c, err := NewWithService(svc, Config{SpreadsheetID: "sheet-1"})
	require.NoError(t, err)
	c.newID = func() string { return "CS-NEW" }
	return c, fake
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewWithServiceRequiresService(t *testing.T) {
	_, err := NewWithService(nil, Config{SpreadsheetID: "x"})
	assert.Error(t, err)
}

func TestGetValidation(t *testing.T) {
	c, _ := newTestClient(t, map[string][][]any{
		DefaultValidationTab: {
			{"Head", "Subcategory", "Payment Status"},
			{"Travel", "Cab", "Paid"},
			{"Travel", "Flight", "Pending"},
			{"Food", "", "Paid"},
			{"# retired", "Old", ""},
		},
	})

	v, err := c.GetValidation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Travel", "Food"}, v.Heads)
	assert.Equal(t, []string{"Cab", "Flight"}, v.Subcategories["Travel"])
	assert.Equal(t, []string{"Paid", "Pending"}, v.PaymentStatus)
}

func TestGetCostSheetDetailsFiltersBySheet(t *testing.T) {
	c, _ := newTestClient(t, map[string][][]any{
		DefaultDetailsTab: {
			{"Cost Sheet ID", "Head", "Particular", "Total Amount", "Active"},
			{"CS-1", "Travel", "Cab", 590.0, "Yes"},
			{"CS-2", "Food", "Tea", 20.0, "Yes"},
			{"CS-1", "Food", "Lunch", "120", "No"},
			{"CS-1", "Travel", "Bus"},
		},
	})

	items, err := c.GetCostSheetDetails(context.Background(), "CS-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "590", items[0].TotalAmount)
	assert.False(t, items[1].Active)
	assert.True(t, items[2].Active)
}

func TestCreateCostSheetOnEmptyTabWritesHeader(t *testing.T) {
	c, fake := newTestClient(t, map[string][][]any{})
	ctx := context.Background()

	require.NoError(t, c.CreateCostSheet(ctx, core.CostSheet{
		ClientName: "Acme",
		Linked:     core.LinkedEntity{Type: core.LinkDeal, ID: "D-7"},
	}))
	assert.Equal(t, 1, fake.writes)

	sheets, err := c.GetCostSheets(ctx)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "CS-NEW", sheets[0].ID)
	assert.Equal(t, core.StatusDraft, sheets[0].Status)
	assert.Equal(t, core.LinkDeal, sheets[0].Linked.Type)
}

func TestAddLineItemFollowsHeaderOrder(t *testing.T) {
	c, fake := newTestClient(t, map[string][][]any{
		DefaultDetailsTab: {{"Particular", "Cost Sheet ID", "Total Amount", "Active"}},
	})

	require.NoError(t, c.AddLineItem(context.Background(), core.LineItem{
		CostSheetID: "CS-1", Particular: "Cab", TotalAmount: "590", Active: true,
	}))
	assert.Equal(t, []any{"Cab", "CS-1", "590", "Yes"}, fake.tabs[DefaultDetailsTab][1])
}

func TestSoftDeleteDeactivatesEveryMatch(t *testing.T) {
	c, fake := newTestClient(t, map[string][][]any{
		DefaultDetailsTab: {
			{"costSheetId", "particular", "totalAmount", "Active"},
			{"CS-1", "Cab", "100", "Yes"},
			{"CS-1", "Cab", "50", "Yes"},
			{"CS-2", "Cab", "70", "Yes"},
			{"CS-1", "Tea", "20"},
		},
	})
	ctx := context.Background()

	require.NoError(t, c.SoftDeleteLineItem(ctx, "CS-1", "Cab"))

	items, err := c.GetCostSheetDetails(ctx, "CS-1")
	require.NoError(t, err)
	active := core.ActiveItems(items)
	require.Len(t, active, 1)
	assert.Equal(t, "Tea", active[0].Particular)
	assert.Equal(t, "Yes", fake.tabs[DefaultDetailsTab][3][3])

	// Nothing left to match: no write is issued.
	writes := fake.writes
	require.NoError(t, c.SoftDeleteLineItem(ctx, "CS-1", "Cab"))
	assert.Equal(t, writes, fake.writes)
}

func TestSoftDeleteWithoutActiveColumn(t *testing.T) {
	c, _ := newTestClient(t, map[string][][]any{
		DefaultDetailsTab: {{"costSheetId", "particular"}},
	})
	assert.Error(t, c.SoftDeleteLineItem(context.Background(), "CS-1", "Cab"))
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "A", columnName(0))
	assert.Equal(t, "Z", columnName(25))
	assert.Equal(t, "AA", columnName(26))
	assert.Equal(t, "AZ", columnName(51))
}
