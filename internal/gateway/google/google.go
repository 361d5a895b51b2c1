// Package google reads and writes the cost sheet workbook directly through
// the Sheets API, bypassing the script endpoint.
//
// Every tab is header-keyed: row 1 names the columns and each following row
// is one record. The Validation tab carries Head, Subcategory and Payment
// Status columns; a row may fill any subset of them.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"costledger/internal/core"
	"costledger/internal/gateway"
)

const (
	DefaultCostSheetsTab = "CostSheets"
	DefaultDetailsTab    = "CostSheetDetails"
	DefaultValidationTab = "Validation"
)

// detailHeaders is written when the details tab is still empty.
var detailHeaders = []string{
	"costSheetId", "head", "subcategory", "expenseDate", "timestamp", "enteredBy",
	"tag", "particular", "details", "quantity", "rate", "amount", "taxPercent",
	"taxAmount", "totalAmount", "attachment", "voucherNo", "paymentStatus", "Active",
}

var sheetHeaders = []string{
	"costSheetId", "owner", "linkedType", "linkedId", "linkedName", "status",
	"notes", "clientName", "projectType",
}

type Config struct {
	SpreadsheetID      string
	CostSheetsTab      string
	DetailsTab         string
	ValidationTab      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	costSheetsTab string
	detailsTab    string
	validationTab string
	newID         func() string
}

var _ gateway.Gateway = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg)
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, cfg Config) (*Client, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		costSheetsTab: orDefault(cfg.CostSheetsTab, DefaultCostSheetsTab),
		detailsTab:    orDefault(cfg.DetailsTab, DefaultDetailsTab),
		validationTab: orDefault(cfg.ValidationTab, DefaultValidationTab),
		newID:         func() string { return "CS-" + strings.ToUpper(uuid.NewString()[:8]) },
	}, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// newSheetsService initializes a Sheets service from service-account
// credentials, inline JSON first, then a file, then GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) GetValidation(ctx context.Context) (core.Vocabulary, error) {
	headers, rows, err := c.readTable(ctx, c.validationTab)
	if err != nil {
		return core.Vocabulary{}, err
	}
	headCol := findColumn(headers, "head", "heads", "category")
	subCol := findColumn(headers, "subcategory", "subcategories", "subhead")
	payCol := findColumn(headers, "paymentstatus")

	var heads, statuses []string
	subs := map[string][]string{}
	for _, row := range rows {
		head := cellAt(row, headCol)
		if usable(head) {
			heads = append(heads, head)
			if sub := cellAt(row, subCol); usable(sub) {
				subs[head] = append(subs[head], sub)
			}
		}
		if ps := cellAt(row, payCol); usable(ps) {
			statuses = append(statuses, ps)
		}
	}
	for h, list := range subs {
		subs[h] = dedupe(list)
	}
	return core.Vocabulary{
		Heads:         dedupe(heads),
		Subcategories: subs,
		PaymentStatus: dedupe(statuses),
	}, nil
}

func (c *Client) GetCostSheets(ctx context.Context) ([]core.CostSheet, error) {
	headers, rows, err := c.readTable(ctx, c.costSheetsTab)
	if err != nil {
		return nil, err
	}
	out := make([]core.CostSheet, 0, len(rows))
	for _, row := range rows {
		cs := core.CostSheetFromMap(rowMap(headers, row))
		if cs.ID == "" {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

func (c *Client) GetCostSheetDetails(ctx context.Context, costSheetID string) ([]core.LineItem, error) {
	headers, rows, err := c.readTable(ctx, c.detailsTab)
	if err != nil {
		return nil, err
	}
	var out []core.LineItem
	for _, row := range rows {
		li := core.LineItemFromMap(rowMap(headers, row))
		if li.CostSheetID != costSheetID {
			continue
		}
		out = append(out, li)
	}
	return out, nil
}

func (c *Client) CreateCostSheet(ctx context.Context, cs core.CostSheet) error {
	if cs.ID == "" {
		cs.ID = c.newID()
	}
	if cs.Status == "" {
		cs.Status = core.StatusDraft
	}
	headers, _, err := c.readTable(ctx, c.costSheetsTab)
	if err != nil {
		return err
	}
	var values [][]any
	if len(headers) == 0 {
		headers = append(append([]string(nil), sheetHeaders...), cs.ExtraKeys()...)
		values = append(values, toRow(headers))
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = cs.Cell(h)
	}
	values = append(values, row)
	return c.append(ctx, c.costSheetsTab, values)
}

func (c *Client) AddLineItem(ctx context.Context, li core.LineItem) error {
	headers, _, err := c.readTable(ctx, c.detailsTab)
	if err != nil {
		return err
	}
	var values [][]any
	if len(headers) == 0 {
		headers = detailHeaders
		values = append(values, toRow(headers))
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = li.Cell(h)
	}
	values = append(values, row)
	return c.append(ctx, c.detailsTab, values)
}

// SoftDeleteLineItem sets Active to "No" on every active row of the sheet
// whose particular matches. No match is not an error.
func (c *Client) SoftDeleteLineItem(ctx context.Context, costSheetID, particular string) error {
	headers, rows, err := c.readTable(ctx, c.detailsTab)
	if err != nil {
		return err
	}
	activeCol := findColumn(headers, "active")
	if activeCol < 0 {
		return fmt.Errorf("tab %s has no Active column", c.detailsTab)
	}

	var data []*gsheet.ValueRange
	for i, row := range rows {
		li := core.LineItemFromMap(rowMap(headers, row))
		if li.CostSheetID != costSheetID || li.Particular != particular || !li.Active {
			continue
		}
		// Header is row 1, so data row i lives on sheet row i+2.
		cell := fmt.Sprintf("%s!%s%d", quoteTab(c.detailsTab), columnName(activeCol), i+2)
		data = append(data, &gsheet.ValueRange{Range: cell, Values: [][]any{{"No"}}})
	}
	if len(data) == 0 {
		slog.DebugContext(ctx, "Soft delete matched no rows",
			"component", "gateway",
			"cost_sheet_id", costSheetID,
			"particular", particular)
		return nil
	}

	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deactivate rows in %s: %w", c.detailsTab, err)
	}
	return nil
}

func (c *Client) readTable(ctx context.Context, tab string) ([]string, [][]any, error) {
	start := time.Now()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteTab(tab)).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", tab, err)
	}
	slog.DebugContext(ctx, "Sheet read",
		"component", "gateway",
		"tab", tab,
		"rows", len(resp.Values),
		"duration_ms", time.Since(start).Milliseconds())
	if len(resp.Values) == 0 {
		return nil, nil, nil
	}
	return toStrings(resp.Values[0]), resp.Values[1:], nil
}

func (c *Client) append(ctx context.Context, tab string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, quoteTab(tab), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}
