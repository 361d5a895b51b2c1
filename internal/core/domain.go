package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	StatusDraft    Status = "Draft"
	StatusFinal    Status = "Final"
	StatusArchived Status = "Archived"
)

const (
	LinkAccount LinkType = "Account"
	LinkDeal    LinkType = "Deal"
	LinkProject LinkType = "Project"
	LinkOrder   LinkType = "Order"
)

type (
	Status   string
	LinkType string

	// LinkedEntity points a cost sheet at the business record it costs.
	LinkedEntity struct {
		Type LinkType
		ID   string
		Name string
	}

	CostSheet struct {
		ID          string
		Owner       string
		Linked      LinkedEntity
		Status      Status
		Notes       string
		ClientName  string
		ProjectType string
		// Extra holds backend columns this client does not model.
		Extra map[string]string
	}

	// LineItem is one expense entry. Numeric fields stay as the strings the
	// backend or the user supplied; "" means unset.
	LineItem struct {
		CostSheetID    string
		Head           string
		Subcategory    string
		ExpenseDate    string
		EntryTimestamp string
		EnteredBy      string
		Tag            string
		Particular     string
		Details        string
		Quantity       string
		Rate           string
		Amount         string
		TaxPercent     string
		TaxAmount      string
		TotalAmount    string
		Attachment     string
		Voucher        string
		PaymentStatus  string
		Active         bool
	}

	// Vocabulary is the closed, backend-supplied set of heads and related lists.
	Vocabulary struct {
		Heads         []string            `json:"heads"`
		Subcategories map[string][]string `json:"subcategories"`
		PaymentStatus []string            `json:"paymentStatus"`
	}
)

// ParseStatus maps a backend status cell to a Status. Empty input is Draft.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "draft":
		return StatusDraft
	case "final":
		return StatusFinal
	case "archived":
		return StatusArchived
	default:
		return Status(strings.TrimSpace(s))
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusFinal, StatusArchived:
		return true
	default:
		return false
	}
}

func (l LinkType) Valid() bool {
	switch l {
	case LinkAccount, LinkDeal, LinkProject, LinkOrder:
		return true
	default:
		return false
	}
}

// HasHead reports whether head belongs to the vocabulary.
func (v Vocabulary) HasHead(head string) bool {
	for _, h := range v.Heads {
		if h == head {
			return true
		}
	}
	return false
}

// SubcategoriesFor returns the subcategory list for head, or nil.
func (v Vocabulary) SubcategoriesFor(head string) []string {
	if v.Subcategories == nil {
		return nil
	}
	return append([]string(nil), v.Subcategories[head]...)
}

// Clone returns a deep copy.
func (v Vocabulary) Clone() Vocabulary {
	out := Vocabulary{
		Heads:         append([]string(nil), v.Heads...),
		PaymentStatus: append([]string(nil), v.PaymentStatus...),
	}
	if v.Subcategories != nil {
		out.Subcategories = make(map[string][]string, len(v.Subcategories))
		for k, s := range v.Subcategories {
			out.Subcategories[k] = append([]string(nil), s...)
		}
	}
	return out
}

// Key normalization lets the decoder accept both camelCase API keys and the
// spreadsheet's human headers ("Total Amount", "cost_sheet_id").
func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if r == ' ' || r == '_' || r == '-' || r == '/' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// cellString renders a decoded JSON value the way a spreadsheet cell reads.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ParseActive reads the backend Active flag. Absence means active.
func ParseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no", "false", "0", "n", "inactive":
		return false
	default:
		return true
	}
}

func activeCell(active bool) string {
	if active {
		return "Yes"
	}
	return "No"
}

var lineItemKeys = map[string]func(*LineItem) *string{
	"costsheetid":    func(li *LineItem) *string { return &li.CostSheetID },
	"head":           func(li *LineItem) *string { return &li.Head },
	"category":       func(li *LineItem) *string { return &li.Head },
	"subcategory":    func(li *LineItem) *string { return &li.Subcategory },
	"subhead":        func(li *LineItem) *string { return &li.Subcategory },
	"expensedate":    func(li *LineItem) *string { return &li.ExpenseDate },
	"date":           func(li *LineItem) *string { return &li.ExpenseDate },
	"timestamp":      func(li *LineItem) *string { return &li.EntryTimestamp },
	"entrytimestamp": func(li *LineItem) *string { return &li.EntryTimestamp },
	"enteredby":      func(li *LineItem) *string { return &li.EnteredBy },
	"tag":            func(li *LineItem) *string { return &li.Tag },
	"particular":     func(li *LineItem) *string { return &li.Particular },
	"particulars":    func(li *LineItem) *string { return &li.Particular },
	"details":        func(li *LineItem) *string { return &li.Details },
	"quantity":       func(li *LineItem) *string { return &li.Quantity },
	"qty":            func(li *LineItem) *string { return &li.Quantity },
	"rate":           func(li *LineItem) *string { return &li.Rate },
	"amount":         func(li *LineItem) *string { return &li.Amount },
	"taxpercent":     func(li *LineItem) *string { return &li.TaxPercent },
	"tax":            func(li *LineItem) *string { return &li.TaxPercent },
	"tax%":           func(li *LineItem) *string { return &li.TaxPercent },
	"taxamount":      func(li *LineItem) *string { return &li.TaxAmount },
	"totalamount":    func(li *LineItem) *string { return &li.TotalAmount },
	"total":          func(li *LineItem) *string { return &li.TotalAmount },
	"attachment":     func(li *LineItem) *string { return &li.Attachment },
	"attachmentlink": func(li *LineItem) *string { return &li.Attachment },
	"voucherno":      func(li *LineItem) *string { return &li.Voucher },
	"voucher":        func(li *LineItem) *string { return &li.Voucher },
	"invoiceno":      func(li *LineItem) *string { return &li.Voucher },
	"paymentstatus":  func(li *LineItem) *string { return &li.PaymentStatus },
}

// LineItemFromMap decodes one header-keyed row. Unknown keys are ignored.
func LineItemFromMap(row map[string]any) LineItem {
	li := LineItem{Active: true}
	for _, k := range sortedKeys(row) {
		v := row[k]
		nk := normalizeKey(k)
		if nk == "active" {
			li.Active = ParseActive(cellString(v))
			continue
		}
		if field, ok := lineItemKeys[nk]; ok {
			*field(&li) = cellString(v)
		}
	}
	return li
}

// Map renders the item with the backend's wire keys.
func (li LineItem) Map() map[string]any {
	return map[string]any{
		"costSheetId":   li.CostSheetID,
		"head":          li.Head,
		"subcategory":   li.Subcategory,
		"expenseDate":   li.ExpenseDate,
		"timestamp":     li.EntryTimestamp,
		"enteredBy":     li.EnteredBy,
		"tag":           li.Tag,
		"particular":    li.Particular,
		"details":       li.Details,
		"quantity":      li.Quantity,
		"rate":          li.Rate,
		"amount":        li.Amount,
		"taxPercent":    li.TaxPercent,
		"taxAmount":     li.TaxAmount,
		"totalAmount":   li.TotalAmount,
		"attachment":    li.Attachment,
		"voucherNo":     li.Voucher,
		"paymentStatus": li.PaymentStatus,
		"Active":        activeCell(li.Active),
	}
}

// Cell returns the value for a spreadsheet header, resolving the same aliases
// the decoder accepts. Unknown headers read as "".
func (li LineItem) Cell(header string) string {
	nk := normalizeKey(header)
	if nk == "active" {
		return activeCell(li.Active)
	}
	if field, ok := lineItemKeys[nk]; ok {
		return *field(&li)
	}
	return ""
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("decode line item: %w", err)
	}
	*li = LineItemFromMap(row)
	return nil
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(li.Map())
}

var costSheetKeys = map[string]func(*CostSheet) *string{
	"id":          func(cs *CostSheet) *string { return &cs.ID },
	"costsheetid": func(cs *CostSheet) *string { return &cs.ID },
	"owner":       func(cs *CostSheet) *string { return &cs.Owner },
	"createdby":   func(cs *CostSheet) *string { return &cs.Owner },
	"linkedtype":  func(cs *CostSheet) *string { return (*string)(&cs.Linked.Type) },
	"linktype":    func(cs *CostSheet) *string { return (*string)(&cs.Linked.Type) },
	"linkedid":    func(cs *CostSheet) *string { return &cs.Linked.ID },
	"linkid":      func(cs *CostSheet) *string { return &cs.Linked.ID },
	"linkedname":  func(cs *CostSheet) *string { return &cs.Linked.Name },
	"linkname":    func(cs *CostSheet) *string { return &cs.Linked.Name },
	"notes":       func(cs *CostSheet) *string { return &cs.Notes },
	"clientname":  func(cs *CostSheet) *string { return &cs.ClientName },
	"client":      func(cs *CostSheet) *string { return &cs.ClientName },
	"projecttype": func(cs *CostSheet) *string { return &cs.ProjectType },
}

// CostSheetFromMap decodes one row of the open-schema sheet list.
func CostSheetFromMap(row map[string]any) CostSheet {
	cs := CostSheet{Status: StatusDraft}
	for _, k := range sortedKeys(row) {
		v := row[k]
		nk := normalizeKey(k)
		if nk == "status" {
			cs.Status = ParseStatus(cellString(v))
			continue
		}
		if field, ok := costSheetKeys[nk]; ok {
			*field(&cs) = cellString(v)
			continue
		}
		if cs.Extra == nil {
			cs.Extra = map[string]string{}
		}
		cs.Extra[k] = cellString(v)
	}
	return cs
}

// Map renders the sheet with the backend's wire keys; Extra columns are kept.
func (cs CostSheet) Map() map[string]any {
	out := make(map[string]any, 9+len(cs.Extra))
	for k, v := range cs.Extra {
		out[k] = v
	}
	status := cs.Status
	if status == "" {
		status = StatusDraft
	}
	out["costSheetId"] = cs.ID
	out["owner"] = cs.Owner
	out["linkedType"] = string(cs.Linked.Type)
	out["linkedId"] = cs.Linked.ID
	out["linkedName"] = cs.Linked.Name
	out["status"] = string(status)
	out["notes"] = cs.Notes
	out["clientName"] = cs.ClientName
	out["projectType"] = cs.ProjectType
	return out
}

// Cell returns the value for a spreadsheet header. Headers the model does not
// know are looked up in Extra.
func (cs CostSheet) Cell(header string) string {
	nk := normalizeKey(header)
	if nk == "status" {
		if cs.Status == "" {
			return string(StatusDraft)
		}
		return string(cs.Status)
	}
	if field, ok := costSheetKeys[nk]; ok {
		return *field(&cs)
	}
	return cs.Extra[header]
}

func (cs *CostSheet) UnmarshalJSON(data []byte) error {
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("decode cost sheet: %w", err)
	}
	*cs = CostSheetFromMap(row)
	return nil
}

func (cs CostSheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.Map())
}

// sortedKeys keeps alias resolution deterministic when a row carries both a
// header and its alias.
func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExtraKeys lists Extra column names in a stable order.
func (cs CostSheet) ExtraKeys() []string {
	keys := make([]string, 0, len(cs.Extra))
	for k := range cs.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
