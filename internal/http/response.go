package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"costledger/internal/core"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}

// writeError maps ledger errors to statuses: no open sheet is 409, any other
// validation failure 422, a backend read failure 502.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		resp    = errorResponse{Error: err.Error()}
		vErr    *ledger.ValidationError
		loadErr *ledger.LoadError
	)
	switch {
	case errors.Is(err, ledger.ErrNoOpenSheet):
		status = http.StatusConflict
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
		resp.Field = vErr.Field
	case errors.As(err, &loadErr):
		status = http.StatusBadGateway
	case errors.Is(err, ledger.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
	}

	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err, applog.FieldStatusCode, status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err, applog.FieldStatusCode, status)
	}
	writeJSON(w, r, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.Extract(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}

// display renders a raw money cell; unset stays "".
func (s *Server) display(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return s.money.Format(core.ParseAmount(raw))
}

func (s *Server) itemView(li core.LineItem) map[string]any {
	m := li.Map()
	m["display"] = map[string]string{
		"amount":      s.display(li.Amount),
		"taxAmount":   s.display(li.TaxAmount),
		"totalAmount": s.display(li.TotalAmount),
	}
	return m
}

func (s *Server) itemsView(items []core.LineItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, s.itemView(it))
	}
	return out
}

type headTotalView struct {
	Head    string `json:"head"`
	Total   string `json:"total"`
	Display string `json:"display"`
}

type totalsView struct {
	Heads        []headTotalView `json:"heads"`
	GrandTotal   string          `json:"grandTotal"`
	GrandDisplay string          `json:"grandDisplay"`
	// Excluded counts items whose head is outside the vocabulary.
	Excluded int `json:"excluded"`
}

func (s *Server) totalsView(t core.SheetTotals) totalsView {
	out := totalsView{Heads: make([]headTotalView, 0, len(t.Heads)), Excluded: t.Excluded}
	for _, h := range t.Heads {
		out.Heads = append(out.Heads, headTotalView{
			Head:    h.Head,
			Total:   h.Total.String(),
			Display: s.money.Format(h.Total.InexactFloat64()),
		})
	}
	grand := t.GrandDecimal()
	out.GrandTotal = grand.String()
	out.GrandDisplay = s.money.Format(grand.InexactFloat64())
	return out
}

type reconciliationView struct {
	WriteID     string `json:"writeId"`
	Action      string `json:"action"`
	CostSheetID string `json:"costSheetId,omitempty"`
	Particular  string `json:"particular,omitempty"`
	Removed     int    `json:"removed,omitempty"`
	// Outcome is "pending" until the read-back finished.
	Outcome   string `json:"outcome"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

func reconciliationViewOf(rc *ledger.Reconciliation) reconciliationView {
	v := reconciliationView{
		WriteID:     rc.WriteID,
		Action:      rc.Action,
		CostSheetID: rc.CostSheetID,
		Particular:  rc.Particular,
		Removed:     rc.Removed,
		Outcome:     "pending",
	}
	if o := rc.Outcome(); o != "" {
		v.Outcome = string(o)
		v.Confirmed = rc.Confirmed()
	}
	if err := rc.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}
