package http

import (
	"net/http"

	"costledger/internal/core"
	"costledger/internal/ledger"
)

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.session(w, r).LoadSheets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"sheets": sheets})
}

// handleCreateSheet sends the new sheet. The list only shows it after the
// read-back; with ?wait=true the response carries that list.
func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var fields core.CostSheet
	if _, err := decodeBody(w, r, &fields); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	rc, err := s.session(w, r).CreateCostSheet(r.Context(), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !waitRequested(r) {
		writeJSON(w, r, http.StatusAccepted, map[string]any{"reconciliation": reconciliationViewOf(rc)})
		return
	}
	await(r, rc)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"reconciliation": reconciliationViewOf(rc),
		"sheets":         rc.Sheets(),
	})
}

// openSheet makes id the session's open sheet, loading the vocabulary the
// first time so totals have heads to group by.
func (s *Server) openSheet(r *http.Request, st *ledger.Store, id string) error {
	if !st.VocabularyLoaded() {
		if _, err := st.LoadValidation(r.Context()); err != nil {
			return err
		}
	}
	if st.OpenSheetID() == id {
		return nil
	}
	_, err := st.OpenSheet(r.Context(), id)
	return err
}

// handleGetSheet always reloads the sheet, making it the open one.
func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	id := pathParam(r, "id")
	if !st.VocabularyLoaded() {
		if _, err := st.LoadValidation(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	items, err := st.OpenSheet(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"id":     id,
		"items":  s.itemsView(items),
		"totals": s.totalsView(st.Totals()),
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := s.openSheet(r, st, pathParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.totalsView(st.Totals()))
}
