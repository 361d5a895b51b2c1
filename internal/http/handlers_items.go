package http

import (
	"fmt"
	"net/http"
	"strings"

	"costledger/internal/core"
	"costledger/internal/ledger"
)

// requireOpen rejects writes aimed at a sheet the session has not opened.
func requireOpen(st *ledger.Store, id string) error {
	if open := st.OpenSheetID(); open == "" || open != id {
		return &ledger.ValidationError{Field: "costSheetId", Err: fmt.Errorf("%w: %s", ledger.ErrNoOpenSheet, id)}
	}
	return nil
}

// handleSearchItems lists the open sheet's active items, filtered by ?q=.
func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := s.openSheet(r, st, pathParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": s.itemsView(st.Search(r.URL.Query().Get("q")))})
}

// handleAddItem adds the body's line item under head, or the staged draft
// when there is no body.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	id, head := pathParam(r, "id"), pathParam(r, "head")
	if err := requireOpen(st, id); err != nil {
		writeError(w, r, err)
		return
	}

	var draft core.LineItem
	present, err := decodeBody(w, r, &draft)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !present {
		draft = st.Draft(head)
	}

	rc, err := st.AddLineItem(r.Context(), head, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReconciled(w, r, st, rc)
}

// handleDeleteItem soft-deletes every item with ?particular=. The response
// reports how many local rows went away.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	id := pathParam(r, "id")
	if err := requireOpen(st, id); err != nil {
		writeError(w, r, err)
		return
	}
	rc, err := st.SoftDeleteLineItem(r.Context(), core.LineItem{
		CostSheetID: id,
		Particular:  r.URL.Query().Get("particular"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReconciled(w, r, st, rc)
}

func (s *Server) writeReconciled(w http.ResponseWriter, r *http.Request, st *ledger.Store, rc *ledger.Reconciliation) {
	status := http.StatusAccepted
	if waitRequested(r) {
		await(r, rc)
		status = http.StatusOK
	}
	writeJSON(w, r, status, map[string]any{
		"reconciliation": reconciliationViewOf(rc),
		"items":          s.itemsView(st.Items()),
		"totals":         s.totalsView(st.Totals()),
	})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft := s.session(w, r).Draft(pathParam(r, "head"))
	writeJSON(w, r, http.StatusOK, map[string]any{
		"draft":   draft,
		"preview": s.itemView(core.ComputeLineItem(draft)),
	})
}

// handlePutDraft stages fields for head and returns the computed preview.
func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	head := strings.TrimSpace(pathParam(r, "head"))
	if head == "" {
		badRequest(w, r, "head is required")
		return
	}
	var fields core.LineItem
	if _, err := decodeBody(w, r, &fields); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	preview := s.session(w, r).SetDraft(head, fields)
	writeJSON(w, r, http.StatusOK, map[string]any{"preview": s.itemView(preview)})
}

func (s *Server) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	s.session(w, r).ResetDraft(pathParam(r, "head"))
	w.WriteHeader(http.StatusNoContent)
}
