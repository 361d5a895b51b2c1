package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

const (
	maxBodyBytes = 1 << 20
	maxWait      = 30 * time.Second
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks the backend and the journal.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.gw == nil {
		checks["gateway"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if _, err := s.gw.GetValidation(ctx); err != nil {
		checks["gateway"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["gateway"] = "ok"
	}

	if s.journal == nil {
		checks["journal"] = "disabled"
	} else if err := s.journal.Ping(ctx); err != nil {
		checks["journal"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["journal"] = "ok"
	}

	limits := s.limiter.GetMetrics()
	requests := s.tracer.GetMetrics()
	checks["sessions"] = s.sessions.Size()
	checks["rate_limiter"] = map[string]any{"clients": limits.ClientCount, "rejected": limits.Rejected}
	checks["requests"] = map[string]any{"total": requests.TotalRequests, "server_errors": requests.ServerErrors}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	vocab, err := s.session(w, r).LoadValidation(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vocab)
}

// handleRefresh reloads the vocabulary, the sheet list and the open sheet.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	st := s.session(w, r)
	if err := st.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"openSheetId": st.OpenSheetID(),
		"sheets":      st.Sheets(),
		"items":       s.itemsView(st.Items()),
	})
}

// pathParam returns an unescaped URL parameter; heads may contain spaces
// and ampersands.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func waitRequested(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return ok
}

// await blocks until rc settles, the client goes away or maxWait passes. A
// failed read-back is reported through the reconciliation itself.
func await(r *http.Request, rc *ledger.Reconciliation) {
	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	if err := rc.Wait(ctx); err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Reconciliation not settled",
			applog.FieldAction, rc.Action,
			applog.FieldError, err)
	}
}

// decodeBody reads an optional JSON body into dst. It reports whether a
// body was present.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) (bool, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return false, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return true, fmt.Errorf("invalid JSON body: %w", err)
	}
	return true, nil
}
