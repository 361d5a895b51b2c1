package http

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"costledger/internal/ledger"
	applog "costledger/internal/log"
)

// HeaderSessionID identifies the client view a request belongs to.
const HeaderSessionID = "X-Session-ID"

var validSessionID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,128}$`)

// session returns the caller's store, creating one for a new or missing
// session ID. The effective ID is echoed in the response.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *ledger.Store {
	id := r.Header.Get(HeaderSessionID)
	if !validSessionID.MatchString(id) {
		id = uuid.NewString()
	}
	w.Header().Set(HeaderSessionID, id)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return s.sessions.GetOrCreate(id, func() *ledger.Store {
		opts := s.storeOpts
		opts.Logger = s.logger.WithComponent(applog.ComponentLedger).With(applog.FieldSessionID, id).Slog()
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Session created", applog.FieldSessionID, id)
		return ledger.New(s.gw, opts)
	})
}

// closeSession runs when a session expires or is evicted. Pending
// reconciliations still finish and get recorded.
func (s *Server) closeSession(id string, st *ledger.Store) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			s.logger.WarnContext(ctx, "Evicted session did not settle", applog.FieldSessionID, id, applog.FieldError, err)
			return
		}
		s.logger.DebugContext(ctx, "Session closed", applog.FieldSessionID, id)
	}()
}
