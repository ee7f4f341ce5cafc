package handlers

import (
	"net/http"

	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// SetUserVerified handles PUT /api/users/{user}/verification
//
// Owner only. Setting the same status twice is accepted and emits a
// second UserVerified event.
func (s *Server) SetUserVerified(w http.ResponseWriter, r *http.Request) {
	var req models.SetVerifiedRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := middleware.GetPrincipal(r.Context())
	user := pathPrincipal(r)
	if err := s.Ledger.SetUserVerified(r.Context(), caller, user, req.Verified); err != nil {
		s.respondLedgerError(w, r, err)
		return
	}

	acct, err := s.Ledger.Account(r.Context(), user)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, acct)
}

// GetAccount handles GET /api/users/{user}
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.Ledger.Account(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, acct)
}

// GetHistory handles GET /api/users/{user}/history
//
// Replays the audit trail: every committed event naming the user, either as
// subject or as reviewer.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.Audit.History(r.Context(), pathPrincipal(r))
	if err != nil {
		s.logger().ErrorContext(r.Context(), "read audit history", "err", err)
		respondError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	respond(w, http.StatusOK, events)
}
