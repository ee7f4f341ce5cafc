package handlers

import (
	"net/http"
	"strconv"

	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// MintBadge handles POST /api/users/{user}/badges
//
// Owner only. Body: {"uri": "ipfs://..."}. Milestone badges are minted
// by VerifyProject and never through this route.
func (s *Server) MintBadge(w http.ResponseWriter, r *http.Request) {
	var req models.MintBadgeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := middleware.GetPrincipal(r.Context())
	b, err := s.Ledger.MintBadge(r.Context(), caller, pathPrincipal(r), req.URI)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, b)
}

// ListBadges handles GET /api/users/{user}/badges
func (s *Server) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.Ledger.Badges(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, badges)
}

// GetBadge handles GET /api/badges/{id}
func (s *Server) GetBadge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	b, ok, err := s.Ledger.Badge(r.Context(), id)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "badge not found")
		return
	}
	respond(w, http.StatusOK, b)
}
