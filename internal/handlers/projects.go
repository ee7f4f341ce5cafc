package handlers

import (
	"net/http"

	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// AddProject handles POST /api/users/{user}/projects
//
// Body: {"client": "...", "content_hash": "...", "link": "..."}
// Owner only, and only for a verified user. The response carries the new
// project's index.
func (s *Server) AddProject(w http.ResponseWriter, r *http.Request) {
	var req models.AddProjectRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := middleware.GetPrincipal(r.Context())
	idx, err := s.Ledger.AddProject(r.Context(), caller, pathPrincipal(r), req.Client, req.ContentHash, req.Link)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, models.AddProjectResponse{Index: idx})
}

// VerifyProject handles POST /api/users/{user}/projects/{index}/verification
//
// Owner only. Body: {"verified": true}. A content hash can be verified at
// most once across all users; a second attempt returns 409.
func (s *Server) VerifyProject(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	var req models.SetVerifiedRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := middleware.GetPrincipal(r.Context())
	user := pathPrincipal(r)
	if err := s.Ledger.VerifyProject(r.Context(), caller, user, idx, req.Verified); err != nil {
		s.respondLedgerError(w, r, err)
		return
	}

	p, err := s.Ledger.Project(r.Context(), user, idx)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

// ListProjects handles GET /api/users/{user}/projects
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Ledger.Projects(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, projects)
}

// GetProject handles GET /api/users/{user}/projects/{index}
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	p, err := s.Ledger.Project(r.Context(), pathPrincipal(r), idx)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

// GetProjectCount handles GET /api/users/{user}/projects/count
func (s *Server) GetProjectCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.Ledger.ProjectCount(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, models.CountResponse{Count: uint64(n)})
}

// GetVerifiedProjectCount handles GET /api/users/{user}/projects/verified-count
func (s *Server) GetVerifiedProjectCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.Ledger.VerifiedProjectCount(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, models.CountResponse{Count: n})
}

// GetHashStatus handles GET /api/hashes/{hash}
func (s *Server) GetHashStatus(w http.ResponseWriter, r *http.Request) {
	h := r.PathValue("hash")
	verified, err := s.Ledger.IsHashVerified(r.Context(), h)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, models.HashStatusResponse{ContentHash: h, Verified: verified})
}
