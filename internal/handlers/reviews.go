package handlers

import (
	"net/http"

	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
)

// SubmitReview handles POST /api/users/{user}/reviews
//
// The caller is the reviewer. They must be verified, the content hash must
// be globally verified, and each reviewer may review a hash only once.
func (s *Server) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitReviewRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := middleware.GetPrincipal(r.Context())
	freelancer := pathPrincipal(r)
	err := s.Ledger.SubmitReview(r.Context(), caller, freelancer, req.ContentHash, req.Rating, req.CommentHash)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, models.Review{
		Reviewer:    caller,
		ContentHash: req.ContentHash,
		Rating:      req.Rating,
		CommentHash: req.CommentHash,
	})
}

// ListReviews handles GET /api/users/{user}/reviews
func (s *Server) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.Ledger.Reviews(r.Context(), pathPrincipal(r))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, reviews)
}
