package handlers

import (
	"net/http"

	"github.com/Elizabethomito/gigledger/internal/middleware"
)

// Routes registers every endpoint on a Go 1.22+ ServeMux, which supports
// method prefixes ("GET /path") and path wildcards ("{user}") natively.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public routes, no token required.
	mux.HandleFunc("POST /api/auth/register", s.Register)
	mux.HandleFunc("POST /api/auth/login", s.Login)
	mux.HandleFunc("GET /api/users/{user}", s.GetAccount)
	mux.HandleFunc("GET /api/users/{user}/projects", s.ListProjects)
	mux.HandleFunc("GET /api/users/{user}/projects/count", s.GetProjectCount)
	mux.HandleFunc("GET /api/users/{user}/projects/verified-count", s.GetVerifiedProjectCount)
	mux.HandleFunc("GET /api/users/{user}/projects/{index}", s.GetProject)
	mux.HandleFunc("GET /api/users/{user}/reviews", s.ListReviews)
	mux.HandleFunc("GET /api/users/{user}/badges", s.ListBadges)
	mux.HandleFunc("GET /api/badges/{id}", s.GetBadge)
	mux.HandleFunc("GET /api/hashes/{hash}", s.GetHashStatus)
	if s.Audit != nil {
		mux.HandleFunc("GET /api/users/{user}/history", s.GetHistory)
	}
	if s.Stream != nil {
		mux.Handle("GET /api/stream", s.Stream)
	}

	// Authenticated. The ledger decides whether the caller may proceed.
	auth := middleware.Authenticate(s.Secret)
	mux.Handle("GET /api/auth/me", auth(http.HandlerFunc(s.Me)))
	mux.Handle("PUT /api/users/{user}/verification", auth(http.HandlerFunc(s.SetUserVerified)))
	mux.Handle("POST /api/users/{user}/projects", auth(http.HandlerFunc(s.AddProject)))
	mux.Handle("POST /api/users/{user}/projects/{index}/verification", auth(http.HandlerFunc(s.VerifyProject)))
	mux.Handle("POST /api/users/{user}/reviews", auth(http.HandlerFunc(s.SubmitReview)))
	mux.Handle("POST /api/users/{user}/badges", auth(http.HandlerFunc(s.MintBadge)))
	mux.Handle("POST /api/admin/invites", auth(http.HandlerFunc(s.CreateInvite)))
	if s.EnableSeed {
		mux.Handle("POST /api/admin/seed", auth(http.HandlerFunc(s.SeedDemo)))
	}

	return mux
}
