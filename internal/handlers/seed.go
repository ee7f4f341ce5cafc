package handlers

// SeedDemo handles POST /api/admin/seed
//
// This endpoint is ONLY for demos. It drives the ledger through its normal
// operations, as the owner, so the demo starts from a known state:
//
//	Freelancer : 0xF4EE1A2CE4000000000000000000000000000001 (password demo1234)
//	             → verified, five verified projects, milestone badges 3 and 5
//	Client     : 0xC11E270000000000000000000000000000000002 (password demo1234)
//	             → verified, has reviewed the first two projects
//
// The endpoint is idempotent. Each step first checks whether the ledger
// already holds its result, so calling it twice adds nothing and never
// trips AlreadyVerified. A DuplicateReview from the review step counts as
// already applied.

import (
	"errors"
	"net/http"
	"time"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	SeedFreelancer models.Principal = "0xF4EE1A2CE4000000000000000000000000000001"
	SeedClient     models.Principal = "0xC11E270000000000000000000000000000000002"
	SeedPassword                    = "demo1234"
)

// seedProjects are registered for SeedFreelancer in this order.
var seedProjects = []models.AddProjectRequest{
	{Client: SeedClient, ContentHash: "bafy-seed-landing-page", Link: "https://example.test/work/landing-page"},
	{Client: SeedClient, ContentHash: "bafy-seed-mobile-app", Link: "https://example.test/work/mobile-app"},
	{Client: SeedClient, ContentHash: "bafy-seed-api-gateway", Link: "https://example.test/work/api-gateway"},
	{Client: SeedClient, ContentHash: "bafy-seed-data-pipeline", Link: "https://example.test/work/data-pipeline"},
	{Client: SeedClient, ContentHash: "bafy-seed-smart-contract", Link: "https://example.test/work/smart-contract"},
}

// seedReviewed is how many of the seeded projects SeedClient reviews.
const seedReviewed = 2

type seedResponse struct {
	Freelancer models.Account `json:"freelancer"`
	Client     models.Account `json:"client"`
	Badges     []models.Badge `json:"badges"`
}

// SeedDemo handles POST /api/admin/seed
func (s *Server) SeedDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetPrincipal(ctx)
	// Owner only. The reviews below are submitted as SeedClient.
	if caller != s.Ledger.Owner() {
		s.respondLedgerError(w, r, ledger.ErrUnauthorized)
		return
	}

	// ── Accounts ─────────────────────────────────────────────────────────
	for _, p := range []models.Principal{SeedFreelancer, SeedClient} {
		acct, err := s.Ledger.Account(ctx, p)
		if err != nil {
			s.respondLedgerError(w, r, err)
			return
		}
		if acct.Verified {
			continue
		}
		if err := s.Ledger.SetUserVerified(ctx, caller, p, true); err != nil {
			s.respondLedgerError(w, r, err)
			return
		}
	}

	// ── Credentials ──────────────────────────────────────────────────────
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "bcrypt: "+err.Error())
		return
	}
	now := time.Now().UTC()
	for _, p := range []models.Principal{SeedFreelancer, SeedClient} {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT OR IGNORE INTO credentials (principal, password_hash, created_at) VALUES (?, ?, ?)`,
			string(p), string(hash), now,
		); err != nil {
			respondError(w, http.StatusInternalServerError, "could not store credentials")
			return
		}
	}

	// ── Projects ─────────────────────────────────────────────────────────
	count, err := s.Ledger.ProjectCount(ctx, SeedFreelancer)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	for _, p := range seedProjects[min(count, len(seedProjects)):] {
		if _, err := s.Ledger.AddProject(ctx, caller, SeedFreelancer, p.Client, p.ContentHash, p.Link); err != nil {
			s.respondLedgerError(w, r, err)
			return
		}
	}

	// ── Verification (mints the milestone badges) ────────────────────────
	projects, err := s.Ledger.Projects(ctx, SeedFreelancer)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	for _, p := range projects {
		done, err := s.Ledger.IsHashVerified(ctx, p.ContentHash)
		if err != nil {
			s.respondLedgerError(w, r, err)
			return
		}
		if p.Verified || done {
			continue
		}
		if err := s.Ledger.VerifyProject(ctx, caller, SeedFreelancer, p.Index, true); err != nil {
			s.respondLedgerError(w, r, err)
			return
		}
	}

	// ── Reviews ──────────────────────────────────────────────────────────
	// The reviewer mark is global, so SeedClient may already have reviewed a
	// seed hash under another freelancer. Either way the review is in place.
	for _, p := range seedProjects[:seedReviewed] {
		err := s.Ledger.SubmitReview(ctx, SeedClient, SeedFreelancer, p.ContentHash, 5, "bafy-comment-"+p.ContentHash)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateReview) {
			s.respondLedgerError(w, r, err)
			return
		}
	}

	var resp seedResponse
	if resp.Freelancer, err = s.Ledger.Account(ctx, SeedFreelancer); err == nil {
		if resp.Client, err = s.Ledger.Account(ctx, SeedClient); err == nil {
			resp.Badges, err = s.Ledger.Badges(ctx, SeedFreelancer)
		}
	}
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}

	s.logger().InfoContext(ctx, "demo data seeded",
		"freelancer", SeedFreelancer,
		"verified_projects", resp.Freelancer.VerifiedProjectCount,
		"badges", len(resp.Badges),
	)
	respond(w, http.StatusOK, resp)
}
