package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Elizabethomito/gigledger/internal/auth"
	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/middleware"
	"github.com/Elizabethomito/gigledger/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// minPasswordLen applies to registered and configured passwords alike.
const minPasswordLen = 8

// Register handles POST /api/auth/register
//
// Credentials only prove who the caller is. Registering does not create or
// verify a ledger account; that is the owner's job. A principal can only be
// registered with the one-time invite code the owner issued for it, and the
// owner principal itself is never registrable: its password comes from
// configuration (see ProvisionOwner).
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Principal = models.Principal(strings.TrimSpace(string(req.Principal)))
	if req.Principal == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "principal and password are required")
		return
	}
	if len(req.Password) < minPasswordLen {
		respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Principal == s.Ledger.Owner() {
		respondError(w, http.StatusForbidden, "principal is reserved")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	ctx := r.Context()
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is a no-op after Commit succeeds

	var codeHash string
	err = tx.QueryRowContext(ctx,
		`SELECT code_hash FROM invites WHERE principal = ?`, string(req.Principal),
	).Scan(&codeHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	// Same answer for a missing invite and a wrong code.
	if errors.Is(err, sql.ErrNoRows) ||
		bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(req.InviteCode)) != nil {
		respondError(w, http.StatusForbidden, "invalid invite code")
		return
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (principal, password_hash, created_at) VALUES (?, ?, ?)`,
		string(req.Principal), string(hash), time.Now().UTC(),
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			respondError(w, http.StatusConflict, "principal already registered")
			return
		}
		respondError(w, http.StatusInternalServerError, "could not store credentials")
		return
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invites WHERE principal = ?`, string(req.Principal)); err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "could not store credentials")
		return
	}

	s.issueToken(w, r, http.StatusCreated, req.Principal)
}

// CreateInvite handles POST /api/admin/invites
//
// Owner only. Issues a fresh one-time registration code for a principal
// that has no credentials yet, replacing any earlier unredeemed code. The
// code is returned once and only its bcrypt hash is kept.
func (s *Server) CreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if middleware.GetPrincipal(ctx) != s.Ledger.Owner() {
		s.respondLedgerError(w, r, ledger.ErrUnauthorized)
		return
	}

	var req models.InviteRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Principal = models.Principal(strings.TrimSpace(string(req.Principal)))
	if req.Principal == "" {
		respondError(w, http.StatusBadRequest, "principal is required")
		return
	}
	if req.Principal == s.Ledger.Owner() {
		respondError(w, http.StatusForbidden, "principal is reserved")
		return
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM credentials WHERE principal = ?)`, string(req.Principal),
	).Scan(&exists); err != nil {
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}
	if exists {
		respondError(w, http.StatusConflict, "principal already registered")
		return
	}

	code := uuid.NewString()
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash invite code")
		return
	}
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO invites (principal, code_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET code_hash = excluded.code_hash, created_at = excluded.created_at`,
		string(req.Principal), string(codeHash), time.Now().UTC(),
	); err != nil {
		respondError(w, http.StatusInternalServerError, "could not store invite")
		return
	}

	s.logger().InfoContext(ctx, "invite issued", "principal", req.Principal)
	respond(w, http.StatusCreated, models.InviteResponse{Principal: req.Principal, Code: code})
}

// ProvisionOwner stores password as the owner's credential, replacing any
// earlier one. cmd/server calls it at startup with OWNER_PASSWORD.
func (s *Server) ProvisionOwner(ctx context.Context, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("owner password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash owner password: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO credentials (principal, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(principal) DO UPDATE SET password_hash = excluded.password_hash`,
		string(s.Ledger.Owner()), string(hash), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("store owner credentials: %w", err)
	}
	return nil
}

// Login handles POST /api/auth/login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Principal = models.Principal(strings.TrimSpace(string(req.Principal)))

	var hash string
	err := s.DB.QueryRowContext(r.Context(),
		`SELECT password_hash FROM credentials WHERE principal = ?`, string(req.Principal),
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.issueToken(w, r, http.StatusOK, req.Principal)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, status int, p models.Principal) {
	token, err := auth.GenerateToken(string(p), s.Secret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not generate token")
		return
	}
	acct, err := s.Ledger.Account(r.Context(), p)
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, status, models.LoginResponse{Token: token, Account: acct})
}

// Me handles GET /api/auth/me
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := s.Ledger.Account(r.Context(), middleware.GetPrincipal(r.Context()))
	if err != nil {
		s.respondLedgerError(w, r, err)
		return
	}
	respond(w, http.StatusOK, acct)
}
