// Package handlers contains the HTTP handler logic for the ledger API.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE: package structure
// ────────────────────────────────────────────────────────────────────
// All handler files share the same "handlers" package so they can call
// each other's helpers freely without exporting them. The files are
// split by resource (auth, users, projects, reviews, badges) purely for
// readability.
//
// Handlers never decide who may do what. They authenticate the caller
// (middleware), decode the request, call the ledger with the caller's
// principal, and translate the ledger's sentinel errors to HTTP status
// codes in respondLedgerError.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
	"github.com/Elizabethomito/gigledger/internal/notify"
)

// respond writes v as JSON with the given HTTP status code.
// Content-Type must be set before WriteHeader flushes the headers.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// A client that disconnected mid-write is not worth an error log.
	_ = json.NewEncoder(w).Encode(body)
}

// respondError sends a JSON object with a single "error" key,
// e.g. {"error": "invalid JSON"}.
func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

// respondCode adds a machine-readable code next to the message.
func respondCode(w http.ResponseWriter, status int, code, msg string) {
	respond(w, status, map[string]string{"error": msg, "code": code})
}

// ledgerErrors maps each precondition failure to its status and code.
var ledgerErrors = []struct {
	err    error
	status int
	code   string
}{
	{ledger.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{ledger.ErrUserNotVerified, http.StatusUnprocessableEntity, "UserNotVerified"},
	{ledger.ErrReviewerNotVerified, http.StatusUnprocessableEntity, "ReviewerNotVerified"},
	{ledger.ErrProjectNotVerified, http.StatusUnprocessableEntity, "ProjectNotVerified"},
	{ledger.ErrIndexOutOfRange, http.StatusNotFound, "IndexOutOfRange"},
	{ledger.ErrAlreadyVerified, http.StatusConflict, "AlreadyVerified"},
	{ledger.ErrDuplicateReview, http.StatusConflict, "DuplicateReview"},
	{ledger.ErrInvalidArgument, http.StatusBadRequest, "InvalidArgument"},
}

// respondLedgerError translates a ledger error. Anything that is not a
// precondition failure is logged and reported as a 500 without details.
func (s *Server) respondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	for _, le := range ledgerErrors {
		if errors.Is(err, le.err) {
			respondCode(w, le.status, le.code, err.Error())
			return
		}
	}
	s.logger().ErrorContext(r.Context(), "ledger failure", "path", r.URL.Path, "err", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// decode reads and parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pathPrincipal reads the {user} wildcard.
func pathPrincipal(r *http.Request) models.Principal {
	return models.Principal(r.PathValue("user"))
}

// pathIndex reads the {index} wildcard as a non-negative integer.
func pathIndex(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Server holds shared dependencies for all handlers.
// Tests spin up many independent Server instances without state leaking
// between them.
type Server struct {
	// DB holds the credentials table. Ledger state is only reached
	// through Ledger.
	DB     *sql.DB
	Ledger *ledger.Ledger
	// Secret is the HMAC key used to sign and verify JWTs.
	Secret string
	// Audit answers history queries; nil disables the history route.
	Audit *notify.AuditLog
	// Stream serves the live notification WebSocket; nil disables it.
	Stream http.Handler
	// EnableSeed registers the demo seed route.
	EnableSeed bool
	Log        *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
