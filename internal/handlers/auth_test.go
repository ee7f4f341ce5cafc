package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Elizabethomito/gigledger/internal/auth"
	"github.com/Elizabethomito/gigledger/internal/db"
	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
)

const (
	testSecret = "handler-test-secret"
	testOwner  = models.Principal("0x0WNER")
)

var testDBCounter uint64

// newTestServer creates a Server backed by a unique in-memory SQLite database.
func newTestServer(t *testing.T, opts ...ledger.Option) *Server {
	t.Helper()
	// Each test gets its own named shared-cache memory DB so tests never
	// see each other's tables.
	id := atomic.AddUint64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:handlertest%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", id)
	testDB, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("newTestServer: open db: %v", err)
	}
	testDB.SetMaxOpenConns(1)
	t.Cleanup(func() { testDB.Close() })

	l, err := ledger.Open(context.Background(), db.NewStore(testDB), testOwner, opts...)
	if err != nil {
		t.Fatalf("newTestServer: open ledger: %v", err)
	}
	return &Server{DB: testDB, Ledger: l, Secret: testSecret, EnableSeed: true}
}

// jsonBody encodes v to JSON and returns a bytes.Buffer.
func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if v == nil {
		return buf
	}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

// tokenFor signs a JWT for p, as Login would.
func tokenFor(t *testing.T, p models.Principal) string {
	t.Helper()
	tok, err := auth.GenerateToken(string(p), testSecret)
	if err != nil {
		t.Fatalf("tokenFor: %v", err)
	}
	return tok
}

// do sends a request through the full router. token may be empty.
func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeInto fails the test unless the response body decodes into v.
func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

// inviteFor has the owner issue an invite code for p.
func inviteFor(t *testing.T, h http.Handler, p models.Principal) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/admin/invites", tokenFor(t, testOwner), models.InviteRequest{Principal: p})
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite %s: expected 201, got %d: %s", p, rec.Code, rec.Body.String())
	}
	var resp models.InviteResponse
	decodeInto(t, rec, &resp)
	return resp.Code
}

// register invites p and registers it with password.
func register(t *testing.T, h http.Handler, p models.Principal, password string) *httptest.ResponseRecorder {
	t.Helper()
	code := inviteFor(t, h, p)
	return do(t, h, http.MethodPost, "/api/auth/register", "",
		models.RegisterRequest{Principal: p, Password: password, InviteCode: code})
}

// ---- Auth handler tests ----

func TestRegister_Success(t *testing.T) {
	srv := newTestServer(t)
	rec := register(t, srv.Routes(), "0xA11CE", "password123")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.LoginResponse
	decodeInto(t, rec, &resp)
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.Account.Principal != "0xA11CE" {
		t.Errorf("principal: got %q", resp.Account.Principal)
	}
	// Registering does not make anyone verified.
	if resp.Account.Verified {
		t.Error("new registration should not be verified")
	}
}

func TestRegister_InviteIsSingleUse(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()
	code := inviteFor(t, h, "0xB0B")
	req := models.RegisterRequest{Principal: "0xB0B", Password: "password123", InviteCode: code}

	if rec := do(t, h, http.MethodPost, "/api/auth/register", "", req); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/api/auth/register", "", req); rec.Code != http.StatusForbidden {
		t.Errorf("reused code: expected 403, got %d", rec.Code)
	}
	// No second invite for a registered principal.
	rec := do(t, h, http.MethodPost, "/api/admin/invites", tokenFor(t, testOwner), models.InviteRequest{Principal: "0xB0B"})
	if rec.Code != http.StatusConflict {
		t.Errorf("invite after registration: expected 409, got %d", rec.Code)
	}
}

func TestRegister_RequiresMatchingInvite(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()
	bobCode := inviteFor(t, h, "0xB0B")

	cases := []models.RegisterRequest{
		{Principal: "0xEVE", Password: "password123"},
		{Principal: "0xEVE", Password: "password123", InviteCode: "not-a-code"},
		{Principal: "0xEVE", Password: "password123", InviteCode: bobCode},
		{Principal: "0xB0B", Password: "password123", InviteCode: "not-a-code"},
	}
	for _, c := range cases {
		rec := do(t, h, http.MethodPost, "/api/auth/register", "", c)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%+v: expected 403, got %d", c, rec.Code)
		}
	}

	// A fresh invite replaces the earlier one.
	newCode := inviteFor(t, h, "0xB0B")
	rec := do(t, h, http.MethodPost, "/api/auth/register", "",
		models.RegisterRequest{Principal: "0xB0B", Password: "password123", InviteCode: bobCode})
	if rec.Code != http.StatusForbidden {
		t.Errorf("replaced code: expected 403, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/auth/register", "",
		models.RegisterRequest{Principal: "0xB0B", Password: "password123", InviteCode: newCode})
	if rec.Code != http.StatusCreated {
		t.Errorf("current code: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_OwnerRejected(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()

	rec := do(t, h, http.MethodPost, "/api/auth/register", "",
		models.RegisterRequest{Principal: testOwner, Password: "password123"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/admin/invites", tokenFor(t, testOwner), models.InviteRequest{Principal: testOwner})
	if rec.Code != http.StatusForbidden {
		t.Errorf("owner invite: expected 403, got %d", rec.Code)
	}
	// Nobody can log in as the owner without a provisioned password.
	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: testOwner, Password: "password123"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("owner login: expected 401, got %d", rec.Code)
	}
}

func TestCreateInvite_OwnerOnly(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()

	rec := do(t, h, http.MethodPost, "/api/admin/invites", tokenFor(t, "0xEVE"), models.InviteRequest{Principal: "0xEVE"})
	expectCode(t, rec, http.StatusForbidden, "Unauthorized")

	if rec := do(t, h, http.MethodPost, "/api/admin/invites", "", models.InviteRequest{Principal: "0xEVE"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/admin/invites", tokenFor(t, testOwner), models.InviteRequest{Principal: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty principal: expected 400, got %d", rec.Code)
	}
}

func TestProvisionOwner(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()
	ctx := context.Background()

	if err := srv.ProvisionOwner(ctx, "short"); err == nil {
		t.Error("expected short password to be rejected")
	}
	if err := srv.ProvisionOwner(ctx, "first-password"); err != nil {
		t.Fatalf("ProvisionOwner: %v", err)
	}
	// A restart with a new OWNER_PASSWORD replaces the old one.
	if err := srv.ProvisionOwner(ctx, "second-password"); err != nil {
		t.Fatalf("ProvisionOwner again: %v", err)
	}

	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: testOwner, Password: "first-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old password: expected 401, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: testOwner, Password: "second-password"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.LoginResponse
	decodeInto(t, rec, &resp)

	// The issued token carries owner rights.
	rec = do(t, h, http.MethodPut, "/api/users/0xA11CE/verification", resp.Token, models.SetVerifiedRequest{Verified: true})
	if rec.Code != http.StatusOK {
		t.Errorf("owner operation: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_Validation(t *testing.T) {
	srv := newTestServer(t)
	cases := []models.RegisterRequest{
		{Principal: "", Password: "password123"},
		{Principal: "0xA11CE", Password: ""},
		{Principal: "0xA11CE", Password: "short"},
	}
	for _, c := range cases {
		rec := do(t, srv.Routes(), http.MethodPost, "/api/auth/register", "", c)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%+v: expected 400, got %d", c, rec.Code)
		}
	}
}

func TestLogin_Success(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()
	register(t, h, "0xCAR0L", "securepass")

	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: "0xCAR0L", Password: "securepass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.LoginResponse
	decodeInto(t, rec, &resp)

	claims, err := auth.ParseToken(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Principal() != "0xCAR0L" {
		t.Errorf("token subject: got %q", claims.Principal())
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()
	register(t, h, "0xDAVE", "correctpass")

	rec := do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: "0xDAVE", Password: "wrongpass"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "",
		models.LoginRequest{Principal: "0xNOBODY", Password: "whatever1"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown principal: expected 401, got %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Routes()

	if rec := do(t, h, http.MethodGet, "/api/auth/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	if err := srv.Ledger.SetUserVerified(context.Background(), testOwner, "0xA11CE", true); err != nil {
		t.Fatalf("SetUserVerified: %v", err)
	}
	rec := do(t, h, http.MethodGet, "/api/auth/me", tokenFor(t, "0xA11CE"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var acct models.Account
	decodeInto(t, rec, &acct)
	if acct.Principal != "0xA11CE" || !acct.Verified {
		t.Errorf("unexpected account: %+v", acct)
	}
}
