package me_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/teampulse/internal/app/features/me"
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/teampulse/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*me.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-jwt-secret-must-be-32-chars-long", "teampulse", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	sm.SetTokenIssuer(tokens)

	return me.NewHandler(db, sm, logger), testutil.NewFixtures(t, db)
}

func TestServeMe(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "newbie", "")

	rec := httptest.NewRecorder()
	h.ServeMe(rec, testutil.WithUser(testutil.NewRequest(http.MethodGet, "/me"), u))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		User      models.User `json:"user"`
		NeedsRole bool        `json:"needs_role"`
	}
	testutil.DecodeJSON(t, rec, &body)
	if body.User.Login != "newbie" {
		t.Errorf("login: got %q", body.User.Login)
	}
	if !body.NeedsRole {
		t.Error("expected needs_role for a user without a role")
	}
}

func TestServeMe_Unauthenticated(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeMe(rec, testutil.NewRequest(http.MethodGet, "/me"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServeSetRole_FirstSelection(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "picker", "")

	req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPut, "/me/role", map[string]string{"role": "admin"}), u)
	rec := httptest.NewRecorder()
	h.ServeSetRole(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	testutil.DecodeJSON(t, rec, &body)
	if body.User.Role != models.RoleAdmin {
		t.Errorf("role: got %q", body.User.Role)
	}
	claims, err := h.SessionMgr.Tokens().Parse(body.Token)
	if err != nil {
		t.Fatalf("parse new token: %v", err)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("token role: got %q", claims.Role)
	}
}

func TestServeSetRole_AlreadySet(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateMember(ctx, "settled")

	req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPut, "/me/role", map[string]string{"role": "admin"}), u)
	rec := httptest.NewRecorder()
	h.ServeSetRole(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestServeSetRole_Invalid(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "unsure", "")

	tests := []struct {
		name string
		body any
	}{
		{"missing role", map[string]string{}},
		{"unknown role", map[string]string{"role": "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPut, "/me/role", tt.body), u)
			rec := httptest.NewRecorder()
			h.ServeSetRole(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestRoutes_RequireSignedIn(t *testing.T) {
	h, _ := newTestHandler(t)
	r := me.Routes(h, h.SessionMgr)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
