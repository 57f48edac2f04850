package authgithub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/teampulse/internal/app/features/authgithub"
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token exchange and /user endpoints.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer","scope":"read:user"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":583231,"login":"octocat","name":"The Octocat","email":"octo@example.com","avatar_url":"https://avatars.example/1"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHandler(t *testing.T) *authgithub.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-jwt-secret-must-be-32-chars-long", "teampulse", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer failed: %v", err)
	}
	sessionMgr.SetTokenIssuer(tokens)

	h := authgithub.NewHandler(db, sessionMgr,
		"test-client-id", "test-client-secret",
		"http://localhost:8080/", "teampulse://", logger)

	gh := fakeGitHub(t)
	h.Endpoint = oauth2.Endpoint{
		AuthURL:   gh.URL + "/login/oauth/authorize",
		TokenURL:  gh.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	h.UserAPIURL = gh.URL + "/user"
	return h
}

// startLogin runs ServeLogin and returns the state GitHub would echo back.
func startLogin(t *testing.T, h *authgithub.Handler, target string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("ServeLogin status: got %d, body %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in redirect URL")
	}
	return state
}

func TestNewHandler_RedirectURL(t *testing.T) {
	h := newTestHandler(t)
	if h.RedirectURL != "http://localhost:8080/auth/github/callback" {
		t.Errorf("RedirectURL: got %q", h.RedirectURL)
	}
	if !h.IsConfigured() {
		t.Error("expected handler to be configured")
	}
}

func TestServeLogin_NotConfigured(t *testing.T) {
	h := newTestHandler(t)
	h.ClientID = ""

	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/github", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServeLogin_RedirectsToGitHub(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/github", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, h.Endpoint.AuthURL) {
		t.Errorf("Location should point at the authorize URL, got %q", loc)
	}
	if !strings.Contains(loc, "client_id=test-client-id") {
		t.Errorf("Location missing client_id: %q", loc)
	}
}

func TestServeLogin_RejectsForeignRedirect(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/github?redirect_uri=https://evil.example/steal", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServeCallback_IssuesToken(t *testing.T) {
	h := newTestHandler(t)
	state := startLogin(t, h, "/auth/github")

	rec := httptest.NewRecorder()
	h.ServeCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback?state="+state+"&code=good-code", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Token     string `json:"token"`
		NeedsRole bool   `json:"needs_role"`
		User      struct {
			Login    string `json:"login"`
			GitHubID int64  `json:"github_id"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Token == "" {
		t.Error("expected a bearer token")
	}
	if !body.NeedsRole {
		t.Error("a first login should need a role")
	}
	if body.User.Login != "octocat" || body.User.GitHubID != 583231 {
		t.Errorf("unexpected user: %+v", body.User)
	}

	claims, err := h.SessionMgr.Tokens().Parse(body.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Login != "octocat" {
		t.Errorf("token login: got %q", claims.Login)
	}

	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected a session cookie for browser clients")
	}
}

func TestServeCallback_StateIsSingleUse(t *testing.T) {
	h := newTestHandler(t)
	state := startLogin(t, h, "/auth/github")
	target := "/auth/github/callback?state=" + state + "&code=good-code"

	first := httptest.NewRecorder()
	h.ServeCallback(first, httptest.NewRequest(http.MethodGet, target, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first callback: got %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeCallback(second, httptest.NewRequest(http.MethodGet, target, nil))
	if second.Code != http.StatusBadRequest {
		t.Errorf("replayed state: expected 400, got %d", second.Code)
	}
}

func TestServeCallback_MobileRedirect(t *testing.T) {
	h := newTestHandler(t)
	state := startLogin(t, h, "/auth/github?redirect_uri="+url.QueryEscape("teampulse://auth"))

	rec := httptest.NewRecorder()
	h.ServeCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback?state="+state+"&code=good-code", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if loc.Scheme != "teampulse" {
		t.Errorf("expected deep link, got %q", loc.String())
	}
	if loc.Query().Get("token") == "" {
		t.Error("expected token in deep link")
	}
	if loc.Query().Get("needs_role") != "true" {
		t.Errorf("needs_role: got %q", loc.Query().Get("needs_role"))
	}
}

func TestServeCallback_Errors(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"denied by user", "/auth/github/callback?error=access_denied", http.StatusUnauthorized},
		{"missing code", "/auth/github/callback?state=abc", http.StatusBadRequest},
		{"unknown state", "/auth/github/callback?state=nope&code=good-code", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeCallback(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServeCallback_BadCode(t *testing.T) {
	h := newTestHandler(t)
	state := startLogin(t, h, "/auth/github")

	rec := httptest.NewRecorder()
	h.ServeCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/github/callback?state="+state+"&code=bad-code", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
