// internal/app/features/authgithub/handler.go
package authgithub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/teampulse/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/teampulse/internal/app/store/users"
	"github.com/dalemusser/teampulse/internal/app/system/apiio"
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateTTL          = 10 * time.Minute
	defaultUserAPIURL = "https://api.github.com/user"
)

// Handler handles GitHub OAuth authentication.
type Handler struct {
	Users      *userstore.Store
	StateStore *oauthstate.Store
	SessionMgr *auth.SessionManager
	Log        *zap.Logger

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://api.teampulse.app/auth/github/callback"

	// MobileRedirectPrefix allow-lists app deep links (e.g. "teampulse://")
	// that may receive the token after login. Empty disables deep links.
	MobileRedirectPrefix string

	// Overridable for tests.
	Endpoint   oauth2.Endpoint
	UserAPIURL string
}

// NewHandler creates a new GitHub OAuth handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	clientID, clientSecret, baseURL, mobileRedirectPrefix string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:                userstore.New(db),
		StateStore:           oauthstate.New(db),
		SessionMgr:           sessionMgr,
		Log:                  logger,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		RedirectURL:          strings.TrimRight(baseURL, "/") + "/auth/github/callback",
		MobileRedirectPrefix: mobileRedirectPrefix,
		Endpoint:             github.Endpoint,
		UserAPIURL:           defaultUserAPIURL,
	}
}

// oauth2Config returns the GitHub OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     h.Endpoint,
	}
}

// IsConfigured returns true if GitHub OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/github                                                             |
| Starts the OAuth flow by redirecting to GitHub's consent screen.             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("GitHub OAuth not configured")
		apiio.WriteError(w, http.StatusServiceUnavailable, apiio.KindTransient, "GitHub login is not configured")
		return
	}

	redirectURI := query.Get(r, "redirect_uri")
	if redirectURI != "" && !h.allowedRedirect(redirectURI) {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "redirect_uri is not allowed")
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, state, redirectURI, time.Now().UTC().Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating GitHub OAuth flow",
		zap.String("redirect_url", url),
		zap.Bool("mobile", redirectURI != ""))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/github/callback                                                    |
| Exchanges the code, loads the GitHub profile, upserts the user, writes the   |
| browser session and issues a bearer token for the mobile client.             |
*─────────────────────────────────────────────────────────────────────────────*/

// loginResponse is the JSON body returned after a successful login.
type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
	NeedsRole bool        `json:"needs_role"`
}

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("GitHub OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "GitHub login was denied")
		return
	}

	state := query.Get(r, "state")
	code := query.Get(r, "code")
	if state == "" || code == "" {
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "missing state or code")
		return
	}

	stateCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	redirectURI, valid, err := h.StateStore.Consume(stateCtx, state)
	cancel()
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		apiio.WriteError(w, http.StatusBadRequest, apiio.KindValidation, "invalid or expired login state")
		return
	}

	exCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	token, err := h.oauth2Config().Exchange(exCtx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		apiio.WriteError(w, http.StatusUnauthorized, apiio.KindAuth, "could not complete GitHub login")
		return
	}

	profile, err := h.fetchGitHubUser(exCtx, token)
	if err != nil {
		h.Log.Error("failed to fetch GitHub user", zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, timeouts.Short())
	defer dbCancel()

	u, err := h.Users.UpsertGitHub(dbCtx, profile)
	if err != nil {
		h.Log.Error("failed to upsert user", zap.Int64("github_id", profile.ID), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	su := auth.SessionUser{ID: u.ID.Hex(), Login: u.Login, Name: u.DisplayName(), Role: u.Role}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		// The bearer token still works; only the browser cookie is missing.
		h.Log.Warn("save session failed", zap.String("user_id", su.ID), zap.Error(err))
	}

	tokens := h.SessionMgr.Tokens()
	if tokens == nil {
		h.Log.Error("token issuer not configured")
		apiio.WriteUnavailable(w)
		return
	}
	bearer, exp, err := tokens.Issue(su)
	if err != nil {
		h.Log.Error("failed to issue token", zap.String("user_id", su.ID), zap.Error(err))
		apiio.WriteUnavailable(w)
		return
	}

	h.Log.Info("user logged in via GitHub",
		zap.String("user_id", su.ID),
		zap.String("login", u.Login),
		zap.Bool("needs_role", u.Role == ""))

	if redirectURI != "" {
		dest := urlutil.AddOrSetQueryParams(redirectURI, map[string]string{
			"token":      bearer,
			"expires_at": strconv.FormatInt(exp.Unix(), 10),
			"needs_role": strconv.FormatBool(u.Role == ""),
		})
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}

	apiio.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     bearer,
		ExpiresAt: exp,
		User:      u,
		NeedsRole: u.Role == "",
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// githubUser is the subset of https://api.github.com/user we read.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (h *Handler) fetchGitHubUser(ctx context.Context, token *oauth2.Token) (userstore.GitHubProfile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserAPIURL, nil)
	if err != nil {
		return userstore.GitHubProfile{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return userstore.GitHubProfile{}, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userstore.GitHubProfile{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var gu githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return userstore.GitHubProfile{}, fmt.Errorf("decode user: %w", err)
	}
	if gu.ID == 0 || gu.Login == "" {
		return userstore.GitHubProfile{}, fmt.Errorf("incomplete GitHub profile")
	}
	return userstore.GitHubProfile{
		ID:        gu.ID,
		Login:     gu.Login,
		Name:      gu.Name,
		Email:     gu.Email,
		AvatarURL: gu.AvatarURL,
	}, nil
}

func (h *Handler) allowedRedirect(uri string) bool {
	return h.MobileRedirectPrefix != "" && strings.HasPrefix(uri, h.MobileRedirectPrefix)
}

// generateState creates a random, URL-safe state string.
func generateState() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", fmt.Errorf("random source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
