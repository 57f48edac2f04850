// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"time"

	assistantfeature "github.com/dalemusser/teampulse/internal/app/features/assistant"
	attendancefeature "github.com/dalemusser/teampulse/internal/app/features/attendance"
	authgithubfeature "github.com/dalemusser/teampulse/internal/app/features/authgithub"
	healthfeature "github.com/dalemusser/teampulse/internal/app/features/health"
	insightsfeature "github.com/dalemusser/teampulse/internal/app/features/insights"
	logoutfeature "github.com/dalemusser/teampulse/internal/app/features/logout"
	mefeature "github.com/dalemusser/teampulse/internal/app/features/me"
	teamsfeature "github.com/dalemusser/teampulse/internal/app/features/teams"
	userstore "github.com/dalemusser/teampulse/internal/app/store/users"
	assistantsvc "github.com/dalemusser/teampulse/internal/app/system/assistant"
	attendancesvc "github.com/dalemusser/teampulse/internal/app/system/attendance"
	"github.com/dalemusser/teampulse/internal/app/system/auth"
	insightsvc "github.com/dalemusser/teampulse/internal/app/system/insights"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// TeamPulse is a JSON API. The session middleware resolves the caller from
// a bearer token (mobile) or the session cookie (browser), then the feature
// routers for auth, teams, attendance, insights and the assistant are
// mounted.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, "teampulse", appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetTokenIssuer(tokens)

	// Reload the user on each request so a newly chosen role takes effect
	// for tokens issued before the choice.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	loc, err := time.LoadLocation(appCfg.AttendanceTimezone)
	if err != nil {
		return nil, fmt.Errorf("attendance timezone: %w", err)
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Cache, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	githubHandler := authgithubfeature.NewHandler(deps.MongoDatabase, sessionMgr,
		appCfg.GitHubClientID, appCfg.GitHubClientSecret, appCfg.BaseURL, appCfg.MobileRedirectPrefix, logger)
	if !githubHandler.IsConfigured() {
		logger.Warn("GitHub OAuth not configured; /auth/github will return 503")
	}
	r.Mount("/auth/github", authgithubfeature.Routes(githubHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/auth/logout", logoutfeature.Routes(logoutHandler))

	meHandler := mefeature.NewHandler(deps.MongoDatabase, sessionMgr, logger)
	r.Mount("/me", mefeature.Routes(meHandler, sessionMgr))

	// Teams and per-team attendance share the /teams prefix.
	attendanceSvc := attendancesvc.New(deps.MongoDatabase, loc)
	attendanceHandler := attendancefeature.NewHandler(attendanceSvc, deps.CodeLimiter, logger)
	teamsHandler := teamsfeature.NewHandler(deps.MongoDatabase, deps.CodeLimiter, logger)
	r.Route("/teams", func(tr chi.Router) {
		teamsfeature.MountRoutes(tr, teamsHandler, sessionMgr)
		attendancefeature.MountTeamRoutes(tr, attendanceHandler, sessionMgr)
	})
	r.Mount("/attendance", attendancefeature.Routes(attendanceHandler, sessionMgr))

	// Performance insights
	insightsClient := insightsvc.NewClient(appCfg.InsightsWebhookURL, appCfg.InsightsWebhookTimeout, logger)
	insightsHandler := insightsfeature.NewHandler(deps.MongoDatabase, deps.Cache, insightsClient, loc, logger)
	r.Mount("/insights", insightsfeature.Routes(insightsHandler, sessionMgr))

	// Chat assistant
	assistant := assistantsvc.New(deps.Cache, deps.Generator, logger)
	assistantHandler := assistantfeature.NewHandler(assistant, logger)
	r.Mount("/assistant", assistantfeature.Routes(assistantHandler, sessionMgr))

	return r, nil
}
