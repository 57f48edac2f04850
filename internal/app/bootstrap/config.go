// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/teampulse/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

// minProdSecretLen is the shortest session key or JWT secret accepted when
// env=prod.
const minProdSecretLen = 32

// appConfigKeys defines the configuration keys for TeamPulse.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TEAMPULSE_MONGO_URI, TEAMPULSE_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "teampulse", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "teampulse-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789", Desc: "HS256 secret for mobile bearer tokens"},
	{Name: "jwt_ttl", Default: "720h", Desc: "Bearer token lifetime"},

	// GitHub OAuth configuration
	{Name: "github_client_id", Default: "", Desc: "GitHub OAuth app client ID"},
	{Name: "github_client_secret", Default: "", Desc: "GitHub OAuth app client secret"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of the API (OAuth callback host)"},
	{Name: "mobile_redirect_prefix", Default: "teampulse://", Desc: "Allowed redirect_uri prefix for mobile logins (blank disables)"},

	// Attendance
	{Name: "attendance_timezone", Default: "UTC", Desc: "IANA time zone that defines an attendance day"},

	// Insights webhook
	{Name: "insights_webhook_url", Default: "", Desc: "Workflow webhook that returns performance insights (blank uses fallback insights)"},
	{Name: "insights_webhook_timeout", Default: "30s", Desc: "Insights webhook request timeout"},

	// Chat assistant
	{Name: "assistant_api_key", Default: "", Desc: "Gemini API key for the chat assistant (blank disables it)"},
	{Name: "assistant_model", Default: "gemini-2.5-flash", Desc: "Gemini model name"},

	// Client IP resolution
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated proxy CIDRs whose X-Forwarded-For is trusted (blank trusts none)"},

	// Local cache
	{Name: "cache_path", Default: "./data/teampulse-cache.db", Desc: "SQLite file for the local insights and chat cache"},
	{Name: "cache_prune_interval", Default: "1h", Desc: "How often stale cache rows are pruned"},
	{Name: "cache_insights_ttl", Default: "168h", Desc: "Age after which cached insight reports are deleted"},
	{Name: "cache_chat_ttl", Default: "720h", Desc: "Age after which assistant messages are deleted"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list queries"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for webhook and assistant calls"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TEAMPULSE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TEAMPULSE", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTTTL:    appValues.Duration("jwt_ttl", 30*24*time.Hour),

		GitHubClientID:       appValues.String("github_client_id"),
		GitHubClientSecret:   appValues.String("github_client_secret"),
		BaseURL:              appValues.String("base_url"),
		MobileRedirectPrefix: appValues.String("mobile_redirect_prefix"),

		AttendanceTimezone: appValues.String("attendance_timezone"),

		InsightsWebhookURL:     appValues.String("insights_webhook_url"),
		InsightsWebhookTimeout: appValues.Duration("insights_webhook_timeout", 30*time.Second),

		AssistantAPIKey: appValues.String("assistant_api_key"),
		AssistantModel:  appValues.String("assistant_model"),

		TrustedProxies: appValues.String("trusted_proxies"),

		CachePath:          appValues.String("cache_path"),
		CachePruneInterval: appValues.Duration("cache_prune_interval", time.Hour),
		CacheInsightsTTL:   appValues.Duration("cache_insights_ttl", 7*24*time.Hour),
		CacheChatTTL:       appValues.Duration("cache_chat_ttl", 30*24*time.Hour),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI and attendance time zone are checked here so mistakes
// surface before any connection is attempted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	return validateAppConfig(coreCfg.Env, appCfg, logger)
}

func validateAppConfig(env string, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if _, err := time.LoadLocation(appCfg.AttendanceTimezone); err != nil {
		return fmt.Errorf("invalid attendance_timezone %q: %w", appCfg.AttendanceTimezone, err)
	}

	if !urlutil.IsValidAbsHTTPURL(appCfg.BaseURL) {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", appCfg.BaseURL)
	}
	if appCfg.InsightsWebhookURL != "" && !urlutil.IsValidAbsHTTPURL(appCfg.InsightsWebhookURL) {
		return fmt.Errorf("insights_webhook_url must be an absolute http(s) URL, got %q", appCfg.InsightsWebhookURL)
	}

	if strings.TrimSpace(appCfg.CachePath) == "" {
		return fmt.Errorf("cache_path is required")
	}
	if _, err := ratelimit.ParseTrustedProxies(appCfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}

	if appCfg.CachePruneInterval <= 0 {
		return fmt.Errorf("cache_prune_interval must be positive, got %s", appCfg.CachePruneInterval)
	}

	if env == "prod" {
		if len(appCfg.JWTSecret) < minProdSecretLen {
			return fmt.Errorf("jwt_secret must be at least %d characters in prod", minProdSecretLen)
		}
		if len(appCfg.SessionKey) < minProdSecretLen || strings.HasPrefix(appCfg.SessionKey, "dev-only") {
			return fmt.Errorf("session_key must be a random value of at least %d characters in prod", minProdSecretLen)
		}
		if appCfg.GitHubClientID == "" || appCfg.GitHubClientSecret == "" {
			logger.Warn("GitHub OAuth is not configured; nobody can sign in")
		}
	}

	return nil
}
