// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries everything specific to TeamPulse: the Mongo
// connection, session and token secrets, GitHub OAuth, the attendance time
// zone, the insights webhook, the assistant model and the local cache.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration (browser OAuth flow)
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: teampulse-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bearer tokens for the mobile client
	JWTSecret string
	JWTTTL    time.Duration

	// GitHub OAuth
	GitHubClientID       string
	GitHubClientSecret   string
	BaseURL              string // public URL of this API, used for the OAuth callback
	MobileRedirectPrefix string // allowed deep-link prefix for the mobile login (e.g., "teampulse://")

	// Attendance days are calendar days in this IANA zone (e.g., "America/Chicago").
	AttendanceTimezone string

	// Performance insights webhook
	InsightsWebhookURL     string
	InsightsWebhookTimeout time.Duration

	// Chat assistant
	AssistantAPIKey string
	AssistantModel  string

	// Comma-separated CIDRs of reverse proxies whose X-Forwarded-For is
	// trusted when rate limiting by client IP. Blank trusts nobody.
	TrustedProxies string

	// Local SQLite cache
	CachePath          string
	CachePruneInterval time.Duration
	CacheInsightsTTL   time.Duration // stored reports older than this are pruned
	CacheChatTTL       time.Duration // assistant messages older than this are pruned

	// Per-operation timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
