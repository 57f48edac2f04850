package bootstrap

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "teampulse",
		SessionKey:         "a-session-key-that-is-long-enough-for-prod",
		JWTSecret:          "a-jwt-secret-that-is-long-enough-for-prod",
		BaseURL:            "https://api.teampulse.example",
		AttendanceTimezone: "America/Chicago",
		CachePath:          "./data/cache.db",
		CachePruneInterval: time.Hour,
	}
}

func TestValidateAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "valid dev", env: "dev", mutate: func(*AppConfig) {}},
		{name: "valid prod", env: "prod", mutate: func(*AppConfig) {}},
		{name: "bad timezone", env: "dev", mutate: func(c *AppConfig) { c.AttendanceTimezone = "Mars/Olympus" }, wantErr: "attendance_timezone"},
		{name: "relative base url", env: "dev", mutate: func(c *AppConfig) { c.BaseURL = "/api" }, wantErr: "base_url"},
		{name: "bad webhook url", env: "dev", mutate: func(c *AppConfig) { c.InsightsWebhookURL = "ftp://x" }, wantErr: "insights_webhook_url"},
		{name: "no cache path", env: "dev", mutate: func(c *AppConfig) { c.CachePath = " " }, wantErr: "cache_path"},
		{name: "trusted proxies", env: "dev", mutate: func(c *AppConfig) { c.TrustedProxies = "10.0.0.0/8, 192.0.2.1" }},
		{name: "bad trusted proxy", env: "dev", mutate: func(c *AppConfig) { c.TrustedProxies = "10.0.0.0/99" }, wantErr: "trusted_proxies"},
		{name: "zero prune interval", env: "dev", mutate: func(c *AppConfig) { c.CachePruneInterval = 0 }, wantErr: "cache_prune_interval"},
		{name: "negative prune interval", env: "dev", mutate: func(c *AppConfig) { c.CachePruneInterval = -time.Minute }, wantErr: "cache_prune_interval"},
		{name: "short jwt secret in prod", env: "prod", mutate: func(c *AppConfig) { c.JWTSecret = "short" }, wantErr: "jwt_secret"},
		{name: "short jwt secret in dev", env: "dev", mutate: func(c *AppConfig) { c.JWTSecret = "short" }},
		{name: "dev session key in prod", env: "prod", mutate: func(c *AppConfig) {
			c.SessionKey = "dev-only-change-me-please-0123456789ABCDEF"
		}, wantErr: "session_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAppConfig()
			tt.mutate(&cfg)
			err := validateAppConfig(tt.env, cfg, zap.NewNop())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAppConfigKeys_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range appConfigKeys {
		if seen[k.Name] {
			t.Errorf("duplicate config key %q", k.Name)
		}
		seen[k.Name] = true
	}
	for _, want := range []string{"mongo_uri", "jwt_secret", "github_client_id", "attendance_timezone", "insights_webhook_url", "assistant_api_key", "cache_path"} {
		if !seen[want] {
			t.Errorf("missing config key %q", want)
		}
	}
}
