// internal/domain/models/insight.go
package models

import "time"

// Insight sources.
const (
	InsightSourceWebhook  = "webhook"
	InsightSourceFallback = "fallback"
)

// InsightReport is the normalized set of performance insights for a user
// within a team. It is cached locally, not stored in MongoDB.
type InsightReport struct {
	UserID    string    `json:"user_id"`
	TeamID    string    `json:"team_id"`
	Insights  []string  `json:"insights"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}
