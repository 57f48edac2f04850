package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
)

// PutInsights stores r, replacing any earlier report for the same user and team.
func (c *Cache) PutInsights(ctx context.Context, r models.InsightReport) error {
	payload, err := json.Marshal(r.Insights)
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}
	source := r.Source
	if source == "" {
		source = models.InsightSourceWebhook
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO insights (user_id, team_id, payload, fetched_at, source)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, team_id) DO UPDATE SET
			payload    = excluded.payload,
			fetched_at = excluded.fetched_at,
			source     = excluded.source`,
		r.UserID, r.TeamID, string(payload), r.FetchedAt.UnixMilli(), source)
	return err
}

// GetInsights returns the cached report, or nil if there is none.
func (c *Cache) GetInsights(ctx context.Context, userID, teamID string) (*models.InsightReport, error) {
	var (
		payload string
		fetched int64
		source  string
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at, source FROM insights
		WHERE user_id = ? AND team_id = ?`, userID, teamID).Scan(&payload, &fetched, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := &models.InsightReport{
		UserID:    userID,
		TeamID:    teamID,
		Source:    source,
		FetchedAt: time.UnixMilli(fetched).UTC(),
	}
	if err := json.Unmarshal([]byte(payload), &r.Insights); err != nil {
		return nil, fmt.Errorf("decode cached insights: %w", err)
	}
	return r, nil
}

// PruneInsights deletes reports fetched before cutoff.
func (c *Cache) PruneInsights(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM insights WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
