// internal/app/system/insights/client.go
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a webhook reply is read.
const maxResponseBytes = 256 << 10

var errNotConfigured = errors.New("insights webhook url not configured")

// Request is the JSON payload posted to the workflow webhook.
type Request struct {
	RequestID      string `json:"request_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	TeamID         string `json:"team_id"`
	TeamName       string `json:"team_name"`
	AttendanceDays int    `json:"attendance_days"`
	PeriodDays     int    `json:"period_days"`
}

// Result is a normalized set of insights and where they came from.
type Result struct {
	Insights []string
	Source   string // models.InsightSourceWebhook or models.InsightSourceFallback
}

// Client posts attendance statistics to an external workflow and
// normalizes whatever it answers with.
type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

// NewClient returns a client for url. An empty url makes every Fetch use
// fallback insights.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// Configured reports whether a webhook url is set.
func (c *Client) Configured() bool { return c.url != "" }

// Fetch asks the webhook for insights. It never fails: on any error the
// result is synthesized from the request's statistics.
func (c *Client) Fetch(ctx context.Context, req Request) Result {
	lines, err := c.post(ctx, req)
	if err == nil && len(lines) > 0 {
		return Result{Insights: lines, Source: models.InsightSourceWebhook}
	}
	if err == nil {
		err = errors.New("webhook returned no usable insights")
	}
	if !errors.Is(err, errNotConfigured) {
		c.log.Warn("insights webhook failed; using fallback",
			zap.String("request_id", req.RequestID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
	}
	return Result{Insights: Fallback(req), Source: models.InsightSourceFallback}
}

func (c *Client) post(ctx context.Context, req Request) ([]string, error) {
	if c.url == "" {
		return nil, errNotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return Normalize(raw), nil
}
