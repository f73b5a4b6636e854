package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/camspipe/bridge/pkg/logger"
)

// recentRow mirrors the /recent response shape.
type recentRow struct {
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	TS         time.Time `json:"ts"`
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON fetches url and decodes the body into v.
func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// checkServiceHealth verifies the bridge is up and its components are
// healthy before publishing anything.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	var health struct {
		Status   string `json:"status"`
		Store    string `json:"store"`
		Consumer string `json:"consumer"`
	}
	if err := getJSON(ctx, client, config.BaseURL+"/health", &health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("service unhealthy: status=%s store=%s consumer=%s",
			health.Status, health.Store, health.Consumer)
	}
	return nil
}

// verifyRecent fetches /recent and checks that rows came back newest
// first and that the newest published student appears.
func verifyRecent(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying recent activity")

	client := newHTTPClient(config.Timeout)
	var rows []recentRow
	if err := getJSON(ctx, client, config.BaseURL+"/recent", &rows); err != nil {
		return err
	}
	stats.RecentRows = len(rows)

	if len(rows) == 0 {
		return fmt.Errorf("no rows on /recent after publishing %d events", stats.Published.Load())
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].TS.After(rows[i-1].TS) {
			return fmt.Errorf("rows not ordered newest first at index %d: %s after %s",
				i, rows[i].TS, rows[i-1].TS)
		}
	}

	if len(events) > 0 {
		newest := events[len(events)-1]
		found := false
		for _, r := range rows {
			if r.StudentID == newest.StudentID {
				found = true
				break
			}
		}
		if !found {
			log.Warn(ctx, "newest student not in recent window; consumer may still be catching up",
				logger.String("student", newest.StudentID))
		}
	}

	log.Info(ctx, "recent activity verified", logger.Int("rows", len(rows)))
	return nil
}

// fetchStats pulls /stats for the final report.
func fetchStats(ctx context.Context, config *Config) (map[string]interface{}, error) {
	client := newHTTPClient(config.Timeout)
	var body map[string]interface{}
	if err := getJSON(ctx, client, config.BaseURL+"/stats", &body); err != nil {
		return nil, err
	}
	return body, nil
}
