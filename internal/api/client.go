package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meshdash/internal/model"
)

const maxErrorBody = 512

// Client is a thin HTTP client for the capture service API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
// A zero timeout uses 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stats fetches the headline counters.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var resp model.Stats
	if err := c.getJSON(ctx, "/api/stats", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Nodes fetches every known node.
func (c *Client) Nodes(ctx context.Context) ([]model.Node, error) {
	var resp []model.Node
	if err := c.getJSON(ctx, "/api/nodes", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Traffic fetches recent traffic matching q.
func (c *Client) Traffic(ctx context.Context, q TrafficQuery) ([]model.TrafficRecord, error) {
	var resp []model.TrafficRecord
	if err := c.getJSON(ctx, "/api/traffic", q.values(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Positions fetches the latest position per node.
func (c *Client) Positions(ctx context.Context) ([]model.Position, error) {
	var resp []model.Position
	if err := c.getJSON(ctx, "/api/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// WatchList fetches joined detail for the given node ids, in order.
func (c *Client) WatchList(ctx context.Context, nodeIDs []string) ([]model.WatchItem, error) {
	var resp []model.WatchItem
	q := url.Values{}
	q.Set("nodes", strings.Join(nodeIDs, ","))
	if err := c.getJSON(ctx, "/api/watchlist", q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Metrics fetches the RF and airtime panel payload.
func (c *Client) Metrics(ctx context.Context) (model.Metrics, error) {
	var resp model.Metrics
	if err := c.getJSON(ctx, "/api/metrics", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// NodeTelemetry fetches the latest telemetry per category for one node.
func (c *Client) NodeTelemetry(ctx context.Context, nodeID string) (model.TelemetrySnapshot, error) {
	var resp model.TelemetrySnapshot
	q := url.Values{}
	q.Set("node", nodeID)
	if err := c.getJSON(ctx, "/api/node_telemetry", q, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := snippet(body)
		if msg != "" {
			return fmt.Errorf("request failed: %s: %s", res.Status, msg)
		}
		return fmt.Errorf("request failed: %s", res.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s (%s): %q: %w", path, res.Status, snippet(body), err)
	}
	return nil
}

func snippet(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
