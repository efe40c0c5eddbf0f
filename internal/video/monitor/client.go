package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/video"
)

// Client provides HTTP operations against a running monitor server. It is
// used by tooling that drives a long segmentation run remotely.
type Client struct {
	HTTPClient httputil.HTTPClient
	BaseURL    string
	StreamID   string
}

// NewClient creates a new monitoring client. A nil httpClient falls back to
// a standard client with a 30s timeout.
func NewClient(httpClient httputil.HTTPClient, baseURL, streamID string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second})
	}
	return &Client{
		HTTPClient: httpClient,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		StreamID:   streamID,
	}
}

// endpoint builds a request URL with the client's stream_id appended.
func (c *Client) endpoint(path string) string {
	u := c.BaseURL + path
	if c.StreamID == "" {
		return u
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return u + sep + "stream_id=" + url.QueryEscape(c.StreamID)
}

// getJSON issues a GET and decodes a JSON body into out.
func (c *Client) getJSON(path string, out interface{}) error {
	resp, err := c.HTTPClient.Get(c.endpoint(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// postExpectOK issues a POST with no body and checks for 200.
func (c *Client) postExpectOK(path string) error {
	resp, err := c.HTTPClient.Post(c.endpoint(path), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// FetchModelStatus retrieves model-level statistics for the stream.
func (c *Client) FetchModelStatus() (map[string]interface{}, error) {
	var status map[string]interface{}
	if err := c.getJSON("/api/model/status", &status); err != nil {
		return nil, fmt.Errorf("fetch model status: %w", err)
	}
	return status, nil
}

// FetchMetrics retrieves up to limit recent per-frame metrics, oldest first.
func (c *Client) FetchMetrics(limit int) ([]video.MaskMetrics, error) {
	path := "/api/model/metrics"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var payload struct {
		StreamID string              `json:"stream_id"`
		Count    int                 `json:"count"`
		Metrics  []video.MaskMetrics `json:"metrics"`
	}
	if err := c.getJSON(path, &payload); err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	return payload.Metrics, nil
}

// FetchHeatmap retrieves the block-aggregated foreground heatmap.
func (c *Client) FetchHeatmap(blockSize int) (*video.ForegroundHeatmap, error) {
	path := "/api/model/heatmap"
	if blockSize > 0 {
		path += "?block_size=" + strconv.Itoa(blockSize)
	}
	var hm video.ForegroundHeatmap
	if err := c.getJSON(path, &hm); err != nil {
		return nil, fmt.Errorf("fetch heatmap: %w", err)
	}
	return &hm, nil
}

// TriggerPersist asks the server to persist a model snapshot now.
func (c *Client) TriggerPersist() error {
	if err := c.postExpectOK("/api/model/persist"); err != nil {
		return fmt.Errorf("trigger persist: %w", err)
	}
	return nil
}

// ResetModel asks the server to discard the stream's model state.
func (c *Client) ResetModel() error {
	if err := c.postExpectOK("/api/model/reset"); err != nil {
		return fmt.Errorf("reset model: %w", err)
	}
	return nil
}

// WaitForHealthy polls /health until the server responds OK or the timeout
// elapses.
func (c *Client) WaitForHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := c.HTTPClient.Get(c.BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("monitor at %s not healthy after %s", c.BaseURL, timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}
