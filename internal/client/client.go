// Package client talks to a running pulse server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/store"
)

const (
	DefaultServerURL = "http://127.0.0.1:37780"
	httpTimeout      = 5 * time.Second
)

// Client talks to the pulse server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL falls back to the
// PULSE_URL env var, then DefaultServerURL.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("PULSE_URL")
	}
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Observe submits an observation and returns the resulting export.
func (c *Client) Observe(obs engine.Observation) (*engine.ExportedProfile, error) {
	body, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("encode observation: %w", err)
	}
	data, err := c.Post("/api/observations", body)
	if err != nil {
		return nil, err
	}
	var p engine.ExportedProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Profile fetches the privacy-shaped profile.
func (c *Client) Profile() (*engine.ExportedProfile, error) {
	var p engine.ExportedProfile
	if err := c.getJSON("/api/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DebugProfile fetches the raw debug view.
func (c *Client) DebugProfile() (*engine.DebugProfile, error) {
	var p engine.DebugProfile
	if err := c.getJSON("/api/profile/debug", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Match fetches the matching export.
func (c *Client) Match() (*engine.MatchingExport, error) {
	var m engine.MatchingExport
	if err := c.getJSON("/api/match", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Tags fetches the n strongest tags.
func (c *Client) Tags(n int) ([]engine.TagView, error) {
	var body struct {
		Tags []engine.TagView `json:"tags"`
	}
	if err := c.getJSON("/api/tags?n="+strconv.Itoa(n), &body); err != nil {
		return nil, err
	}
	return body.Tags, nil
}

// Observations fetches the observation audit log. An empty session returns
// the most recent rows across sessions.
func (c *Client) Observations(session string, limit int) ([]store.ObservationLog, error) {
	q := url.Values{}
	if session != "" {
		q.Set("session", session)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/observations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var body struct {
		Observations []store.ObservationLog `json:"observations"`
	}
	if err := c.getJSON(path, &body); err != nil {
		return nil, err
	}
	return body.Observations, nil
}

// Export looks up the audit row for an export commitment.
func (c *Client) Export(commitment string) (*store.Export, error) {
	var e store.Export
	if err := c.getJSON("/api/exports/"+url.PathEscape(commitment), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) getJSON(path string, v any) error {
	data, err := c.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
