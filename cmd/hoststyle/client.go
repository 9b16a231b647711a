package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/hoststyle/internal/api"
	"github.com/kalambet/hoststyle/internal/config"
	"github.com/kalambet/hoststyle/internal/profile"
)

// errNoReport is returned by report when the host has no tracked meetings.
var errNoReport = errors.New("no report yet")

// apiClient talks to a running `hoststyle serve`.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL:    strings.TrimRight(cfg.Remote.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is hoststyle serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// health returns nil when the server and its database are up.
func (c *apiClient) health(ctx context.Context) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("server status %q", body.Status)
	}
	return nil
}

func (c *apiClient) hosts(ctx context.Context) ([]api.HostSummary, error) {
	resp, err := c.get(ctx, "/api/hosts")
	if err != nil {
		return nil, err
	}
	var hosts []api.HostSummary
	if err := decodeJSON(resp, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// report fetches the stored report of hostID, or errNoReport.
func (c *apiClient) report(ctx context.Context, hostID string) (*profile.Report, error) {
	resp, err := c.get(ctx, "/api/host-style/"+url.PathEscape(hostID)+"/report")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errNoReport
	}
	var report profile.Report
	if err := decodeJSON(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// enqueueMeeting queues a tracking cycle on the server and returns the job id.
func (c *apiClient) enqueueMeeting(ctx context.Context, hostID string, session json.RawMessage) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/host-style/"+url.PathEscape(hostID)+"/meetings?async=true", session)
	if err != nil {
		return "", err
	}
	var queued struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &queued); err != nil {
		return "", err
	}
	return queued.ID, nil
}

func (c *apiClient) job(ctx context.Context, id string) (api.JobStatus, error) {
	resp, err := c.get(ctx, "/api/jobs/"+url.PathEscape(id))
	if err != nil {
		return api.JobStatus{}, err
	}
	var status api.JobStatus
	if err := decodeJSON(resp, &status); err != nil {
		return api.JobStatus{}, err
	}
	return status, nil
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
