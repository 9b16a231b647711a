package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxProfileBody caps how much of a remote response is decoded.
const maxProfileBody = 4 << 20

// RemoteStore is the primary tier for clients: it talks to the profile API
// served by `hoststyle serve`.
type RemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteStore creates a RemoteStore targeting baseURL. A zero timeout
// defaults to 5 seconds.
func NewRemoteStore(baseURL string, timeout time.Duration) *RemoteStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewRemoteStoreWithClient creates a RemoteStore using a caller-supplied
// HTTP client (for testing).
func NewRemoteStoreWithClient(baseURL string, client *http.Client) *RemoteStore {
	return &RemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

func (s *RemoteStore) profileURL(hostID string) string {
	return s.baseURL + "/api/host-style/" + url.PathEscape(hostID)
}

// Fetch retrieves a profile. A 404 maps to ErrNotFound; any other non-2xx
// status, transport error, or malformed body is returned as an error.
func (s *RemoteStore) Fetch(ctx context.Context, hostID string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.profileURL(hostID), nil)
	if err != nil {
		return Profile{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Profile{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Profile{}, fmt.Errorf("profile API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// Write stores a profile with PUT.
func (s *RemoteStore) Write(ctx context.Context, hostID string, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.profileURL(hostID), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("profile API returned %d", resp.StatusCode)
	}
	return nil
}
