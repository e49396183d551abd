package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultPath is the refresh endpoint path relative to the API base URL.
const DefaultPath = "/auth/refresh"

var (
	// ErrRefreshRejected is wrapped by every non-2xx refresh response.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrRefreshMalformed is returned when a 2xx body lacks an access token.
	ErrRefreshMalformed = errors.New("refresh response malformed")
)

// StatusError reports a non-2xx response from the refresh endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("refresh rejected: status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrRefreshRejected
}

// Pair is the refresh endpoint's success body.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Renewer exchanges a refresh token for a new pair.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (Pair, error)
}

// Client calls the refresh endpoint with its own plain *http.Client so the
// call never passes through a [Coordinator] transport.
type Client struct {
	http     *http.Client
	endpoint string
}

// NewClient returns a [Client] posting to baseURL + path. An empty path uses
// [DefaultPath]; a nil httpClient uses a zero *http.Client.
func NewClient(baseURL, path string, httpClient *http.Client) *Client {
	if path == "" {
		path = DefaultPath
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		http:     httpClient,
		endpoint: strings.TrimSuffix(baseURL, "/") + path,
	}
}

// Endpoint returns the absolute refresh URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return Pair{}, err
	}
	req, err := http.NewRequestWithContext(skipRefresh(ctx), http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Pair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Pair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Pair{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var pair Pair
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&pair); err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrRefreshMalformed, err)
	}
	if pair.AccessToken == "" {
		return Pair{}, ErrRefreshMalformed
	}
	return pair, nil
}
