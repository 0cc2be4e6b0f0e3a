// Package rtdb talks to a Firebase Realtime Database over its REST and
// streaming (server-sent events) API.
package rtdb

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

	"github.com/rs/zerolog"
)

var ErrNoBaseURL = errors.New("rtdb: database URL not configured")

// StatusError is returned when the database answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rtdb: unexpected status %d: %s", e.Code, e.Body)
}

// Client handles reads and writes against one database.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	// streams stay open indefinitely, so they get a client without a timeout
	streamClient *http.Client
	log          zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

// New creates a client for the database at baseURL. authToken may be empty for
// databases with public rules.
func New(baseURL, authToken string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		authToken:    authToken,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		log:          log.With().Str("component", "rtdb").Logger(),
		minBackoff:   time.Second,
		maxBackoff:   30 * time.Second,
	}
}

func (c *Client) endpoint(path string) (string, error) {
	if c.baseURL == "" {
		return "", ErrNoBaseURL
	}
	u, err := url.Parse(c.baseURL + "/" + strings.Trim(path, "/") + ".json")
	if err != nil {
		return "", fmt.Errorf("rtdb: bad path %q: %w", path, err)
	}
	if c.authToken != "" {
		q := u.Query()
		q.Set("auth", c.authToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Set overwrites the value stored at path.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("rtdb: marshal %s: %w", path, err)
	}
	u, err := c.endpoint(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rtdb: set %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Get decodes the value stored at path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	u, err := c.endpoint(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rtdb: get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rtdb: decode %s: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
