// Package tracesource fetches replay data from a remote replay API.
package tracesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// Client retrieves ReplayData over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	maxTries   uint
	backoff    func() backoff.BackOff
	logger     *slog.Logger
}

// NewClient creates a client for baseURL. A non-positive timeout disables
// the per-attempt deadline; retries is the number of extra attempts.
func NewClient(baseURL, token string, timeout time.Duration, retries int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		timeout:    timeout,
		maxTries:   uint(max(retries, 0)) + 1,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		logger: slog.Default().With("component", "tracesource"),
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// GetReplayData fetches the replay data for runID. A 404 maps to
// domain.ErrRunNotFound; any other failure wraps domain.ErrTraceUnavailable.
func (c *Client) GetReplayData(ctx context.Context, runID string) (*domain.ReplayData, error) {
	endpoint := fmt.Sprintf("%s/v1/runs/%s/replay", c.baseURL, url.PathEscape(runID))

	attempt := 0
	data, err := backoff.Retry(ctx, func() (*domain.ReplayData, error) {
		attempt++
		data, err := c.fetch(ctx, endpoint)
		if err == nil {
			return data, nil
		}
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn("replay fetch failed", "run_id", runID, "attempt", attempt, "error", err)
		return nil, err
	}, backoff.WithBackOff(c.backoff()), backoff.WithMaxTries(c.maxTries))

	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTraceUnavailable, err)
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*domain.ReplayData, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var data domain.ReplayData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode replay data: %w", err))
	}
	return &data, nil
}
