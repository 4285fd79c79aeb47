// Package api is the HTTP client for the backend snapshot endpoints.
//
// Both endpoints answer with an envelope {success, data}. A transport
// failure, a non-200 status or an undecodable body is returned as an error.
// A well-formed envelope with success=false yields ErrUnsuccessful so callers
// can skip that endpoint without treating it as a failure.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/dropwatch/internal/feed"
)

// DefaultLimit is the number of posts requested per snapshot.
const DefaultLimit = 50

// ErrUnsuccessful reports an envelope with success=false.
var ErrUnsuccessful = errors.New("api: backend reported success=false")

const userAgent = "dropwatch/1.0"

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// envelope is the response wrapper shared by every endpoint.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// Client fetches stats and post snapshots.
type Client struct {
	base    *url.URL
	limit   int
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithLimit sets the posts limit query parameter.
func WithLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit paces outgoing requests.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		base:    u,
		limit:   DefaultLimit,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Limit returns the posts limit sent with each snapshot request.
func (c *Client) Limit() int {
	return c.limit
}

// Stats fetches GET /api/stats.
func (c *Client) Stats(ctx context.Context) (feed.Stats, error) {
	var env envelope[feed.Stats]
	if err := c.get(ctx, "/api/stats", nil, &env); err != nil {
		return feed.Stats{}, fmt.Errorf("api: stats: %w", err)
	}
	if !env.Success {
		return feed.Stats{}, fmt.Errorf("api: stats: %w", unsuccessful(env.Error))
	}
	return env.Data, nil
}

// Posts fetches GET /api/airdrop-tweets?limit=N.
func (c *Client) Posts(ctx context.Context) ([]feed.Post, error) {
	q := url.Values{"limit": {strconv.Itoa(c.limit)}}

	var env envelope[[]feed.Post]
	if err := c.get(ctx, "/api/airdrop-tweets", q, &env); err != nil {
		return nil, fmt.Errorf("api: posts: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("api: posts: %w", unsuccessful(env.Error))
	}
	return env.Data, nil
}

func unsuccessful(msg string) error {
	if msg == "" {
		return ErrUnsuccessful
	}
	return fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
