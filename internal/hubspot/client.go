// ABOUTME: HTTP client for the HubSpot CRM v3 tickets endpoints.
// ABOUTME: Adds bearer auth, rate limiting, list caching and upstream observation.

package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public HubSpot API host.
	DefaultBaseURL = "https://api.hubapi.com"

	// TicketsPath is the CRM v3 tickets collection.
	TicketsPath = "/crm/v3/objects/tickets"

	// MaxResponseBytes bounds how much of an upstream body is read.
	MaxResponseBytes = 10 << 20

	// MaxListLimit is the largest page size HubSpot accepts for object listings.
	MaxListLimit = 100

	defaultTimeout = 30 * time.Second
)

// ErrResponseTooLarge is returned when an upstream body exceeds MaxResponseBytes.
var ErrResponseTooLarge = errors.New("hubspot: response body too large")

// Observer receives one callback per upstream request.
// status is 0 when the request failed before a response arrived.
type Observer interface {
	ObserveUpstream(method string, status int, duration time.Duration)
}

// ResponseCache stores list responses keyed by query string.
type ResponseCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Purge()
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RateLimit is requests per second; zero or negative disables limiting.
	RateLimit float64
	Burst     int

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client

	// Cache, when set, holds successful list responses until a ticket is created.
	Cache    ResponseCache
	Observer Observer
}

// Client talks to the HubSpot tickets API.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	cache    ResponseCache
	observer Observer

	// cacheMu orders cache writes against invalidation; generation counts creates.
	cacheMu    sync.Mutex
	generation uint64
}

// New creates a Client. The token is required.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("hubspot: access token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("hubspot: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		baseURL:  baseURL,
		token:    cfg.Token,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		cache:    cfg.Cache,
		observer: cfg.Observer,
	}, nil
}

// ListOptions narrows a ticket listing. The zero value lists with HubSpot's defaults.
type ListOptions struct {
	Limit      int
	After      string
	Properties []string
	Archived   bool
}

// Query encodes the options as a URL query string.
func (o ListOptions) Query() url.Values {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.After != "" {
		q.Set("after", o.After)
	}
	if len(o.Properties) > 0 {
		q.Set("properties", strings.Join(o.Properties, ","))
	}
	if o.Archived {
		q.Set("archived", "true")
	}
	return q
}

// Validate reports options HubSpot would reject.
func (o ListOptions) Validate() error {
	if o.Limit < 0 || o.Limit > MaxListLimit {
		return fmt.Errorf("limit must be between 1 and %d", MaxListLimit)
	}
	return nil
}

// ListTickets fetches a page of tickets and returns the raw JSON body.
func (c *Client) ListTickets(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("hubspot: %w", err)
	}

	path := TicketsPath
	if q := opts.Query().Encode(); q != "" {
		path += "?" + q
	}

	var gen uint64
	if c.cache != nil {
		if body, ok := c.cache.Get(path); ok {
			return body, nil
		}
		gen = c.cacheGeneration()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.storeListing(gen, path, body)
	}
	return body, nil
}

// CreateTicket posts input verbatim as the request body and returns the raw JSON response.
// HubSpot expects the shape {"properties": {...}, "associations": [...]}.
func (c *Client) CreateTicket(ctx context.Context, input map[string]any) (json.RawMessage, error) {
	if input == nil {
		return nil, errors.New("hubspot: ticket input is required")
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("hubspot: encoding ticket: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, TicketsPath, payload)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.invalidate()
	}
	return body, nil
}

func (c *Client) cacheGeneration() uint64 {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.generation
}

// storeListing caches body unless a ticket was created since gen was read.
// A listing that raced a create may predate the new ticket.
func (c *Client) storeListing(gen uint64, path string, body []byte) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.generation != gen {
		return
	}
	c.cache.Set(path, body)
}

func (c *Client) invalidate() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.generation++
	c.cache.Purge()
}

// do performs one authenticated request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("hubspot: waiting for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("hubspot: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return nil, fmt.Errorf("hubspot: %s %s: %w", method, stripQuery(path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return nil, fmt.Errorf("hubspot: reading response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Method:     method,
			Path:       stripQuery(path),
		}
	}

	return json.RawMessage(body), nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(method, status, time.Since(start))
	}
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
