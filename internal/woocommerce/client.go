// Package woocommerce reads orders and plugin state from a WooCommerce
// origin through the REST API.
package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pixelflow-proxy/internal/adapter"
	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/transport"
)

// restAPIPath is the base path for WooCommerce REST v3 endpoints.
// Must include /wp-json prefix for proper routing.
const restAPIPath = "/wp-json/wc/v3"

// DefaultActiveTTL is how long a WooCommerce-active probe result is reused.
const DefaultActiveTTL = 5 * time.Minute

// maxResponseBytes bounds how much of an upstream response is read.
const maxResponseBytes = 4 << 20

// Config holds WooCommerce client configuration.
type Config struct {
	StoreURL  string
	APIKey    string // Consumer key (ck_...)
	APISecret string // Consumer secret (cs_...)

	// HTTPClient overrides the default Chrome-fingerprint client.
	HTTPClient *http.Client

	// ActiveTTL overrides DefaultActiveTTL.
	ActiveTTL time.Duration
}

// Client implements adapter.Storefront for WooCommerce stores using REST v3.
// Order reads need consumer credentials with read access; the
// WooCommerce-active probe reads the public REST index and needs none.
type Client struct {
	httpClient *http.Client
	storeURL   string
	apiKey     string
	apiSecret  string
	activeTTL  time.Duration

	probes    singleflight.Group
	mu        sync.Mutex
	active    bool
	checkedAt time.Time
	now       func() time.Time
}

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Use Chrome TLS fingerprint transport to avoid JA3-based rate limiting.
		// See internal/transport for rationale.
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewChromeTransport(30 * time.Second),
		}
	}
	ttl := cfg.ActiveTTL
	if ttl <= 0 {
		ttl = DefaultActiveTTL
	}

	return &Client{
		httpClient: httpClient,
		storeURL:   strings.TrimSuffix(cfg.StoreURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		activeTTL:  ttl,
		now:        time.Now,
	}, nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, id int) (*model.Order, error) {
	if id <= 0 {
		return nil, model.NewValidationError("order_id", "must be positive")
	}
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, model.NewUnauthorizedError("WooCommerce API credentials are not configured")
	}

	var wo WooOrder
	if err := c.getJSON(ctx, restAPIPath+"/orders/"+strconv.Itoa(id), true, &wo); err != nil {
		return nil, err
	}
	return toOrder(&wo), nil
}

// WooCommerceActive reports whether the origin exposes WooCommerce REST
// namespaces. Results are cached for the active TTL; a failed probe keeps
// the previous answer until the next interval. Concurrent callers share
// one probe, which outlives any single caller's cancellation.
func (c *Client) WooCommerceActive(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < c.activeTTL {
		active := c.active
		c.mu.Unlock()
		return active, nil
	}
	c.mu.Unlock()

	v, err, _ := c.probes.Do("active", func() (any, error) {
		c.mu.Lock()
		if !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < c.activeTTL {
			defer c.mu.Unlock()
			return c.active, nil
		}
		c.mu.Unlock()

		var idx WooIndex
		err := c.getJSON(context.WithoutCancel(ctx), "/wp-json/", false, &idx)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.checkedAt = c.now()
		if err != nil {
			return c.active, err
		}
		c.active = hasWooCommerce(&idx)
		return c.active, nil
	})
	return v.(bool), err
}

// getJSON performs a GET and decodes a JSON body into dst.
func (c *Client) getJSON(ctx context.Context, path string, authenticated bool, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storeURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, authenticated)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.parseErrorResponse(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// userAgent identifies this client to upstream servers.
// Required: WooCommerce CDN/WAF rate-limits requests without User-Agent.
const userAgent = "PixelFlow-Proxy/1.0"

// setHeaders sets headers for REST API requests. REST v3 authenticates
// consumer credentials with Basic Auth over HTTPS.
func (c *Client) setHeaders(req *http.Request, authenticated bool) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.SetBasicAuth(c.apiKey, c.apiSecret)
	}
}

// parseErrorResponse converts WooCommerce error to APIError.
func (c *Client) parseErrorResponse(statusCode int, body []byte) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("order")
	case 401, 403:
		return model.NewUnauthorizedError("WooCommerce authentication failed")
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}

// Verify Client implements Storefront interface at compile time.
var _ adapter.Storefront = (*Client)(nil)
