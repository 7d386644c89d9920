package discourse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/membergate/discourse-on-ghost/pkg/async"
	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

const (
	jsonMIMEType       = "application/json"
	groupCacheSize     = 256
	maxIdempotentTries = 3
)

var (
	// ErrMemberNotFound indicates the member has no forum account yet. Sync
	// flows treat this as a soft failure and defer until first forum login.
	ErrMemberNotFound = errors.New("discourse: member not found")
	// ErrGroupNotFound indicates a group lookup came back not-ok.
	ErrGroupNotFound = errors.New("discourse: group not found")
)

// apiError is a non-2xx response from the forum.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discourse responded with status %d: %s", e.status, e.body)
}

// Client calls the Discourse API with API-key authentication.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	apiUser    string
	httpClient *http.Client
	gate       *async.Gate
	logger     *observability.Logger
	metrics    *observability.Metrics

	groupCache *lru.Cache[string, int]
}

// NewClient creates a Discourse API client from configuration. metrics may
// be nil.
func NewClient(cfg config.DiscourseConfig, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid discourse URL: %w", err)
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = DefaultMaxRequestConcurrency
	}

	groupCache, err := lru.New[string, int](groupCacheSize)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		apiUser:    cfg.APIUser,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		gate:       async.NewGate(int64(maxConcurrency), 0),
		logger:     logger,
		metrics:    metrics,
		groupCache: groupCache,
	}, nil
}

// ClearCaches drops the known-groups cache. Used by the admin clear-caches
// action after out-of-band forum changes.
func (c *Client) ClearCaches() {
	c.groupCache.Purge()
}

func (c *Client) resolve(urlPath string, query url.Values) string {
	resolved := *c.baseURL
	resolved.Path = path.Join("/", c.baseURL.Path, urlPath)
	resolved.RawQuery = query.Encode()
	return resolved.String()
}

// do performs a gated request against the forum. GET requests are retried
// with exponential backoff on network errors and 5xx responses; mutations
// are attempted once. A non-2xx response is returned as *apiError.
func (c *Client) do(ctx context.Context, method, urlPath string, query url.Values, body, out interface{}) error {
	return c.gate.Do(ctx, func() error {
		attempt := func() error {
			err := c.roundTrip(ctx, method, urlPath, query, body, out)

			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.status < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		if method != http.MethodGet {
			return c.roundTrip(ctx, method, urlPath, query, body, out)
		}

		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxIdempotentTries-1), ctx)
		return backoff.Retry(attempt, policy)
	})
}

func (c *Client) roundTrip(ctx context.Context, method, urlPath string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("unable to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(urlPath, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", jsonMIMEType)
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Username", c.apiUser)
	if body != nil {
		req.Header.Set("Content-Type", jsonMIMEType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to reach discourse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &apiError{status: resp.StatusCode, body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("unable to parse discourse response: %w", err)
		}
	}

	return nil
}

func (c *Client) cacheHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("groups").Inc()
	}
}

func (c *Client) cacheMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("groups").Inc()
	}
}
