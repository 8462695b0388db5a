// Package catalogapi reads products from the public storefront catalog API.
package catalogapi

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

	"github.com/cenkalti/backoff/v4"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

const (
	// DefaultBaseURL is the public catalog the storefront was built against.
	DefaultBaseURL = "https://api.escuelajs.co/api/v1"

	defaultTimeout         = 8 * time.Second
	defaultMaxAttempts     = 3
	defaultInitialInterval = 200 * time.Millisecond
	maxErrorBody           = 512
)

var errBaseURLRequired = errors.New("catalogapi: base url is required")

// Client implements repositories.ProductCatalogRepository over HTTP.
type Client struct {
	baseURL         *url.URL
	http            *http.Client
	token           string
	maxAttempts     int
	initialInterval time.Duration
}

var _ repositories.ProductCatalogRepository = (*Client)(nil)

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithMaxAttempts bounds the attempts per call, including the first.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.initialInterval = interval
		}
	}
}

// NewClient constructs a catalog client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("catalogapi: parse base url: %w", err)
	}
	client := &Client{
		baseURL:         parsed,
		http:            &http.Client{Timeout: defaultTimeout},
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ListProducts fetches up to limit products.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]repositories.ProductRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var records []repositories.ProductRecord
	if err := c.getJSON(ctx, "catalogapi.list_products", c.endpoint(query, "products"), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id string) (repositories.ProductRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return repositories.ProductRecord{}, repositories.NewStoreError("catalogapi.get_product", repositories.ErrorKindNotFound, errors.New("product id is required"))
	}
	var record repositories.ProductRecord
	if err := c.getJSON(ctx, "catalogapi.get_product", c.endpoint(nil, "products", id), &record); err != nil {
		return repositories.ProductRecord{}, err
	}
	return record, nil
}

// ListProductsByCategory fetches up to limit products of one category.
func (c *Client) ListProductsByCategory(ctx context.Context, categoryID, limit int) ([]repositories.ProductRecord, error) {
	query := url.Values{}
	query.Set("categoryId", strconv.Itoa(categoryID))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var records []repositories.ProductRecord
	// The upstream only filters on the trailing-slash collection path.
	if err := c.getJSON(ctx, "catalogapi.list_by_category", c.endpoint(query, "products", ""), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, dest any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx)

	var body []byte
	err := backoff.Retry(func() error {
		payload, err := c.do(ctx, op, endpoint)
		if err != nil {
			return err
		}
		body = payload
		return nil
	}, retries)
	if err != nil {
		var storeErr *repositories.StoreError
		if errors.As(err, &storeErr) {
			return storeErr
		}
		return repositories.NewStoreError(op, repositories.ErrorKindUnavailable, err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return repositories.NewStoreError(op, repositories.ErrorKindUnknown, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// do performs one attempt. Errors wrapped in backoff.Permanent are not retried.
func (c *Client) do(ctx context.Context, op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(repositories.NewStoreError(op, repositories.ErrorKindUnknown, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(repositories.NewStoreError(op, repositories.ErrorKindUnavailable, ctx.Err()))
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(repositories.NewStoreError(op, repositories.ErrorKindNotFound, statusError(resp)))
	case resp.StatusCode >= 500:
		return nil, repositories.NewStoreError(op, repositories.ErrorKindUnavailable, statusError(resp))
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(repositories.NewStoreError(op, repositories.ErrorKindUnknown, statusError(resp)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
