// Package feed fetches property listings from the Tokko Broker API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/metrics"
)

// Defaults for the property endpoint.
const (
	DefaultBaseURL      = "https://www.tokkobroker.com"
	DefaultPageSize     = 1000
	DefaultLang         = "es_ar"
	DefaultTimeout      = 60 * time.Second
	DefaultRetryBackoff = time.Second
	DefaultMaxBodyBytes = 512 << 20

	propertyPath = "/api/v1/property/"
)

// StatusError is a non-2xx feed response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned HTTP %d", e.StatusCode)
}

// Is makes every StatusError a transport failure.
func (e *StatusError) Is(target error) bool { return target == domain.ErrTransport }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Config holds the feed client settings.
type Config struct {
	BaseURL      string
	PageSize     int
	Lang         string
	Timeout      time.Duration
	MaxRetries   uint64 // 0 disables retries
	RetryBackoff time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client reads the property listing of one account per call.
type Client struct {
	base     *url.URL
	pageSize int
	lang     string
	retries  uint64
	backoff  time.Duration
	maxBody  int64
	http     *http.Client
	logger   *zap.Logger
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("feed base url %q: %w", cfg.BaseURL, domain.ErrConfiguration)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		base:     base,
		pageSize: cfg.PageSize,
		lang:     cfg.Lang,
		retries:  cfg.MaxRetries,
		backoff:  cfg.RetryBackoff,
		maxBody:  cfg.MaxBodyBytes,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}, nil
}

// Fetch downloads one page of properties for apiKey and returns the raw
// records found under "objects". 5xx, 429 and network failures are retried;
// other statuses fail immediately with *StatusError.
func (c *Client) Fetch(ctx context.Context, apiKey string) ([]json.RawMessage, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("feed api key is required: %w", domain.ErrInvalidRequest)
	}

	var body []byte
	attempt := 0
	b := retry.WithMaxRetries(c.retries, retry.NewFibonacci(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		body, err = c.get(ctx, apiKey)
		if err == nil {
			return nil
		}
		if retryable(err) {
			c.logger.Warn("feed request failed, retrying",
				zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(statusLabel(err)).Inc()
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		metrics.FeedRequestsTotal.WithLabelValues("invalid_body").Inc()
		return nil, fmt.Errorf("feed response is not valid JSON: %w", domain.ErrTransport)
	}
	objects := gjson.GetBytes(body, "objects")
	records := make([]json.RawMessage, 0, len(objects.Array()))
	objects.ForEach(func(_, value gjson.Result) bool {
		records = append(records, json.RawMessage(value.Raw))
		return true
	})
	metrics.FeedRequestsTotal.WithLabelValues("success").Inc()

	c.logger.Info("feed fetched", zap.Int("records", len(records)), zap.Int("attempts", attempt))
	return records, nil
}

func (c *Client) get(ctx context.Context, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(apiKey), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error embeds the full URL, which carries the api key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("GET %s: %w: %w", c.redacted(), err, domain.ErrTransport)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w: %w", err, domain.ErrTransport)
	}
	return body, nil
}

func (c *Client) endpoint(apiKey string) string {
	u := c.base.JoinPath(propertyPath)
	q := url.Values{}
	q.Set("limit", fmt.Sprint(c.pageSize))
	q.Set("key", apiKey)
	q.Set("lang", c.lang)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) redacted() string {
	return c.base.JoinPath(propertyPath).String()
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func statusLabel(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("http_%d", se.StatusCode)
	}
	return "transport_error"
}
