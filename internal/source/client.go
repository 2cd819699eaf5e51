package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/cryptoetl/internal/domain"
)

// HTTPOptions configures the shared client used by remote API sources.
type HTTPOptions struct {
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	RateLimit        float64 // requests per second, 0 disables
	UserAgent        string
}

// HTTPClient wraps resty with a request timeout, retry with backoff on
// transport errors, 429 and 5xx, and an outbound rate limit.
type HTTPClient struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a new HTTPClient.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cryptoetl/1.0"
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetRetryCount(opts.RetryCount)
	if opts.RetryWaitTime > 0 {
		client.SetRetryWaitTime(opts.RetryWaitTime)
	}
	if opts.RetryMaxWaitTime > 0 {
		client.SetRetryMaxWaitTime(opts.RetryMaxWaitTime)
	}
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := resp.StatusCode()
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	})

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &HTTPClient{client: client, limiter: limiter}
}

// GetJSON issues a GET and returns the body of a 2xx response.
// Non-2xx responses (after retries) and transport errors become *domain.FetchError.
func (c *HTTPClient) GetJSON(ctx context.Context, sourceID, url string, query map[string]string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.FetchError{Source: sourceID, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		return nil, &domain.FetchError{Source: sourceID, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &domain.FetchError{
			Source:     sourceID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("GET %s: %s", url, resp.Status()),
		}
	}

	return resp.Body(), nil
}
