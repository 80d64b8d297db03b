package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/pkg/version"
)

// maxBodySize bounds how much of a response body is read
const maxBodySize = 32 << 20

// Response is a completed HTTP response with its body read
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	URL        string
}

// Client is an HTTP client for forge APIs and cgit pages built on tls-client
type Client struct {
	tlsClient tls_client.HttpClient
	userAgent string
	retrier   *Retrier
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Timeout          time.Duration
	MaxRetries       int
	InitialInterval  time.Duration
	MaxRateLimitWait time.Duration
	UserAgent        string
	ProxyURL         string
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:          60 * time.Second,
		MaxRetries:       3,
		InitialInterval:  1 * time.Second,
		MaxRateLimitWait: 90 * time.Second,
	}
}

// NewClient creates a new HTTP client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}

	tlsOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(opts.Timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
	}
	if opts.ProxyURL != "" {
		tlsOpts = append(tlsOpts, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), tlsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}

	ro := DefaultRetrierOptions()
	ro.MaxRetries = opts.MaxRetries
	if opts.InitialInterval > 0 {
		ro.InitialInterval = opts.InitialInterval
	}
	if opts.MaxRateLimitWait > 0 {
		ro.MaxRateLimitWait = opts.MaxRateLimitWait
	}
	retrier := NewRetrier(ro)

	return &Client{
		tlsClient: tlsClient,
		userAgent: opts.UserAgent,
		retrier:   retrier,
	}, nil
}

// Get fetches a URL, retrying transient failures and rate limits
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return RetryWithValue(ctx, c.retrier, func() (*Response, error) {
		return c.doRequest(ctx, url, headers)
	})
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, targetURL string, extraHeaders map[string]string) (*Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.tlsClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.RetryableError{
			Err: domain.NewFetchError(targetURL, 0, fmt.Errorf("request failed: %w", err)),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = v
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(targetURL, resp.StatusCode, headers, body)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    headers,
		URL:        targetURL,
	}, nil
}

// classifyStatus turns an error status into a typed error. Rate limit
// responses become retryable with the server-advertised delay.
func classifyStatus(targetURL string, status int, headers http.Header, body []byte) error {
	fetchErr := domain.NewFetchError(targetURL, status, fmt.Errorf("HTTP %d: %s", status, snippet(body)))

	if IsRateLimited(status, headers, body) {
		wait := ParseRetryAfter(headers.Get("Retry-After"))
		if wait == 0 {
			wait = ParseRateLimitReset(headers.Get("X-RateLimit-Reset"), time.Now())
		}
		return &domain.RetryableError{
			Err:        fmt.Errorf("%w: %w", domain.ErrRateLimited, fetchErr),
			RetryAfter: int(wait.Seconds()),
		}
	}

	if ShouldRetryStatus(status) {
		return &domain.RetryableError{
			Err:        fetchErr,
			RetryAfter: int(ParseRetryAfter(headers.Get("Retry-After")).Seconds()),
		}
	}

	return fetchErr
}

// IsRateLimited reports whether a response signals an exhausted API quota.
// GitHub answers 403 for both primary and secondary limits.
func IsRateLimited(status int, headers http.Header, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status != http.StatusForbidden {
		return false
	}
	if headers.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "secondary rate limit") ||
		strings.Contains(lower, "rate limit exceeded") ||
		strings.Contains(lower, "api rate limit")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// BasicAuth returns an Authorization header value for user:password
func BasicAuth(credentials string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

// Close releases client resources
func (c *Client) Close() error {
	c.tlsClient.CloseIdleConnections()
	return nil
}
