package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/resilience"
	"github.com/richxcame/support-chat/pkg/tracing"
	"go.uber.org/zap"
)

const (
	// CorrelationIDHeader carries the request correlation ID
	CorrelationIDHeader = "X-Request-ID"
	// IdempotencyKeyHeader lets the server collapse retried writes
	IdempotencyKeyHeader = "Idempotency-Key"

	tracerName = "httpclient"
)

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client wraps http.Client with convenience methods and retry support
type Client struct {
	httpClient  *http.Client
	baseURL     string
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	tokens      TokenSource
	userAgent   string
}

// Option configures the HTTP client
type Option func(*Client)

// WithRetry enables retry logic with the given configuration
func WithRetry(config resilience.RetryConfig) Option {
	return func(c *Client) {
		if config.RetryableChecker == nil {
			config.RetryableChecker = isHTTPRetryable
		}
		c.retryConfig = &config
	}
}

// WithDefaultRetry enables default retry configuration
func WithDefaultRetry() Option {
	return WithRetry(resilience.DefaultRetryConfig())
}

// WithCircuitBreaker routes every request through breaker
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = breaker
	}
}

// WithTokenSource adds an Authorization bearer header to every request
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a new HTTP client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the URL prefix requests are made against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get makes a GET request
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, headers)
}

// Post makes a POST request with JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body, headers)
}

// PostWithIdempotency makes a POST request with an idempotency key for safe retries
func (c *Client) PostWithIdempotency(ctx context.Context, path string, body interface{}, headers map[string]string, idempotencyKey string) ([]byte, error) {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}
	merged[IdempotencyKeyHeader] = idempotencyKey

	return c.Post(ctx, path, body, merged)
}

// Put makes a PUT request with JSON body
func (c *Client) Put(ctx context.Context, path string, body interface{}, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, body, headers)
}

// Delete makes a DELETE request
func (c *Client) Delete(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil, headers)
}

// Upload posts a single file as multipart/form-data under field
func (c *Client) Upload(ctx context.Context, path, field, filename string, content io.Reader, fields map[string]string) ([]byte, error) {
	// The body is buffered so retries can replay it.
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to copy upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	payload := rawBody{contentType: writer.FormDataContentType(), data: buf.Bytes()}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

type rawBody struct {
	contentType string
	data        []byte
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) ([]byte, error) {
	attempt := func(ctx context.Context) (interface{}, error) {
		return c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return c.send(ctx, method, path, body, headers)
		})
	}

	var (
		result interface{}
		err    error
	)
	if c.retryConfig != nil {
		result, err = resilience.RetryWithName(ctx, *c.retryConfig, attempt, method+" "+path)
	} else {
		result, err = attempt(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, headers map[string]string) ([]byte, error) {
	var (
		bodyReader  io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case rawBody:
		bodyReader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		contentType = "application/json"
	}

	url := c.baseURL + path
	var respBody []byte
	_, err := tracing.TraceHTTPClient(ctx, tracerName, method, url, func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if err := c.authorize(ctx, req); err != nil {
			return 0, err
		}
		injectCorrelationID(ctx, req)
		tracing.InjectHeaders(ctx, req.Header)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			return resp.StatusCode, &HTTPError{
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       string(respBody),
			}
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		logger.FromContext(ctx, logger.Get()).Debug("http request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	return respBody, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// IsClientError reports whether err is a 4xx response other than 408/429
func IsClientError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && !resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
}

// isHTTPRetryable determines if an HTTP error is retryable
func isHTTPRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}

	// For other errors (network issues, timeouts), retry by default
	return true
}

func injectCorrelationID(ctx context.Context, req *http.Request) {
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(CorrelationIDHeader, correlationID)
	}
}
