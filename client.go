package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRetryAfter = 60 * time.Second

// Client is a thin Slack Web API transport. It signs requests, retries
// transient failures and checks the {"ok": ..., "error": ...} envelope that
// every Web API method returns.
type Client struct {
	client    *resty.Client
	baseURL   string
	options   *Options
	metrics   *metrics
	connected bool
	mu        sync.Mutex
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func New(opts ...Option) *Client {
	options := newClientOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		baseURL: options.baseURL,
		options: options,
		metrics: newMetrics(options.metricsRegisterer),
	}
}

// Connect validates the configuration, prepares the HTTP transport and
// checks that the Web API is reachable. Calling Connect more than once is a
// no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if c.baseURL == "" {
		return errors.New("base URL must be set")
	}

	if err := c.options.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	c.client = resty.New().
		SetBaseURL(c.baseURL).
		SetRetryCount(c.options.retryCount).
		SetRetryWaitTime(c.options.retryWaitTime).
		SetRetryMaxWaitTime(c.options.retryMaxWaitTime).
		SetRetryAfter(retryAfter).
		AddRetryCondition(c.options.retryPolicy).
		SetLogger(c.options.requestLogger).
		SetHeaders(c.options.requestHeaders)

	if err := c.ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Slack API: %w", err)
	}

	c.connected = true

	return nil
}

// Close releases idle HTTP connections held by the transport.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.GetClient().CloseIdleConnections()
	}

	return nil
}

// Post calls a Web API method with a JSON body, using the token set with
// [WithAuthToken]. On success the response is decoded into out, which may be nil.
func (c *Client) Post(ctx context.Context, method string, body, out any) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	return c.call(ctx, http.MethodPost, method, c.options.authToken, body, nil, out)
}

// Get calls a Web API method with query parameters, using the token set with
// [WithAuthToken]. On success the response is decoded into out, which may be nil.
func (c *Client) Get(ctx context.Context, method string, params map[string]string, out any) error {
	if err := c.checkConnected(); err != nil {
		return err
	}

	return c.call(ctx, http.MethodGet, method, c.options.authToken, nil, params, out)
}

func (c *Client) checkConnected() error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	return nil
}

func (c *Client) ping(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "api.test", "", struct{}{}, nil, nil)
}

func (c *Client) call(ctx context.Context, httpMethod, method, token string, body any, params map[string]string, out any) error {
	method = strings.TrimPrefix(method, "/")

	req := c.client.R().SetContext(ctx)

	if token != "" {
		req.SetAuthToken(token)
	}

	if body != nil {
		req.SetBody(body)
	}

	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	c.options.requestLogger.Debugf("%s %s", httpMethod, method)

	resp, err := req.Execute(httpMethod, method)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", httpMethod, c.baseURL+"/"+method, err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		wait, _ := parseRetryAfter(resp.Header().Get("Retry-After"))
		return &RateLimitError{Method: method, RetryAfter: wait}
	}

	if resp.IsError() {
		return fmt.Errorf("%s %s failed with status %d: %s", httpMethod, c.baseURL+"/"+method, resp.StatusCode(), errorBody(resp.Body()))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !envelope.OK {
		code := envelope.Error
		if code == "" {
			code = "unknown_error"
		}

		return &APIError{Method: method, Code: code}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	return nil
}

// retryAfter lets resty honour Slack's Retry-After header on 429 responses.
// Returning zero falls back to resty's own backoff.
func retryAfter(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
	if resp == nil || resp.StatusCode() != http.StatusTooManyRequests {
		return 0, nil
	}

	wait, ok := parseRetryAfter(resp.Header().Get("Retry-After"))
	if !ok {
		return 0, nil
	}

	return wait, nil
}

func parseRetryAfter(value string) (time.Duration, bool) {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return defaultRetryAfter, false
	}

	return time.Duration(seconds) * time.Second, true
}

func errorBody(body []byte) string {
	if len(body) == 0 {
		return "(empty error body)"
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}

	return string(body)
}
