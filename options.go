package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBaseURL is the Slack Web API root used unless [WithBaseURL] is given.
const DefaultBaseURL = "https://slack.com/api"

const (
	defaultAckQueueSize     = 100
	defaultHandshakeTimeout = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadLimit        = 1 << 20
	defaultBackoffInitial   = 1 * time.Second
	defaultBackoffMax       = 60 * time.Second
)

type Option func(*Options)

type Options struct {
	retryCount        int
	retryWaitTime     time.Duration
	retryMaxWaitTime  time.Duration
	requestLogger     RequestLogger
	retryPolicy       func(*resty.Response, error) bool
	requestHeaders    map[string]string
	baseURL           string
	authToken         string
	appToken          string
	handshakeTimeout  time.Duration
	writeTimeout      time.Duration
	readLimit         int64
	ackQueueSize      int
	backoffInitial    time.Duration
	backoffMax        time.Duration
	reconnectOnClose  bool
	metricsRegisterer prometheus.Registerer
	dialer            *websocket.Dialer
}

func newClientOptions() *Options {
	return &Options{
		retryCount:       3,
		retryWaitTime:    500 * time.Millisecond,
		retryMaxWaitTime: 3 * time.Second,
		requestLogger:    &NoopLogger{},
		retryPolicy:      DefaultRetryPolicy,
		requestHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		baseURL:          DefaultBaseURL,
		handshakeTimeout: defaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		readLimit:        defaultReadLimit,
		ackQueueSize:     defaultAckQueueSize,
		backoffInitial:   defaultBackoffInitial,
		backoffMax:       defaultBackoffMax,
	}
}

func WithRetryCount(count int) Option {
	return func(o *Options) {
		if count >= 0 {
			o.retryCount = count
		}
	}
}

func WithRetryWaitTime(waitTime time.Duration) Option {
	return func(o *Options) {
		if waitTime >= 100*time.Millisecond {
			o.retryWaitTime = waitTime
		}
	}
}

func WithRetryMaxWaitTime(maxWaitTime time.Duration) Option {
	return func(o *Options) {
		if maxWaitTime >= 100*time.Millisecond {
			o.retryMaxWaitTime = maxWaitTime
		}
	}
}

func WithRequestLogger(logger RequestLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.requestLogger = logger
		}
	}
}

func WithRetryPolicy(policy func(*resty.Response, error) bool) Option {
	return func(o *Options) {
		if policy != nil {
			o.retryPolicy = policy
		}
	}
}

func WithRequestHeader(header, value string) Option {
	return func(o *Options) {
		header = strings.TrimSpace(header)

		if header == "" ||
			strings.EqualFold(header, "Content-Type") ||
			strings.EqualFold(header, "Accept") ||
			strings.EqualFold(header, "Authorization") {
			return
		}

		o.requestHeaders[header] = value
	}
}

// WithBaseURL overrides the Web API root, e.g. for a proxy or a test server.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithAuthToken sets the bot or user token (xoxb-/xoxp-) used by [Client.Post]
// and [Client.Get] when no explicit token is passed.
func WithAuthToken(token string) Option {
	return func(o *Options) {
		o.authToken = strings.TrimSpace(token)
	}
}

// WithAppToken sets the app-level token (xapp-) required by Socket Mode.
func WithAppToken(token string) Option {
	return func(o *Options) {
		o.appToken = strings.TrimSpace(token)
	}
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.handshakeTimeout = timeout
		}
	}
}

// WithWriteTimeout bounds every acknowledgement write on the socket.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout > 0 {
			o.writeTimeout = timeout
		}
	}
}

func WithReadLimit(limit int64) Option {
	return func(o *Options) {
		if limit > 0 {
			o.readLimit = limit
		}
	}
}

func WithAckQueueSize(size int) Option {
	return func(o *Options) {
		if size >= 1 {
			o.ackQueueSize = size
		}
	}
}

// WithReconnectBackoff sets the first and the largest delay between Socket
// Mode reconnect attempts. The delay doubles after every failure.
func WithReconnectBackoff(initial, maxDelay time.Duration) Option {
	return func(o *Options) {
		if initial <= 0 || maxDelay < initial {
			return
		}

		o.backoffInitial = initial
		o.backoffMax = maxDelay
	}
}

// WithReconnectOnClose makes [SocketMode.Run] open a new connection after the
// server closes the socket cleanly, instead of returning.
func WithReconnectOnClose() Option {
	return func(o *Options) {
		o.reconnectOnClose = true
	}
}

func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		if reg != nil {
			o.metricsRegisterer = reg
		}
	}
}

// WithDialer replaces the WebSocket dialer, e.g. to set a proxy or TLS config.
// The handshake timeout option still applies.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *Options) {
		if dialer != nil {
			o.dialer = dialer
		}
	}
}

func (o *Options) Validate() error {
	if o.retryCount < 0 {
		return errors.New("retryCount must be non-negative")
	}

	if o.retryCount > 100 {
		return errors.New("retryCount must not exceed 100")
	}

	if o.retryWaitTime < 100*time.Millisecond {
		return errors.New("retryWaitTime must be at least 100ms")
	}

	if o.retryWaitTime > time.Minute {
		return fmt.Errorf("retryWaitTime must not exceed %v", time.Minute)
	}

	if o.retryMaxWaitTime < 100*time.Millisecond {
		return errors.New("retryMaxWaitTime must be at least 100ms")
	}

	if o.retryMaxWaitTime > 5*time.Minute {
		return fmt.Errorf("retryMaxWaitTime must not exceed %v", 5*time.Minute)
	}

	if o.retryMaxWaitTime < o.retryWaitTime {
		return fmt.Errorf("retryMaxWaitTime (%v) must be greater than or equal to retryWaitTime (%v)", o.retryMaxWaitTime, o.retryWaitTime)
	}

	if o.requestLogger == nil {
		return errors.New("requestLogger must not be nil")
	}

	if o.retryPolicy == nil {
		return errors.New("retryPolicy must not be nil")
	}

	if o.baseURL == "" {
		return errors.New("base URL must be set")
	}

	if o.handshakeTimeout <= 0 {
		return errors.New("handshakeTimeout must be positive")
	}

	if o.writeTimeout <= 0 {
		return errors.New("writeTimeout must be positive")
	}

	if o.ackQueueSize < 1 {
		return errors.New("ackQueueSize must be at least 1")
	}

	if o.backoffInitial <= 0 {
		return errors.New("reconnect backoff must be positive")
	}

	if o.backoffMax < o.backoffInitial {
		return fmt.Errorf("max reconnect backoff (%v) must be greater than or equal to initial backoff (%v)", o.backoffMax, o.backoffInitial)
	}

	return nil
}
