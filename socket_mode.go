package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Handler receives every Socket Mode event. The returned JSON, if any, is
// sent back in the acknowledgement when the envelope accepts a response
// payload. Return nil for a plain acknowledgement.
//
// HandleEvent is called synchronously from the read loop: events on one
// connection are handled one at a time, in arrival order, and a slow handler
// delays every event behind it. A panic is recovered and ends the current
// connection.
type Handler interface {
	HandleEvent(ctx context.Context, evt *Event) json.RawMessage
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(ctx context.Context, evt *Event) json.RawMessage

func (f HandlerFunc) HandleEvent(ctx context.Context, evt *Event) json.RawMessage {
	return f(ctx, evt)
}

// SocketMode receives events over a WebSocket instead of a public HTTP
// endpoint. Obtain one with [Client.SocketMode]. At most one connection is
// open at a time.
type SocketMode struct {
	client *Client
	sleep  func(ctx context.Context, d time.Duration) error
}

type connectionsOpenResponse struct {
	URL string `json:"url"`
}

func (c *Client) SocketMode() *SocketMode {
	return &SocketMode{
		client: c,
		sleep:  sleepContext,
	}
}

// OpenConnection calls apps.connections.open with the app-level token and
// returns the single-use WebSocket URL.
func (s *SocketMode) OpenConnection(ctx context.Context) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNilClient
	}

	if s.client.options.appToken == "" {
		return "", ErrMissingAppToken
	}

	if err := s.client.Connect(ctx); err != nil {
		return "", err
	}

	var resp connectionsOpenResponse
	if err := s.client.call(ctx, http.MethodPost, "apps.connections.open", s.client.options.appToken, struct{}{}, nil, &resp); err != nil {
		return "", err
	}

	if resp.URL == "" {
		return "", errors.New("apps.connections.open returned no url")
	}

	return resp.URL, nil
}

// Start opens one connection and processes events until the server closes
// it, ctx is cancelled or the connection fails. It does not reconnect; every
// failure is returned.
func (s *SocketMode) Start(ctx context.Context, h Handler) error {
	if err := s.preflight(h); err != nil {
		return err
	}

	wsURL, err := s.OpenConnection(ctx)
	if err != nil {
		return fmt.Errorf("failed to open socket mode connection: %w", err)
	}

	return s.runConnection(ctx, wsURL, h)
}

// Run processes events until ctx is cancelled or the server closes the
// connection cleanly, reconnecting with exponential backoff after failures.
// Only configuration errors are returned.
func (s *SocketMode) Run(ctx context.Context, h Handler) error {
	if err := s.preflight(h); err != nil {
		return err
	}

	opts := s.client.options
	logger := opts.requestLogger
	b := newReconnectBackOff(opts.backoffInitial, opts.backoffMax)

	for {
		if ctx.Err() != nil {
			return nil
		}

		wsURL, err := s.OpenConnection(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			delay := b.NextBackOff()
			logger.Errorf("failed to open socket mode connection: %v, retrying in %v", err, delay)
			s.client.metrics.reconnect()

			if s.sleep(ctx, delay) != nil {
				return nil
			}

			continue
		}

		b.Reset()

		err = s.runConnection(ctx, wsURL, h)
		if err == nil {
			if ctx.Err() != nil || !opts.reconnectOnClose {
				logger.Infof("socket mode connection closed normally")
				return nil
			}

			logger.Infof("socket mode connection closed by server, reconnecting")

			continue
		}

		delay := b.NextBackOff()
		logger.Warnf("socket mode connection error: %v, reconnecting in %v", err, delay)
		s.client.metrics.reconnect()

		if s.sleep(ctx, delay) != nil {
			return nil
		}
	}
}

// preflight rejects configurations that can never connect.
func (s *SocketMode) preflight(h Handler) error {
	if s == nil || s.client == nil {
		return ErrNilClient
	}

	if h == nil {
		return ErrNilHandler
	}

	if s.client.options.appToken == "" {
		return ErrMissingAppToken
	}

	if err := s.client.options.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	return nil
}

// newReconnectBackOff doubles from initial up to maxDelay without jitter and
// never gives up.
func newReconnectBackOff(initial, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
