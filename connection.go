package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// runConnection owns one physical socket from handshake to close. It returns
// nil when the server closes the socket or ctx is cancelled, and an error
// for handshake, transport, ack queue and handler failures.
//
// Pings are answered by gorilla/websocket's default ping handler, which
// echoes the payload in a Pong from inside ReadMessage.
func (s *SocketMode) runConnection(ctx context.Context, wsURL string, h Handler) error {
	opts := s.client.options
	logger := opts.requestLogger
	connID := uuid.NewString()

	logger.Infof("socket mode [%s]: connecting to %s", connID, redactURL(wsURL))

	conn, resp, err := s.dialer().DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		if resp != nil {
			return fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}

		return fmt.Errorf("websocket handshake failed: %w", err)
	}

	logger.Infof("socket mode [%s]: connected", connID)

	conn.SetReadLimit(opts.readLimit)

	acks := newAcknowledger(conn, opts.ackQueueSize, opts.writeTimeout, logger, s.client.metrics)
	acks.start()

	s.client.metrics.setConnected(true)

	stopWatch := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(opts.writeTimeout))
		_ = conn.Close()
	})

	defer func() {
		stopWatch()
		_ = conn.Close()
		acks.stop()
		s.client.metrics.setConnected(false)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Infof("socket mode [%s]: connection closed by caller", connID)
				return nil
			}

			// 1006 is synthesised by gorilla/websocket when the peer vanishes
			// without a close frame.
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
				logger.Infof("socket mode [%s]: connection closed by server: %v", connID, closeErr)
				return nil
			}

			logger.Errorf("socket mode [%s]: read failed: %v", connID, err)

			return fmt.Errorf("websocket read failed: %w", err)
		}

		if msgType != websocket.TextMessage {
			logger.Debugf("socket mode [%s]: ignoring non-text frame of type %d", connID, msgType)
			continue
		}

		if err := s.dispatch(ctx, connID, data, h, acks); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}
}

// dispatch handles one text frame. Undecodable frames are logged and
// dropped without an acknowledgement.
func (s *SocketMode) dispatch(ctx context.Context, connID string, data []byte, h Handler, acks *acknowledger) error {
	logger := s.client.options.requestLogger

	logger.Debugf("socket mode [%s]: received %s", connID, data)

	env, err := ParseEnvelope(data)
	if err != nil {
		s.client.metrics.decodeError()
		logger.Warnf("socket mode [%s]: dropping frame: %v", connID, err)

		return nil
	}

	evt := Classify(env)
	s.client.metrics.envelopeReceived(evt.Type)

	switch p := evt.Payload.(type) {
	case HelloPayload:
		logger.Infof("socket mode [%s]: hello received", connID)
	case DisconnectPayload:
		logger.Infof("socket mode [%s]: server requested disconnect: %s", connID, p.Reason)
	}

	if evt.RetryAttempt > 0 {
		logger.Debugf("socket mode [%s]: envelope %s is retry %d (%s)", connID, evt.EnvelopeID, evt.RetryAttempt, evt.RetryReason)
	}

	response, err := invokeHandler(ctx, h, evt)
	if err != nil {
		logger.Errorf("socket mode [%s]: %v", connID, err)
		return err
	}

	ack, ok := newAck(evt, response, logger)
	if !ok {
		return nil
	}

	if err := acks.enqueue(ctx, ack); err != nil {
		return fmt.Errorf("failed to queue ack for envelope %s: %w", ack.EnvelopeID, err)
	}

	return nil
}

func invokeHandler(ctx context.Context, h Handler, evt *Event) (response json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w while handling envelope %s: %v", ErrHandlerPanic, evt.EnvelopeID, r)
		}
	}()

	return h.HandleEvent(ctx, evt), nil
}

func (s *SocketMode) dialer() *websocket.Dialer {
	d := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	if s.client.options.dialer != nil {
		d = *s.client.options.dialer
	}

	d.HandshakeTimeout = s.client.options.handshakeTimeout

	return &d
}

// redactURL drops the query string, which carries the single-use ticket.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid url)"
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
