// Package client provides a Slack Web API transport and a Socket Mode event
// receiver.
//
// The Web API transport wraps [github.com/go-resty/resty/v2] with automatic
// retries, bearer-token authentication and checking of Slack's
// {"ok": ..., "error": ...} response envelope. Socket Mode runs on
// [github.com/gorilla/websocket] and delivers events without a publicly
// reachable HTTP endpoint.
//
// # Basic Usage
//
//	c := client.New(
//	    client.WithAppToken("xapp-..."),
//	    client.WithRequestLogger(client.NewZerologLogger(log.Logger)),
//	)
//	defer c.Close()
//
//	err := c.SocketMode().Run(ctx, client.HandlerFunc(
//	    func(ctx context.Context, evt *client.Event) json.RawMessage {
//	        if p, ok := evt.Payload.(*client.EventsAPIPayload); ok {
//	            handleEvent(ctx, p)
//	        }
//	        return nil
//	    }))
//
// # Socket Mode
//
// [SocketMode.Run] requests a fresh WebSocket URL with apps.connections.open,
// connects, and hands every event to the [Handler]. Every envelope except
// hello is acknowledged with its envelope_id once the handler returns. The
// handler's return value travels with the acknowledgement when the envelope
// accepts a response payload.
//
// Failures to obtain a URL or to keep the socket open are retried with
// exponential backoff: 1s, doubling, capped at 60s. The delay resets every
// time a URL is obtained. Run returns when ctx is cancelled or the server
// closes the socket cleanly; use [WithReconnectOnClose] to reconnect in the
// latter case as well. [SocketMode.Start] runs a single connection and
// returns every failure.
//
// Frames that are not valid envelopes are logged and dropped without an
// acknowledgement. Payloads that do not match their typed form are delivered
// as [RawPayload] instead of failing the event.
//
// # Configuration
//
// All configuration is supplied as [Option] functions passed to [New].
// Invalid values are silently ignored and the default is retained;
// all configuration is validated when [Client.Connect] is called.
// Socket Mode requires an app-level token set with [WithAppToken]; without
// it [SocketMode.Run] returns [ErrMissingAppToken] before any request is made.
//
// # Retry Behaviour
//
// [DefaultRetryPolicy] retries Web API calls on HTTP 429 (rate limit) and
// 5xx server errors, and on transient connection errors. It respects the
// Retry-After response header for rate-limit backoff. Context cancellation,
// deadline exceeded, and DNS resolution errors are never retried. Supply a
// custom function via [WithRetryPolicy] to override this behaviour.
//
// # Logging
//
// Implement [RequestLogger] and supply it via [WithRequestLogger] to
// integrate with your logging library, or use [NewZerologLogger]. The
// default [NoopLogger] discards all log output. Socket Mode URLs are logged
// without their query string, which carries the connection ticket.
//
// # Metrics
//
// [WithMetricsRegisterer] registers Prometheus collectors for received
// envelopes, dropped frames, sent acknowledgements, reconnects and the
// connection state.
package client
