package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Ack is the reply Slack expects for every delivered envelope except hello.
type Ack struct {
	EnvelopeID string          `json:"envelope_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// newAck builds the acknowledgement for evt. The handler's response is only
// attached when the envelope accepts one. It reports false when no
// acknowledgement is due.
func newAck(evt *Event, response json.RawMessage, logger RequestLogger) (Ack, bool) {
	if evt.Type == EnvelopeTypeHello || evt.EnvelopeID == "" {
		return Ack{}, false
	}

	ack := Ack{EnvelopeID: evt.EnvelopeID}

	if len(response) == 0 || isNullJSON(response) {
		return ack, true
	}

	switch {
	case !evt.AcceptsResponsePayload:
		logger.Debugf("envelope %s does not accept a response payload, dropping handler response", evt.EnvelopeID)
	case !json.Valid(response):
		logger.Warnf("handler returned invalid JSON for envelope %s, acknowledging without payload", evt.EnvelopeID)
	default:
		ack.Payload = response
	}

	return ack, true
}

// ackWriter is the write half of a socket. *websocket.Conn implements it.
type ackWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// acknowledger owns the write half of one connection. Acks are queued by
// the read loop and written in order by a single goroutine.
type acknowledger struct {
	conn         ackWriter
	queue        chan Ack
	quit         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
	writeTimeout time.Duration
	logger       RequestLogger
	metrics      *metrics
}

func newAcknowledger(conn ackWriter, size int, writeTimeout time.Duration, logger RequestLogger, m *metrics) *acknowledger {
	return &acknowledger{
		conn:         conn,
		queue:        make(chan Ack, size),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
		metrics:      m,
	}
}

func (a *acknowledger) start() {
	go a.run()
}

func (a *acknowledger) run() {
	defer close(a.done)

	for {
		select {
		case <-a.quit:
			return
		case ack := <-a.queue:
			if err := a.write(ack); err != nil {
				a.logger.Errorf("failed to send ack for envelope %s: %v", ack.EnvelopeID, err)
				return
			}
		}
	}
}

func (a *acknowledger) write(ack Ack) error {
	data, err := json.Marshal(ack)
	if err != nil {
		return err
	}

	a.logger.Debugf("sending ack: %s", data)

	if a.writeTimeout > 0 {
		if err := a.conn.SetWriteDeadline(time.Now().Add(a.writeTimeout)); err != nil {
			return err
		}
	}

	if err := a.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	a.metrics.ackSent()

	return nil
}

// enqueue blocks while the queue is full. It fails once the writer has
// stopped or ctx is done.
func (a *acknowledger) enqueue(ctx context.Context, ack Ack) error {
	select {
	case <-a.done:
		return ErrAckWriterStopped
	default:
	}

	select {
	case a.queue <- ack:
		return nil
	case <-a.done:
		return ErrAckWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop aborts the writer and waits for it to exit. Queued acks that were not
// yet written are dropped. Safe to call more than once.
func (a *acknowledger) stop() {
	a.stopOnce.Do(func() {
		close(a.quit)
	})

	<-a.done
}
