package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EnvelopeType is the "type" discriminator of a Socket Mode envelope.
// Any string outside the constants below is carried through unchanged and
// reports false from [EnvelopeType.IsKnown].
type EnvelopeType string

const (
	EnvelopeTypeEventsAPI     EnvelopeType = "events_api"
	EnvelopeTypeInteractive   EnvelopeType = "interactive"
	EnvelopeTypeSlashCommands EnvelopeType = "slash_commands"
	EnvelopeTypeHello         EnvelopeType = "hello"
	EnvelopeTypeDisconnect    EnvelopeType = "disconnect"
)

func (t EnvelopeType) IsKnown() bool {
	switch t {
	case EnvelopeTypeEventsAPI,
		EnvelopeTypeInteractive,
		EnvelopeTypeSlashCommands,
		EnvelopeTypeHello,
		EnvelopeTypeDisconnect:
		return true
	default:
		return false
	}
}

// Envelope is the untyped wire object Slack pushes for every event.
type Envelope struct {
	EnvelopeID             string
	Type                   string
	AcceptsResponsePayload bool
	Payload                json.RawMessage
	RetryAttempt           int
	RetryReason            string

	// reason is the top-level reason Slack puts on disconnect envelopes.
	reason string
}

type wireEnvelope struct {
	EnvelopeID             *string         `json:"envelope_id"`
	Type                   *string         `json:"type"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload"`
	Payload                json.RawMessage `json:"payload"`
	RetryAttempt           int             `json:"retry_attempt"`
	RetryReason            string          `json:"retry_reason"`
	Reason                 string          `json:"reason"`
}

// DecodeError reports a frame that could not be read as an envelope.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode socket mode envelope: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ParseEnvelope decodes one text frame. It fails on malformed JSON, on a
// missing "type" and on a missing "envelope_id" for every type except hello
// and disconnect, which Slack sends without one.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if w.Type == nil || *w.Type == "" {
		return nil, &DecodeError{Err: errors.New(`missing required field "type"`)}
	}

	t := EnvelopeType(*w.Type)
	if w.EnvelopeID == nil && t != EnvelopeTypeHello && t != EnvelopeTypeDisconnect {
		return nil, &DecodeError{Err: errors.New(`missing required field "envelope_id"`)}
	}

	env := &Envelope{
		Type:                   *w.Type,
		AcceptsResponsePayload: w.AcceptsResponsePayload,
		RetryAttempt:           w.RetryAttempt,
		RetryReason:            w.RetryReason,
		reason:                 w.Reason,
	}

	if w.EnvelopeID != nil {
		env.EnvelopeID = *w.EnvelopeID
	}

	if !isNullJSON(w.Payload) {
		env.Payload = w.Payload
	}

	return env, nil
}

// Event is an envelope with its type resolved and its payload decoded.
type Event struct {
	EnvelopeID             string
	Type                   EnvelopeType
	AcceptsResponsePayload bool
	Payload                Payload
	RetryAttempt           int
	RetryReason            string
}

// Payload is one of *EventsAPIPayload, *InteractivePayload,
// *SlashCommandPayload, HelloPayload, DisconnectPayload or RawPayload.
type Payload interface {
	isPayload()
}

// EventsAPIPayload is the outer Events API callback. Event holds the inner
// event (app_mention, message, ...) undecoded.
type EventsAPIPayload struct {
	Token          string            `json:"token,omitempty"`
	TeamID         string            `json:"team_id,omitempty"`
	APIAppID       string            `json:"api_app_id,omitempty"`
	Event          json.RawMessage   `json:"event,omitempty"`
	Type           string            `json:"type,omitempty"`
	EventID        string            `json:"event_id,omitempty"`
	EventTime      int64             `json:"event_time,omitempty"`
	Authorizations []json.RawMessage `json:"authorizations,omitempty"`
}

// InnerEventType returns the "type" of the wrapped event, or "" if there is none.
func (p *EventsAPIPayload) InnerEventType() string {
	var inner struct {
		Type string `json:"type"`
	}

	if len(p.Event) == 0 || json.Unmarshal(p.Event, &inner) != nil {
		return ""
	}

	return inner.Type
}

type InteractiveUser struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

type InteractiveChannel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// InteractivePayload covers block actions, shortcuts and view submissions.
// Raw keeps the complete payload for fields not modelled here.
type InteractivePayload struct {
	Type        string              `json:"type"`
	User        *InteractiveUser    `json:"user,omitempty"`
	Channel     *InteractiveChannel `json:"channel,omitempty"`
	TriggerID   string              `json:"trigger_id,omitempty"`
	ResponseURL string              `json:"response_url,omitempty"`
	Actions     []json.RawMessage   `json:"actions,omitempty"`
	View        json.RawMessage     `json:"view,omitempty"`
	Message     json.RawMessage     `json:"message,omitempty"`
	Raw         json.RawMessage     `json:"-"`
}

// SlashCommandPayload is a slash command invocation. Raw keeps the complete payload.
type SlashCommandPayload struct {
	Command     string          `json:"command"`
	Text        string          `json:"text,omitempty"`
	ResponseURL string          `json:"response_url"`
	TriggerID   string          `json:"trigger_id,omitempty"`
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name,omitempty"`
	ChannelID   string          `json:"channel_id"`
	ChannelName string          `json:"channel_name,omitempty"`
	TeamID      string          `json:"team_id,omitempty"`
	TeamDomain  string          `json:"team_domain,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

type HelloPayload struct{}

type DisconnectPayload struct {
	Reason string
}

// RawPayload is the untouched JSON of a payload that has no typed form, or
// whose typed form did not match.
type RawPayload json.RawMessage

func (*EventsAPIPayload) isPayload()    {}
func (*InteractivePayload) isPayload()  {}
func (*SlashCommandPayload) isPayload() {}
func (HelloPayload) isPayload()         {}
func (DisconnectPayload) isPayload()    {}
func (RawPayload) isPayload()           {}

var nullJSON = json.RawMessage("null")

// Classify resolves the envelope type and decodes the payload. It never
// fails: a payload that does not fit its typed form becomes a RawPayload
// holding the original bytes.
func Classify(env *Envelope) *Event {
	t := EnvelopeType(env.Type)

	evt := &Event{
		EnvelopeID:             env.EnvelopeID,
		Type:                   t,
		AcceptsResponsePayload: env.AcceptsResponsePayload,
		RetryAttempt:           env.RetryAttempt,
		RetryReason:            env.RetryReason,
	}

	switch t {
	case EnvelopeTypeEventsAPI:
		evt.Payload = decodeOrRaw(env.Payload, decodeEventsAPI)
	case EnvelopeTypeInteractive:
		evt.Payload = decodeOrRaw(env.Payload, decodeInteractive)
	case EnvelopeTypeSlashCommands:
		evt.Payload = decodeOrRaw(env.Payload, decodeSlashCommand)
	case EnvelopeTypeHello:
		evt.Payload = HelloPayload{}
	case EnvelopeTypeDisconnect:
		evt.Payload = DisconnectPayload{Reason: disconnectReason(env)}
	default:
		evt.Payload = rawOrNull(env.Payload)
	}

	return evt
}

func decodeOrRaw(data json.RawMessage, decode func(json.RawMessage) (Payload, error)) Payload {
	if len(data) == 0 {
		return RawPayload(nullJSON)
	}

	p, err := decode(data)
	if err != nil {
		return RawPayload(data)
	}

	return p
}

func rawOrNull(data json.RawMessage) RawPayload {
	if len(data) == 0 {
		return RawPayload(nullJSON)
	}

	return RawPayload(data)
}

func decodeEventsAPI(data json.RawMessage) (Payload, error) {
	var p EventsAPIPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

func decodeInteractive(data json.RawMessage) (Payload, error) {
	fields, err := requireFields(data, "type")
	if err != nil {
		return nil, err
	}

	if user, ok := fields["user"]; ok && !isNullJSON(user) {
		if _, err := requireFields(user, "id"); err != nil {
			return nil, fmt.Errorf("user: %w", err)
		}
	}

	if channel, ok := fields["channel"]; ok && !isNullJSON(channel) {
		if _, err := requireFields(channel, "id"); err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
	}

	var p InteractivePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	p.Raw = data

	return &p, nil
}

func decodeSlashCommand(data json.RawMessage) (Payload, error) {
	if _, err := requireFields(data, "command", "response_url", "user_id", "channel_id"); err != nil {
		return nil, err
	}

	var p SlashCommandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	p.Raw = data

	return &p, nil
}

func disconnectReason(env *Envelope) string {
	var p struct {
		Reason any `json:"reason"`
	}

	if len(env.Payload) > 0 && json.Unmarshal(env.Payload, &p) == nil {
		if reason, ok := p.Reason.(string); ok {
			return reason
		}
	}

	if env.reason != "" {
		return env.reason
	}

	return "unknown"
}

// requireFields checks that data is a JSON object holding every name with a
// non-null value, and returns the object's fields.
func requireFields(data json.RawMessage, names ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	if fields == nil {
		return nil, errors.New("payload is not an object")
	}

	for _, name := range names {
		v, ok := fields[name]
		if !ok || isNullJSON(v) {
			return nil, fmt.Errorf("missing required field %q", name)
		}
	}

	return fields, nil
}

func isNullJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, nullJSON)
}
