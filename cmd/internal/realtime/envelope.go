package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// Version is embedded into every envelope.
	Version = 1

	// Subprotocol must be offered by clients.
	Subprotocol = "tasker.events.v1"
)

// Envelope types.
const (
	TypeReady = "feed.ready"
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"

	TypeTaskCreated = "task.created"
	TypeTaskUpdated = "task.updated"
	TypeTaskDeleted = "task.deleted"
)

// inboundTypes are the only types a client may send.
var inboundTypes = map[string]struct{}{
	TypePing: {},
}

// Envelope is the wire wrapper for every frame.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ReadyPayload is sent once after subscription.
type ReadyPayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// ErrorPayload describes a rejected inbound frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validateInbound checks a client frame.
func (e Envelope) validateInbound() error {
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %d", e.V)
	}
	if e.Type == "" {
		return errors.New("missing type")
	}
	if _, ok := inboundTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	return nil
}

func newEnvelope(typ string, payload any, ts time.Time) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		raw = b
	}
	id, err := newEnvelopeID(ts)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{V: Version, Type: typ, ID: id, TS: ts, Payload: raw}, nil
}
