package dto

import (
	"encoding/json"
	"fmt"
)

// Realtime event names. Every websocket frame carries exactly one of them.
const (
	EventConnected       = "connected"
	EventJoin            = "join"
	EventJoined          = "joined"
	EventCodeChange      = "code-change"
	EventSyncCode        = "sync-code"
	EventLeft            = "left"
	EventExecutionResult = "execution-result"
	EventError           = "error"
)

type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Participant is one roster entry.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type ConnectedEvent struct {
	ConnectionID string `json:"connectionId"`
}

type JoinRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type JoinedEvent struct {
	Roster       []Participant `json:"roster"`
	DisplayName  string        `json:"displayName"`
	ConnectionID string        `json:"connectionId"`
}

// CodeChange is both the client's relay request and what peers receive.
// Content is a pointer so that an explicit null can be told apart from an
// empty document.
type CodeChange struct {
	RoomID  string  `json:"roomId,omitempty"`
	Content *string `json:"content"`
}

type SyncCodeRequest struct {
	TargetConnectionID string  `json:"targetConnectionId"`
	Content            *string `json:"content"`
}

type LeftEvent struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type ExecutionResultEvent struct {
	Language    string         `json:"language"`
	Version     string         `json:"version"`
	Run         ExecutionStage `json:"run"`
	RequestedBy string         `json:"requestedBy,omitempty"`
}

// Encode builds a complete frame.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// Decode splits a frame into its event name and raw payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event")
	}
	return env, nil
}

func (e Envelope) Into(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}

func StringPtr(s string) *string {
	return &s
}
