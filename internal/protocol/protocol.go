package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType tags an event envelope
type EventType string

const (
	EventJoin           EventType = "join"
	EventJoined         EventType = "joined"
	EventCodeChange     EventType = "code-change"
	EventSyncCode       EventType = "sync-code"
	EventInputChange    EventType = "input-change"
	EventOutputChange   EventType = "output-change"
	EventLanguageChange EventType = "language-change"
	EventStateChange    EventType = "state-change"
	EventCodeRun        EventType = "code-run"
	EventDisconnected   EventType = "disconnected"
)

// ClientInfo is one roster entry in a joined event
type ClientInfo struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// Event is the JSON envelope exchanged over the socket. Only the fields
// relevant to the tag are set; everything else stays empty on the wire.
type Event struct {
	Type EventType `json:"type"`

	RoomID   string `json:"roomId,omitempty"`
	Username string `json:"username,omitempty"`

	// Target (sync-code) or subject (joined/disconnected) connection id
	SocketID string `json:"socketId,omitempty"`

	Clients []ClientInfo `json:"clients,omitempty"`

	Code         string `json:"code,omitempty"`
	Input        string `json:"input,omitempty"`
	Output       string `json:"output,omitempty"`
	Language     string `json:"language,omitempty"`
	CurrentState string `json:"currentState,omitempty"`
}

func Decode(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

func Encode(ev *Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Validate checks that an inbound event carries a known tag and the payload
// fields its tag requires. Server-to-client tags are not accepted inbound.
func Validate(ev *Event) error {
	switch ev.Type {
	case EventJoin:
		if ev.RoomID == "" {
			return fmt.Errorf("join without roomId")
		}
		if ev.Username == "" {
			return fmt.Errorf("join without username")
		}
		return nil
	case EventSyncCode:
		if ev.SocketID == "" {
			return fmt.Errorf("sync-code without target socketId")
		}
		return nil
	case EventCodeChange, EventInputChange, EventOutputChange,
		EventLanguageChange, EventStateChange, EventCodeRun:
		if ev.RoomID == "" {
			return fmt.Errorf("%s without roomId", ev.Type)
		}
		return nil
	case EventJoined, EventDisconnected:
		return fmt.Errorf("server-only event type: %s", ev.Type)
	default:
		return fmt.Errorf("unknown event type: %q", ev.Type)
	}
}
