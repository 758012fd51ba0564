package protocol

import (
	"strings"
	"testing"
)

func TestDecodeValidJoin(t *testing.T) {
	data := []byte(`{"type":"join","roomId":"r1","username":"alice"}`)

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.Type != EventJoin {
		t.Errorf("Expected type join, got %s", ev.Type)
	}
	if ev.RoomID != "r1" || ev.Username != "alice" {
		t.Errorf("Payload mismatch: %+v", ev)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Expected error for non-JSON input")
	}
	if _, err := Decode([]byte("")); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:  "valid join",
			event: Event{Type: EventJoin, RoomID: "r1", Username: "alice"},
		},
		{
			name:    "join without room",
			event:   Event{Type: EventJoin, Username: "alice"},
			wantErr: true,
		},
		{
			name:    "join without username",
			event:   Event{Type: EventJoin, RoomID: "r1"},
			wantErr: true,
		},
		{
			name:  "valid code change",
			event: Event{Type: EventCodeChange, RoomID: "r1", Code: "print(1)"},
		},
		{
			name:    "code change without room",
			event:   Event{Type: EventCodeChange, Code: "print(1)"},
			wantErr: true,
		},
		{
			name:  "valid sync code",
			event: Event{Type: EventSyncCode, SocketID: "abc", Code: "print(1)"},
		},
		{
			name:    "sync code without target",
			event:   Event{Type: EventSyncCode, Code: "print(1)"},
			wantErr: true,
		},
		{
			name:  "valid code run",
			event: Event{Type: EventCodeRun, RoomID: "r1"},
		},
		{
			name:  "valid state change",
			event: Event{Type: EventStateChange, RoomID: "r1", CurrentState: "output"},
		},
		{
			name:    "server-only joined rejected inbound",
			event:   Event{Type: EventJoined, RoomID: "r1"},
			wantErr: true,
		},
		{
			name:    "server-only disconnected rejected inbound",
			event:   Event{Type: EventDisconnected, SocketID: "abc"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			event:   Event{Type: "teleport", RoomID: "r1"},
			wantErr: true,
		},
		{
			name:    "empty type",
			event:   Event{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.event)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	data, err := Encode(&Event{Type: EventCodeRun})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	encoded := string(data)
	if encoded != `{"type":"code-run"}` {
		t.Errorf("Expected minimal envelope, got %s", encoded)
	}
}

func TestEncodeRoster(t *testing.T) {
	data, err := Encode(&Event{
		Type:     EventJoined,
		SocketID: "conn-1",
		Username: "alice",
		Clients: []ClientInfo{
			{SocketID: "conn-1", Username: "alice"},
		},
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	encoded := string(data)
	for _, want := range []string{`"type":"joined"`, `"socketId":"conn-1"`, `"username":"alice"`, `"clients":[`} {
		if !strings.Contains(encoded, want) {
			t.Errorf("Encoded joined event missing %s: %s", want, encoded)
		}
	}
}
