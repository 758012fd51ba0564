package ws

import (
	"log/slog"
	"sync"

	"github.com/codedeck/server/internal/db"
	"github.com/codedeck/server/internal/protocol"
	"github.com/codedeck/server/internal/room"
)

// Hub owns all connection and room state and routes every typed event.
// A single Run goroutine consumes the channels, so each event executes as
// an atomic transaction against the registry and index: a roster computed
// for a join can never interleave with a concurrent leave for the same room.
type Hub struct {
	// Display names and room membership, owned by the Run loop
	registry *room.Registry
	index    *room.Index

	// Every live connection by id, joined or not
	clients map[string]*Client

	inbound    chan *inboundEvent
	register   chan *Client
	unregister chan *Client

	// Optional activity store for the stats endpoint; never consulted on
	// the fan-out path
	database *db.Database

	// Guards reads from other goroutines (stats handlers); the Run loop is
	// the only writer
	mu sync.RWMutex
}

type inboundEvent struct {
	sender *Client
	event  *protocol.Event
}

func NewHub(database *db.Database) *Hub {
	return &Hub{
		registry:   room.NewRegistry(),
		index:      room.NewIndex(),
		clients:    make(map[string]*Client),
		inbound:    make(chan *inboundEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		database:   database,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			slog.Debug("client connected", "clientId", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			h.teardown(client)
			h.mu.Unlock()

		case msg := <-h.inbound:
			h.mu.Lock()
			h.dispatch(msg.sender, msg.event)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dispatch(sender *Client, ev *protocol.Event) {
	// A connection the hub already tore down (slow-client eviction) may
	// still have queued events in flight; drop them.
	if _, ok := h.clients[sender.id]; !ok {
		return
	}

	switch ev.Type {
	case protocol.EventJoin:
		h.handleJoin(sender, ev)

	case protocol.EventSyncCode:
		// Unicast: push current code to one newly joined peer. The target
		// receives it as an ordinary code-change. A vanished target is a
		// no-op, never an error.
		target, ok := h.clients[ev.SocketID]
		if !ok {
			return
		}
		h.deliver(target, &protocol.Event{
			Type: protocol.EventCodeChange,
			Code: ev.Code,
		})

	case protocol.EventCodeChange:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type: protocol.EventCodeChange,
			Code: ev.Code,
		})

	case protocol.EventInputChange:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type:  protocol.EventInputChange,
			Input: ev.Input,
		})

	case protocol.EventOutputChange:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type:   protocol.EventOutputChange,
			Output: ev.Output,
		})

	case protocol.EventLanguageChange:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type:     protocol.EventLanguageChange,
			Language: ev.Language,
		})

	case protocol.EventStateChange:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type:         protocol.EventStateChange,
			CurrentState: ev.CurrentState,
		})

	case protocol.EventCodeRun:
		h.broadcast(ev.RoomID, sender, &protocol.Event{
			Type: protocol.EventCodeRun,
		})
	}
}

// handleJoin moves a connection from unjoined to joined: record the name,
// add the room membership, then send the same roster snapshot to every
// member of the room, the newcomer included. Existing members use the
// newcomer's socketId from this event to unicast the current code back.
func (h *Hub) handleJoin(sender *Client, ev *protocol.Event) {
	h.registry.Record(sender.id, ev.Username)
	h.index.Join(sender.id, ev.RoomID)

	members := h.index.Members(ev.RoomID)

	roster := make([]protocol.ClientInfo, 0, len(members))
	for _, id := range members {
		name, _ := h.registry.Lookup(id)
		roster = append(roster, protocol.ClientInfo{SocketID: id, Username: name})
	}

	joined := &protocol.Event{
		Type:     protocol.EventJoined,
		Clients:  roster,
		Username: ev.Username,
		SocketID: sender.id,
	}
	for _, id := range members {
		if member, ok := h.clients[id]; ok {
			h.deliver(member, joined)
		}
	}

	slog.Info("client joined room", "clientId", sender.id, "room", ev.RoomID,
		"username", ev.Username, "members", len(members))

	if h.database != nil {
		go func(roomID string, count int) {
			if err := h.database.RecordJoin(roomID, count); err != nil {
				slog.Warn("recording room activity failed", "room", roomID, "error", err)
			}
		}(ev.RoomID, len(members))
	}
}

// teardown runs the full disconnect transition: one departure notice per
// room the connection belonged to, then purge. Safe to call more than once
// per connection; only the first call finds the client registered.
func (h *Hub) teardown(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)

	rooms := h.index.Rooms(client.id)
	h.index.Leave(client.id)

	username, joined := h.registry.Lookup(client.id)
	h.registry.Remove(client.id)

	close(client.send)

	// A connection that never joined is purged silently
	if !joined {
		slog.Debug("unjoined client disconnected", "clientId", client.id)
		return
	}

	departed := &protocol.Event{
		Type:     protocol.EventDisconnected,
		SocketID: client.id,
		Username: username,
	}
	for _, roomID := range rooms {
		for _, id := range h.index.Members(roomID) {
			if member, ok := h.clients[id]; ok {
				h.deliver(member, departed)
			}
		}
		slog.Info("client left room", "clientId", client.id, "room", roomID,
			"username", username)
	}
}

// broadcast fans an event out to every member of the room except the
// sender. An empty or unknown room is a no-op, as is an event naming a room
// the sender never joined.
func (h *Hub) broadcast(roomID string, sender *Client, ev *protocol.Event) {
	if !h.index.IsMember(sender.id, roomID) {
		return
	}
	for _, id := range h.index.Members(roomID) {
		if id == sender.id {
			continue
		}
		if member, ok := h.clients[id]; ok {
			h.deliver(member, ev)
		}
	}
}

// deliver queues an encoded event on one client's send channel. A client
// whose buffer is full is evicted rather than allowed to stall the room.
func (h *Hub) deliver(client *Client, ev *protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("encoding outbound event failed", "type", ev.Type, "error", err)
		return
	}

	select {
	case client.send <- data:
	default:
		slog.Warn("evicting slow client", "clientId", client.id)
		h.teardown(client)
	}
}

// Stats accessors, safe from any goroutine.

func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.RoomCount()
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Returns member counts per active room
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.ActiveRooms()
}
