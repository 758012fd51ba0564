package room

// Registry maps a connection id to the display name chosen at join time.
// All access is serialized through the hub's event loop; there is no
// internal locking.
type Registry struct {
	names map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]string),
	}
}

// Records the display name for a connection. The first recorded name wins;
// a repeat call for the same connection is a no-op.
func (r *Registry) Record(connID, username string) {
	if _, ok := r.names[connID]; ok {
		return
	}
	r.names[connID] = username
}

// Returns the display name for a connection, if it ever joined
func (r *Registry) Lookup(connID string) (string, bool) {
	name, ok := r.names[connID]
	return name, ok
}

// Removes the registry entry. Removing an unknown connection is a no-op.
func (r *Registry) Remove(connID string) {
	delete(r.names, connID)
}

func (r *Registry) Len() int {
	return len(r.names)
}

// Index maintains the member set of each room. A room exists exactly while
// its member set is non-empty. Like Registry, it is owned by the hub loop.
type Index struct {
	rooms map[string]map[string]struct{}
}

func NewIndex() *Index {
	return &Index{
		rooms: make(map[string]map[string]struct{}),
	}
}

// Adds the connection to the room's member set. A connection already in
// another room is not removed from it; the protocol assumes one join per
// connection lifetime and this preserves that behavior rather than
// second-guessing it.
func (i *Index) Join(connID, roomID string) {
	members, ok := i.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		i.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

// Returns the member connection ids of a room. An unknown room yields an
// empty slice, not an error.
func (i *Index) Members(roomID string) []string {
	members := i.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Reports whether the connection is currently a member of the room
func (i *Index) IsMember(connID, roomID string) bool {
	_, ok := i.rooms[roomID][connID]
	return ok
}

// Returns every room the connection is currently a member of
func (i *Index) Rooms(connID string) []string {
	var ids []string
	for roomID, members := range i.rooms {
		if _, ok := members[connID]; ok {
			ids = append(ids, roomID)
		}
	}
	return ids
}

// Removes the connection from every room it is in, dropping room records
// that become empty. Idempotent; a never-joined connection is a no-op.
func (i *Index) Leave(connID string) {
	for roomID, members := range i.rooms {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(i.rooms, roomID)
			}
		}
	}
}

// Returns the number of rooms with at least one member
func (i *Index) RoomCount() int {
	return len(i.rooms)
}

// Returns member counts per room
func (i *Index) ActiveRooms() map[string]int {
	counts := make(map[string]int, len(i.rooms))
	for roomID, members := range i.rooms {
		counts[roomID] = len(members)
	}
	return counts
}
