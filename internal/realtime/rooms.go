package realtime

import "sync"

// RoomRegistry is the process-wide index of which connections have joined
// which rooms. Rooms have no independent lifecycle: one exists exactly as
// long as at least one connection is joined. All mutation funnels through
// this synchronized API; handlers never touch shared maps directly.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // room key -> connection IDs
	byConn map[string]map[string]struct{} // connection ID -> room keys
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room. Idempotent.
func (r *RoomRegistry) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][room] = struct{}{}
}

// Leave removes the connection from the room. Idempotent; the room itself
// disappears with its last member.
func (r *RoomRegistry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes the connection from every room it joined and returns the
// rooms it left. Called on disconnect.
func (r *RoomRegistry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]string, 0, len(r.byConn[connID]))
	for room := range r.byConn[connID] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leaveLocked(connID, room)
	}
	return rooms
}

// RoomsOf returns the rooms the connection currently belongs to.
func (r *RoomRegistry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]string, 0, len(r.byConn[connID]))
	for room := range r.byConn[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// IsMember reports whether the connection has joined the room.
func (r *RoomRegistry) IsMember(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

// Members returns the IDs of every connection joined to the room.
func (r *RoomRegistry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.rooms[room]))
	for connID := range r.rooms[room] {
		members = append(members, connID)
	}
	return members
}

func (r *RoomRegistry) leaveLocked(connID, room string) {
	if conns, ok := r.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.byConn[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
}
