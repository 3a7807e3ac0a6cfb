// Package room tracks which connections have joined which broadcast rooms on
// this server instance, and keeps a short per-room message history for replay
// to joining clients. Membership here is the server-side source of truth that
// roster snapshots are built from.
package room

import (
	"sync"
)

// Member is one session's membership in a room.
type Member struct {
	SessionID string
	UserID    string
}

// Registry is a thread-safe registry mapping rooms to their members and
// sessions to their rooms. Joins are idempotent per session.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]string   // room -> sessionID -> userID
	bySession map[string]map[string]struct{} // sessionID -> set of rooms
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]map[string]string),
		bySession: make(map[string]map[string]struct{}),
	}
}

// Join adds a session to a room. It returns true if this call created the
// membership, false if the session was already in the room (re-joins after a
// reconnect hit this path and must not double-announce).
func (r *Registry) Join(roomName, sessionID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomName]
	if !ok {
		members = make(map[string]string)
		r.rooms[roomName] = members
	}
	if _, exists := members[sessionID]; exists {
		return false
	}
	members[sessionID] = userID

	set, ok := r.bySession[sessionID]
	if !ok {
		set = make(map[string]struct{})
		r.bySession[sessionID] = set
	}
	set[roomName] = struct{}{}
	return true
}

// Leave removes a session from a room. It returns true if the membership
// existed, along with whether the room is now empty (so the caller can tear
// down its fan-out subscription).
func (r *Registry) Leave(roomName, sessionID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(roomName, sessionID)
}

func (r *Registry) leaveLocked(roomName, sessionID string) (removed, empty bool) {
	members, ok := r.rooms[roomName]
	if !ok {
		return false, false
	}
	if _, exists := members[sessionID]; !exists {
		return false, len(members) == 0
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, roomName)
		empty = true
	}

	if set, ok := r.bySession[sessionID]; ok {
		delete(set, roomName)
		if len(set) == 0 {
			delete(r.bySession, sessionID)
		}
	}
	return true, empty
}

// LeaveAll removes a session from every room it joined and returns the list
// of rooms it was in, paired with whether each room became empty. Called on
// disconnect.
func (r *Registry) LeaveAll(sessionID string) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}

	departures := make([]Departure, 0, len(set))
	for roomName := range set {
		_, empty := r.leaveLocked(roomName, sessionID)
		departures = append(departures, Departure{Room: roomName, Empty: empty})
	}
	return departures
}

// Departure records one room a session left during LeaveAll.
type Departure struct {
	Room  string
	Empty bool
}

// Members returns a snapshot of a room's members. The returned slice is safe
// to iterate without holding the lock.
func (r *Registry) Members(roomName string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomName]
	out := make([]Member, 0, len(members))
	for sid, uid := range members {
		out = append(out, Member{SessionID: sid, UserID: uid})
	}
	return out
}

// Rooms returns the rooms a session has joined.
func (r *Registry) Rooms(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.bySession[sessionID]
	out := make([]string, 0, len(set))
	for roomName := range set {
		out = append(out, roomName)
	}
	return out
}

// Contains reports whether a session is currently in a room.
func (r *Registry) Contains(roomName, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomName]
	if !ok {
		return false
	}
	_, exists := members[sessionID]
	return exists
}

// Count returns the number of members in a room.
func (r *Registry) Count(roomName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomName])
}

// ActiveRooms returns the number of rooms with at least one member.
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
