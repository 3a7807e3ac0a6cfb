package client

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/yakin/dating-app/internal/geo"
	"github.com/yakin/dating-app/internal/protocol"
	"github.com/yakin/dating-app/internal/room"
)

// remote is the outbound surface the client components need from the
// Manager. Tests substitute a fake.
type remote interface {
	SendRemote(eventType string, payload interface{}) error
	State() State
	UserID() string
}

// PresenceEntry is the client's view of one remote user in a room roster.
// DistanceMeters is derived from the local user's last GPS fix and is -1
// when either side's position is unknown.
type PresenceEntry struct {
	UserID         string
	Status         string
	LastSeen       time.Time
	Location       *protocol.Coordinates
	DistanceMeters float64
}

// RoomManager tracks which rooms the local client wants to be in (the
// desired set) and the roster of online users per room. The desired set
// survives connection drops: after every reconnect the manager re-declares
// each desired room exactly once.
type RoomManager struct {
	remote       remote
	bus          *Bus
	selfLocation func() *geo.Sample // local user's last valid fix, nil if none

	mu      sync.Mutex
	desired map[string]struct{}
	rosters map[string]map[string]*PresenceEntry
}

// NewRoomManager creates a RoomManager and binds its presence handlers on
// the bus. Wire ResendJoins to the manager's OnConnected hook so membership
// is re-declared after reconnects.
func NewRoomManager(r remote, bus *Bus, selfLocation func() *geo.Sample) *RoomManager {
	rm := &RoomManager{
		remote:       r,
		bus:          bus,
		selfLocation: selfLocation,
		desired:      make(map[string]struct{}),
		rosters:      make(map[string]map[string]*PresenceEntry),
	}

	bus.On(protocol.TypeOnlineUsersList, rm.handleRosterSnapshot)
	bus.On(protocol.TypeUserJoined, rm.handleUserJoined)
	bus.On(protocol.TypeUserLeft, rm.handleUserLeft)
	bus.On(protocol.TypeUserOnline, rm.handleUserOnline)
	bus.On(protocol.TypeUserOffline, rm.handleUserOffline)
	bus.On(protocol.TypeUserLocationUpdate, rm.handleLocationUpdate)

	return rm
}

// Join adds the room to the desired set and, when the socket is connected,
// declares membership to the server. While offline the declaration is
// deferred: the desired set is replayed on the next successful connect.
func (rm *RoomManager) Join(roomName string) {
	rm.mu.Lock()
	_, already := rm.desired[roomName]
	rm.desired[roomName] = struct{}{}
	rm.mu.Unlock()

	if rm.remote.State() != StateConnected {
		log.Printf("client: join %q deferred until connected", roomName)
		return
	}
	if already {
		// Membership was already declared this connection cycle.
		return
	}
	rm.sendJoin(roomName)
}

// Leave removes the room from the desired set, clears its roster, and tells
// the server when connected.
func (rm *RoomManager) Leave(roomName string) {
	rm.mu.Lock()
	delete(rm.desired, roomName)
	delete(rm.rosters, roomName)
	rm.mu.Unlock()

	if rm.remote.State() != StateConnected {
		return
	}
	_ = rm.remote.SendRemote(protocol.TypeLeaveRoom, protocol.LeaveRoomEvent{Room: roomName})
}

// JoinPrivate joins the deterministic pairwise room shared with the given
// user and returns its name. Both participants derive the same name
// regardless of who initiates.
func (rm *RoomManager) JoinPrivate(friendID string) string {
	name := room.PairRoom(rm.remote.UserID(), friendID)
	rm.Join(name)
	return name
}

// ResendJoins re-declares every desired room. It is meant to be registered
// with Manager.OnConnected so each reconnect cycle produces exactly one
// join_room per desired room.
func (rm *RoomManager) ResendJoins() {
	rm.mu.Lock()
	rooms := make([]string, 0, len(rm.desired))
	for name := range rm.desired {
		rooms = append(rooms, name)
	}
	rm.mu.Unlock()

	sort.Strings(rooms)
	for _, name := range rooms {
		rm.sendJoin(name)
	}
}

// Desired returns a sorted snapshot of the desired room set.
func (rm *RoomManager) Desired() []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rooms := make([]string, 0, len(rm.desired))
	for name := range rm.desired {
		rooms = append(rooms, name)
	}
	sort.Strings(rooms)
	return rooms
}

// Roster returns a snapshot of the known roster for a room, sorted by user
// ID. The snapshot is detached from internal state.
func (rm *RoomManager) Roster(roomName string) []PresenceEntry {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	users := rm.rosters[roomName]
	out := make([]PresenceEntry, 0, len(users))
	for _, e := range users {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (rm *RoomManager) sendJoin(roomName string) {
	_ = rm.remote.SendRemote(protocol.TypeJoinRoom, protocol.JoinRoomEvent{Room: roomName})
}

// handleRosterSnapshot replaces the room's roster wholesale. The server's
// snapshot is authoritative; any locally accumulated entries are discarded.
func (rm *RoomManager) handleRosterSnapshot(event interface{}) {
	e, ok := event.(protocol.OnlineUsersListEvent)
	if !ok {
		return
	}

	users := make(map[string]*PresenceEntry, len(e.Users))
	for _, u := range e.Users {
		entry := &PresenceEntry{
			UserID:         u.UserID,
			Status:         u.Status,
			LastSeen:       time.Unix(u.LastSeen, 0),
			DistanceMeters: -1,
		}
		if u.Location != nil {
			loc := *u.Location
			entry.Location = &loc
			entry.DistanceMeters = rm.distanceTo(loc)
		}
		users[u.UserID] = entry
	}

	rm.mu.Lock()
	rm.rosters[e.Room] = users
	rm.mu.Unlock()
}

// handleUserJoined upserts the joining user into the room's roster.
func (rm *RoomManager) handleUserJoined(event interface{}) {
	e, ok := event.(protocol.UserJoinedEvent)
	if !ok {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	users := rm.rosters[e.Room]
	if users == nil {
		users = make(map[string]*PresenceEntry)
		rm.rosters[e.Room] = users
	}
	if entry, ok := users[e.UserID]; ok {
		entry.Status = protocol.StatusOnline
		entry.LastSeen = time.Now()
		return
	}
	users[e.UserID] = &PresenceEntry{
		UserID:         e.UserID,
		Status:         protocol.StatusOnline,
		LastSeen:       time.Now(),
		DistanceMeters: -1,
	}
}

// handleUserLeft removes the user from the room's roster.
func (rm *RoomManager) handleUserLeft(event interface{}) {
	e, ok := event.(protocol.UserLeftEvent)
	if !ok {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if users := rm.rosters[e.Room]; users != nil {
		delete(users, e.UserID)
	}
}

// handleUserOnline updates the user's status in every roster that already
// knows them. Presence transitions carry no room scope.
func (rm *RoomManager) handleUserOnline(event interface{}) {
	e, ok := event.(protocol.UserOnlineEvent)
	if !ok {
		return
	}
	status := e.Status
	if status == "" {
		status = protocol.StatusOnline
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, users := range rm.rosters {
		if entry, ok := users[e.UserID]; ok {
			entry.Status = status
			entry.LastSeen = time.Now()
		}
	}
}

// handleUserOffline drops the user from every roster.
func (rm *RoomManager) handleUserOffline(event interface{}) {
	e, ok := event.(protocol.UserOfflineEvent)
	if !ok {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, users := range rm.rosters {
		delete(users, e.UserID)
	}
}

// handleLocationUpdate stores the user's new position and recomputes the
// derived distance wherever the user appears.
func (rm *RoomManager) handleLocationUpdate(event interface{}) {
	e, ok := event.(protocol.UserLocationUpdateEvent)
	if !ok {
		return
	}
	dist := rm.distanceTo(e.Location)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	for _, users := range rm.rosters {
		if entry, ok := users[e.UserID]; ok {
			loc := e.Location
			entry.Location = &loc
			entry.LastSeen = time.Now()
			entry.DistanceMeters = dist
		}
	}
}

// distanceTo computes the jitter-corrected distance from the local user's
// last fix to the given coordinates, or -1 when no local fix exists.
func (rm *RoomManager) distanceTo(loc protocol.Coordinates) float64 {
	if rm.selfLocation == nil {
		return -1
	}
	self := rm.selfLocation()
	if self == nil {
		return -1
	}
	return geo.CorrectedDistance(self.Latitude, self.Longitude, loc.Latitude, loc.Longitude)
}
