// Package protocol defines the WebSocket event types and structures exchanged
// between the mobile client and the realtime server. All events are serialized
// as JSON and follow a consistent envelope format with a type discriminator.
// Each event name maps to exactly one concrete struct, so handlers switch over
// a closed set instead of duck-typing payloads.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Client -> Server event types.
const (
	TypeJoinRoom           = "join_room"
	TypeLeaveRoom          = "leave_room"
	TypeSendMessage        = "send_message"
	TypeSendPrivateMessage = "send_private_message"
	TypeUpdateStatus       = "update_user_status"
	TypeLocationUpdate     = "location_update"
	TypeRequestNearby      = "request_nearby_users"
	TypePing               = "ping"
)

// Server -> Client event types.
const (
	TypeSessionCreated         = "session_created"
	TypeMessageReceived        = "message_received"
	TypePrivateMessageReceived = "private_message_received"
	TypeRoomHistory            = "room_history"
	TypeOnlineUsersList        = "online_users_list"
	TypeUserJoined             = "user_joined"
	TypeUserLeft               = "user_left"
	TypeUserOnline             = "user_online"
	TypeUserOffline            = "user_offline"
	TypeUserLocationUpdate     = "user_location_update"
	TypeNearbyUsersList        = "nearby_users_list"
	TypeError                  = "error"
	TypePong                   = "pong"
)

// Presence status values carried by update_user_status.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// ---------------------------------------------------------------------------
// Envelope is used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event type and the raw JSON payload for deferred parsing
// into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Shared payload fragments
// ---------------------------------------------------------------------------

// Coordinates is a GPS position attached to location events.
type Coordinates struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
}

// MessageRecord is one persisted or relayed chat message. Room and
// RecipientID are mutually exclusive: a record is either room-broadcast or
// private. Timestamp is ISO-8601 (RFC 3339).
type MessageRecord struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	Body        string `json:"body"`
	Room        string `json:"room,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// RosterUser is one entry in an online_users_list snapshot.
type RosterUser struct {
	UserID   string       `json:"user_id"`
	Status   string       `json:"status"`
	LastSeen int64        `json:"last_seen"` // unix seconds
	Location *Coordinates `json:"location,omitempty"`
}

// NearbyUser is one entry in a nearby_users_list response.
type NearbyUser struct {
	UserID         string      `json:"user_id"`
	Location       Coordinates `json:"location"`
	DistanceMeters float64     `json:"distance_meters"`
}

// ---------------------------------------------------------------------------
// Client -> Server event structs
// ---------------------------------------------------------------------------

// JoinRoomEvent declares membership in a broadcast room. Membership is not
// authoritative until the server answers with a roster snapshot.
type JoinRoomEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// LeaveRoomEvent withdraws membership from a room.
type LeaveRoomEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// SendMessageEvent broadcasts a chat message to a room.
type SendMessageEvent struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SendPrivateMessageEvent sends a 1:1 message. Room carries the deterministic
// pairwise room name so either participant addresses the same scope.
type SendPrivateMessageEvent struct {
	Type      string `json:"type"`
	FriendID  string `json:"friend_id"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// UpdateStatusEvent publishes the local user's presence status.
type UpdateStatusEvent struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// LocationUpdateEvent pushes a live GPS position.
type LocationUpdateEvent struct {
	Type      string      `json:"type"`
	Location  Coordinates `json:"location"`
	Timestamp string      `json:"timestamp"`
}

// RequestNearbyEvent asks for users within RadiusMeters of the requester's
// last known position.
type RequestNearbyEvent struct {
	Type         string  `json:"type"`
	RadiusMeters float64 `json:"radius"`
	Limit        int     `json:"limit"`
}

// PingEvent is a client-initiated keepalive ping.
type PingEvent struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client event structs
// ---------------------------------------------------------------------------

// SessionCreatedEvent is sent by the server once the upgrade handshake and
// token resolution succeed.
type SessionCreatedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// MessageReceivedEvent delivers a room-broadcast chat message, including the
// echo of the sender's own message.
type MessageReceivedEvent struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PrivateMessageReceivedEvent delivers a 1:1 message.
type PrivateMessageReceivedEvent struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Room        string `json:"room"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

// RoomHistoryEvent replays the most recent messages of a room to a joining
// client, oldest first.
type RoomHistoryEvent struct {
	Type     string          `json:"type"`
	Room     string          `json:"room"`
	Messages []MessageRecord `json:"messages"`
}

// OnlineUsersListEvent is a full roster snapshot for a room. It replaces any
// previously known roster on the client (last-snapshot-wins).
type OnlineUsersListEvent struct {
	Type  string       `json:"type"`
	Room  string       `json:"room"`
	Users []RosterUser `json:"users"`
}

// UserJoinedEvent announces a user joining a room.
type UserJoinedEvent struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// UserLeftEvent announces a user leaving a room.
type UserLeftEvent struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	UserID string `json:"user_id"`
}

// UserOnlineEvent announces a user's presence transition to online/away.
type UserOnlineEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// UserOfflineEvent announces a user going offline.
type UserOfflineEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// UserLocationUpdateEvent relays a remote user's live position.
type UserLocationUpdateEvent struct {
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	Location  Coordinates `json:"location"`
	Timestamp string      `json:"timestamp"`
}

// NearbyUsersListEvent answers a request_nearby_users query.
type NearbyUsersListEvent struct {
	Type  string       `json:"type"`
	Users []NearbyUser `json:"users"`
}

// ErrorEvent communicates an error condition to the client.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongEvent is the server's response to a client ping.
type PongEvent struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientEvent parses raw WebSocket bytes into a typed client event. It
// returns the event type string, the decoded struct, and any error
// encountered. An error is returned for unknown or server-only event types.
func ParseClientEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		evt interface{}
		err error
	)

	switch env.Type {
	case TypeJoinRoom:
		var e JoinRoomEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeLeaveRoom:
		var e LeaveRoomEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeSendMessage:
		var e SendMessageEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeSendPrivateMessage:
		var e SendPrivateMessageEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUpdateStatus:
		var e UpdateStatusEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeLocationUpdate:
		var e LocationUpdateEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeRequestNearby:
		var e RequestNearbyEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypePing:
		var e PingEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, evt, nil
}

// ParseServerEvent parses raw WebSocket bytes into a typed server event. The
// client-side dispatcher uses this to republish inbound frames locally as
// concrete structs. An error is returned for unknown or client-only types.
func ParseServerEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		evt interface{}
		err error
	)

	switch env.Type {
	case TypeSessionCreated:
		var e SessionCreatedEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeMessageReceived:
		var e MessageReceivedEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypePrivateMessageReceived:
		var e PrivateMessageReceivedEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeRoomHistory:
		var e RoomHistoryEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeOnlineUsersList:
		var e OnlineUsersListEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUserJoined:
		var e UserJoinedEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUserLeft:
		var e UserLeftEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUserOnline:
		var e UserOnlineEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUserOffline:
		var e UserOfflineEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeUserLocationUpdate:
		var e UserLocationUpdateEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeNearbyUsersList:
		var e NearbyUsersListEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypeError:
		var e ErrorEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	case TypePong:
		var e PongEvent
		err = json.Unmarshal(env.Raw, &e)
		evt = e
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown server event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, evt, nil
}

// NewEvent creates a JSON-encoded byte slice for an event of either
// direction. The eventType is injected into the payload under the "type" key,
// overriding whatever the struct carries, so callers can pass zero-valued
// Type fields.
func NewEvent(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = eventType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal event: %w", err)
	}
	return out, nil
}
