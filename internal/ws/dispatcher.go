package ws

import (
	"log"
	"time"

	"github.com/yakin/dating-app/internal/protocol"
)

// EventHandler is the callback signature for handling a parsed client event.
// The event parameter is the concrete struct returned by
// protocol.ParseClientEvent (e.g., protocol.JoinRoomEvent,
// protocol.SendMessageEvent, etc.).
type EventHandler func(conn *Connection, event interface{})

// EventDispatcher routes incoming WebSocket events to registered handlers
// based on the event type. It handles the built-in ping/pong keepalive
// internally and sends structured error responses for malformed or
// unsupported events.
type EventDispatcher struct {
	handlers map[string]EventHandler
}

// NewEventDispatcher creates an empty EventDispatcher. Responses are written
// directly on the originating connection, so no server reference is needed.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string]EventHandler),
	}
}

// Register associates an EventHandler with an event type. If a handler was
// already registered for the given type, it is silently replaced.
func (d *EventDispatcher) Register(eventType string, handler EventHandler) {
	d.handlers[eventType] = handler
}

// Dispatch is the onMessage callback implementation. It parses the raw bytes
// into a typed event, handles ping internally, and routes all other types to
// the registered handler. Parse errors and unregistered types result in an
// error event sent back to the client.
func (d *EventDispatcher) Dispatch(conn *Connection, data []byte) {
	eventType, event, err := protocol.ParseClientEvent(data)
	if err != nil {
		log.Printf("ws: dispatch parse error session=%s: %v", conn.ID, err)
		d.SendError(conn, "parse_error", "invalid event format")
		return
	}

	// Built-in ping handler: respond immediately without requiring registration.
	if eventType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[eventType]
	if !ok {
		log.Printf("ws: unsupported event type=%q session=%s", eventType, conn.ID)
		d.SendError(conn, "unsupported_type", "unsupported event type")
		return
	}

	handler(conn, event)
}

// SendError sends a structured error event back to the client. Errors during
// event construction or transmission are logged but not propagated. It is
// exported so application handlers can reuse it for validation failures.
func (d *EventDispatcher) SendError(conn *Connection, code string, message string) {
	data, err := protocol.NewEvent(protocol.TypeError, protocol.ErrorEvent{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("ws: failed to build error event session=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send error event session=%s: %v", conn.ID, err)
	}
}

// sendPong responds to a client ping with a pong event and updates the
// connection's LastPing timestamp to reflect the most recent keepalive.
func (d *EventDispatcher) sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewEvent(protocol.TypePong, protocol.PongEvent{})
	if err != nil {
		log.Printf("ws: failed to build pong event session=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send pong event session=%s: %v", conn.ID, err)
	}
}
