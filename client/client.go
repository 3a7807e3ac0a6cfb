// Package client implements the mobile app's realtime socket layer: a
// WebSocket connection manager with automatic reconnection, a local event
// dispatcher, room and presence tracking, a GPS kinematics engine, and
// optimistic message de-duplication. It connects using gobwas/ws, the same
// library the server is built on.
package client

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/yakin/dating-app/internal/protocol"
)

// State is the connection lifecycle state of the Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase name of the state for logging and the
// connection_status local event.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// TypeConnectionStatus is a local-only event published on every state
// transition. It never crosses the wire.
const TypeConnectionStatus = "connection_status"

// ConnectionStatusEvent is the payload of the connection_status local event.
type ConnectionStatusEvent struct {
	Status  string `json:"status"`
	Attempt int    `json:"attempt"` // reconnect attempt count, 0 when stable
}

// Config holds tunable parameters for the socket manager.
type Config struct {
	URL          string        // WebSocket endpoint, e.g. ws://host:8080/ws
	Token        string        // auth token; empty means connect attempts are skipped
	BackoffBase  time.Duration // first retry delay, doubled per attempt
	MaxRetries   int           // drop-triggered backoff attempts before deferring to the poll
	PollInterval time.Duration // unconditional liveness poll cadence
	DialTimeout  time.Duration // per-attempt dial timeout
}

// DefaultConfig returns a Config with production defaults matching the
// mobile app's tuning.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		BackoffBase:  time.Second,
		MaxRetries:   5,
		PollInterval: time.Second,
		DialTimeout:  10 * time.Second,
	}
}

// Manager owns one persistent, authenticated WebSocket connection to the
// realtime server. It reconnects automatically with exponential backoff,
// republishes inbound frames on the local Bus as typed events, and exposes
// SendRemote for outbound traffic. All methods are goroutine-safe.
type Manager struct {
	cfg Config
	bus *Bus

	mu        sync.Mutex
	state     State
	conn      net.Conn
	gen       uint64 // connection generation, invalidates stale read loops
	attempt   int    // consecutive drop-triggered retries
	sessionID string
	userID    string
	closed    bool
	dialing   bool // a Connect call currently owns the dial

	writeMu     sync.Mutex // serializes outbound frames
	pollOnce    sync.Once
	done        chan struct{}
	closeOnce   sync.Once
	onConnected []func() // run after each successful (re)connect
}

// NewManager creates a socket manager publishing on the given Bus. No
// connection is attempted until Connect is called.
func NewManager(cfg Config, bus *Bus) *Manager {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:  cfg,
		bus:  bus,
		done: make(chan struct{}),
	}
}

// Bus returns the local event dispatcher.
func (m *Manager) Bus() *Bus { return m.bus }

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the session ID assigned by the server for the current
// connection, or empty if no handshake has completed.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// UserID returns the authenticated user ID confirmed by session_created, or
// empty before the first handshake.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// SetToken updates the auth token used for subsequent connection attempts.
// The liveness poll picks it up within one interval.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	m.cfg.Token = token
	m.mu.Unlock()
}

// OnConnected registers a callback invoked after every successful connect,
// including reconnects. The room manager uses this to re-declare membership.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	m.onConnected = append(m.onConnected, fn)
	m.mu.Unlock()
}

// Connect establishes the WebSocket connection if one is not already being
// established. It is idempotent: calling it while connecting or connected is
// a no-op, and calling it without a token skips the attempt but still starts
// the liveness poll, which retries once a token is set. The dial itself runs
// synchronously.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.dialing || m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	if m.cfg.Token == "" {
		m.mu.Unlock()
		log.Printf("client: connect skipped, no token set")
		m.startPoll()
		return
	}
	m.dialing = true
	prevAttempt := m.attempt
	next := StateConnecting
	if prevAttempt > 0 {
		next = StateReconnecting
	}
	m.state = next
	url := m.cfg.URL + "?token=" + m.cfg.Token
	timeout := m.cfg.DialTimeout
	m.mu.Unlock()

	m.publishStatus(next, prevAttempt)
	m.startPoll()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	conn, _, _, err := ws.Dial(ctx, url)
	cancel()
	if err != nil {
		log.Printf("client: dial failed: %v", err)
		m.mu.Lock()
		m.dialing = false
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.state = StateDisconnected
		m.mu.Unlock()
		m.publishStatus(StateDisconnected, prevAttempt)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	m.dialing = false
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = StateConnected
	m.attempt = 0
	m.gen++
	gen := m.gen
	callbacks := make([]func(), len(m.onConnected))
	copy(callbacks, m.onConnected)
	m.mu.Unlock()

	m.publishStatus(StateConnected, 0)
	go m.readLoop(conn, gen)

	for _, fn := range callbacks {
		fn()
	}
}

// SendRemote serializes the payload as an event of the given type and writes
// it to the server. When the socket is not connected the event is dropped
// with a warning; callers treat outbound traffic as fire-and-forget and the
// returned error exists only for diagnostics.
func (m *Manager) SendRemote(eventType string, payload interface{}) error {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		log.Printf("client: dropping %q, socket not connected (state=%s)", eventType, state)
		return nil
	}

	data, err := protocol.NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("client: encode %q: %w", eventType, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := wsutil.WriteClientMessage(conn, ws.OpText, data); err != nil {
		return fmt.Errorf("client: write %q: %w", eventType, err)
	}
	return nil
}

// PublishLocal publishes an event to local subscribers only. It never sends
// anything to the server; use SendRemote for that.
func (m *Manager) PublishLocal(eventType string, event interface{}) {
	m.bus.Publish(eventType, event)
}

// Disconnect tears down the connection and disables all future reconnect
// attempts, including the poll. It is terminal and safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.state = StateDisconnected
		conn := m.conn
		m.conn = nil
		m.mu.Unlock()

		close(m.done)
		if conn != nil {
			conn.Close()
		}
		m.publishStatus(StateDisconnected, 0)
	})
}

// readLoop reads server frames until the connection drops, republishing each
// as a typed event on the Bus. The generation guard ensures a loop belonging
// to a replaced connection cannot corrupt the manager's state.
func (m *Manager) readLoop(conn net.Conn, gen uint64) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			m.handleDrop(gen, err)
			return
		}

		eventType, event, perr := protocol.ParseServerEvent(data)
		if perr != nil {
			log.Printf("client: ignoring unparseable frame: %v", perr)
			continue
		}

		if sc, ok := event.(protocol.SessionCreatedEvent); ok {
			m.mu.Lock()
			m.sessionID = sc.SessionID
			m.userID = sc.UserID
			m.mu.Unlock()
		}

		m.bus.Publish(eventType, event)
	}
}

// handleDrop reacts to a read failure on the current connection: it marks
// the manager reconnecting and schedules a backoff-driven retry. Drops on
// stale generations and intentional disconnects are ignored.
func (m *Manager) handleDrop(gen uint64, cause error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateReconnecting
	m.mu.Unlock()

	log.Printf("client: connection dropped: %v", cause)
	m.publishStatus(StateReconnecting, 0)
	m.scheduleReconnect()
}

// publishStatus emits the connection_status local event.
func (m *Manager) publishStatus(s State, attempt int) {
	m.bus.Publish(TypeConnectionStatus, ConnectionStatusEvent{
		Status:  s.String(),
		Attempt: attempt,
	})
}
