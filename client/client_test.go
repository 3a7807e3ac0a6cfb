package client

import (
	"sync"
	"testing"
	"time"
)

// fakeRemote records outbound events instead of writing to a socket.
type fakeRemote struct {
	mu     sync.Mutex
	state  State
	userID string
	sent   []sentEvent
}

type sentEvent struct {
	Type    string
	Payload interface{}
}

func (f *fakeRemote) SendRemote(eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{Type: eventType, Payload: payload})
	return nil
}

func (f *fakeRemote) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRemote) UserID() string { return f.userID }

func (f *fakeRemote) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeRemote) sentOfType(eventType string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.sent {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConnectWithoutTokenSkipsAttempt(t *testing.T) {
	bus := NewBus()
	statuses := make(chan string, 8)
	bus.On(TypeConnectionStatus, func(event interface{}) {
		statuses <- event.(ConnectionStatusEvent).Status
	})

	m := NewManager(DefaultConfig("ws://127.0.0.1:1/ws"), bus)
	defer m.Disconnect()
	m.Connect()

	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state after tokenless Connect = %s, want disconnected", got)
	}
	select {
	case s := <-statuses:
		t.Fatalf("expected no connection_status events, got %q", s)
	default:
	}
}

func TestTokenSetAfterConnectIsPickedUpByPoll(t *testing.T) {
	bus := NewBus()
	statuses := make(chan string, 8)
	bus.On(TypeConnectionStatus, func(event interface{}) {
		statuses <- event.(ConnectionStatusEvent).Status
	})

	cfg := DefaultConfig("ws://127.0.0.1:1/ws")
	cfg.PollInterval = 20 * time.Millisecond
	cfg.BackoffBase = time.Minute // keep retries out of the way
	cfg.DialTimeout = 100 * time.Millisecond
	m := NewManager(cfg, bus)
	defer m.Disconnect()

	// First Connect has no token. It must not attempt a dial, but it must
	// arm the poll so a later SetToken gets picked up without another
	// explicit Connect.
	m.Connect()
	m.SetToken("tok")

	select {
	case s := <-statuses:
		if s != "connecting" {
			t.Fatalf("first connection_status = %q, want connecting", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll never attempted to connect after SetToken")
	}
}

func TestSendRemoteDropsWhenNotConnected(t *testing.T) {
	m := NewManager(DefaultConfig("ws://127.0.0.1:1/ws"), NewBus())

	if err := m.SendRemote("ping", map[string]string{}); err != nil {
		t.Fatalf("SendRemote while disconnected should be a silent drop, got %v", err)
	}
}

func TestDisconnectIsTerminalAndIdempotent(t *testing.T) {
	bus := NewBus()
	m := NewManager(DefaultConfig("ws://127.0.0.1:1/ws"), bus)

	m.Disconnect()
	m.Disconnect() // must not panic on double close

	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state after Disconnect = %s, want disconnected", got)
	}

	// A terminal manager refuses new connection attempts.
	m.SetToken("tok")
	m.Connect()
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state after Connect on closed manager = %s, want disconnected", got)
	}
}

func TestDefaultConfigFillsZeroFields(t *testing.T) {
	m := NewManager(Config{URL: "ws://x/ws"}, NewBus())

	if m.cfg.BackoffBase != time.Second {
		t.Errorf("BackoffBase = %s, want 1s", m.cfg.BackoffBase)
	}
	if m.cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", m.cfg.MaxRetries)
	}
	if m.cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %s, want 1s", m.cfg.PollInterval)
	}
}
