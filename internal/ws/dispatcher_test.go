package ws

import (
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"

	"github.com/yakin/dating-app/internal/protocol"
)

// testConnPair builds a Connection over an in-memory pipe and also returns
// the peer end so tests can read the frames the dispatcher writes back.
func testConnPair(t *testing.T, id, userID string) (*Connection, net.Conn) {
	t.Helper()
	local, peer := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		peer.Close()
	})
	conn := &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      local,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}
	return conn, peer
}

// readReply reads one frame from the peer end and decodes it as a server
// event. The read runs in a goroutine because pipe writes block until the
// other side reads.
func readReply(t *testing.T, peer net.Conn) (string, interface{}) {
	t.Helper()
	type frame struct {
		typ string
		evt interface{}
		err error
	}
	ch := make(chan frame, 1)
	go func() {
		data, _, err := wsutil.ReadServerData(peer)
		if err != nil {
			ch <- frame{err: err}
			return
		}
		typ, evt, err := protocol.ParseServerEvent(data)
		ch <- frame{typ: typ, evt: evt, err: err}
	}()
	select {
	case f := <-ch:
		if f.err != nil {
			t.Fatalf("failed to read reply frame: %v", f.err)
		}
		return f.typ, f.evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply frame")
		return "", nil
	}
}

func TestDispatchRoutesRegisteredHandler(t *testing.T) {
	d := NewEventDispatcher()
	conn, _ := testConnPair(t, "sess-1", "user-1")

	var got interface{}
	d.Register(protocol.TypeSendMessage, func(c *Connection, event interface{}) {
		if c != conn {
			t.Error("handler received wrong connection")
		}
		got = event
	})

	d.Dispatch(conn, []byte(`{"type":"send_message","room":"general","message":"selam"}`))

	msg, ok := got.(protocol.SendMessageEvent)
	if !ok {
		t.Fatalf("handler received %T, want SendMessageEvent", got)
	}
	if msg.Room != "general" || msg.Message != "selam" {
		t.Errorf("event = %+v, want room general message selam", msg)
	}
}

func TestDispatchPingRepliesPong(t *testing.T) {
	d := NewEventDispatcher()
	conn, peer := testConnPair(t, "sess-1", "user-1")
	conn.LastPing = time.Now().Add(-time.Minute)
	before := conn.LastPing

	go d.Dispatch(conn, []byte(`{"type":"ping"}`))

	typ, _ := readReply(t, peer)
	if typ != protocol.TypePong {
		t.Errorf("reply type = %q, want %q", typ, protocol.TypePong)
	}
	if !conn.LastPing.After(before) {
		t.Error("ping should refresh LastPing")
	}
}

func TestDispatchUnregisteredTypeSendsError(t *testing.T) {
	d := NewEventDispatcher()
	conn, peer := testConnPair(t, "sess-1", "user-1")

	go d.Dispatch(conn, []byte(`{"type":"join_room","room":"general"}`))

	typ, evt := readReply(t, peer)
	if typ != protocol.TypeError {
		t.Fatalf("reply type = %q, want %q", typ, protocol.TypeError)
	}
	if errEvt := evt.(protocol.ErrorEvent); errEvt.Code != "unsupported_type" {
		t.Errorf("error code = %q, want unsupported_type", errEvt.Code)
	}
}
