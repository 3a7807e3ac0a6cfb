package ws

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

// testConn builds a Connection over an in-memory pipe. The returned peer end
// is closed by t.Cleanup.
func testConn(t *testing.T, id, userID string, fd int) *Connection {
	t.Helper()
	local, peer := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		peer.Close()
	})
	return &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      local,
		Fd:        fd,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}
}

func TestConnectionManagerAddAndLookups(t *testing.T) {
	cm := NewConnectionManager()
	conn := testConn(t, "sess-1", "user-1", 10)
	cm.Add(conn)

	if got := cm.Get("sess-1"); got != conn {
		t.Error("Get by session ID returned wrong connection")
	}
	if got := cm.GetByFd(10); got != conn {
		t.Error("GetByFd returned wrong connection")
	}
	if got := cm.GetByUser("user-1"); got != conn {
		t.Error("GetByUser returned wrong connection")
	}
	if cm.Count() != 1 {
		t.Errorf("expected count=1, got %d", cm.Count())
	}
}

func TestConnectionManagerRemove(t *testing.T) {
	cm := NewConnectionManager()
	cm.Add(testConn(t, "sess-1", "user-1", 10))

	if !cm.Remove("sess-1") {
		t.Fatal("expected Remove to find the connection")
	}
	if cm.Remove("sess-1") {
		t.Error("second Remove should report not found")
	}
	if cm.Get("sess-1") != nil || cm.GetByFd(10) != nil || cm.GetByUser("user-1") != nil {
		t.Error("expected all indexes cleared after Remove")
	}
}

func TestConnectionManagerReconnectKeepsNewerUserIndex(t *testing.T) {
	cm := NewConnectionManager()
	old := testConn(t, "sess-old", "user-1", 10)
	cm.Add(old)

	// Same user reconnects from a new device before the old connection's
	// read failure cleans it up.
	fresh := testConn(t, "sess-new", "user-1", 11)
	cm.Add(fresh)

	if got := cm.GetByUser("user-1"); got != fresh {
		t.Fatal("user index should point at the newer connection")
	}

	// Removing the stale connection must not evict the newer one from the
	// user index.
	cm.Remove("sess-old")
	if got := cm.GetByUser("user-1"); got != fresh {
		t.Error("removing the stale connection evicted the newer one")
	}
	if cm.Count() != 1 {
		t.Errorf("expected count=1, got %d", cm.Count())
	}
}

func TestConnectionManagerConcurrent(t *testing.T) {
	cm := NewConnectionManager()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			cm.Add(testConn(t, id, fmt.Sprintf("user-%d", i), 100+i))
			cm.Get(id)
			cm.Count()
			cm.All()
			if i%2 == 0 {
				cm.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	if cm.Count() != 25 {
		t.Errorf("expected 25 connections left, got %d", cm.Count())
	}
}
