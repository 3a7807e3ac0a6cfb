package room

import (
	"fmt"
	"testing"

	"github.com/yakin/dating-app/internal/protocol"
)

func rec(id, body string) protocol.MessageRecord {
	return protocol.MessageRecord{ID: id, SenderID: "u1", Body: body}
}

func TestBufferAddAndRecent(t *testing.T) {
	mb := NewMessageBuffer()

	mb.Add("general", rec("1", "selam"))
	mb.Add("general", rec("2", "naber"))
	mb.Add("general", rec("3", "iyidir"))

	msgs := mb.Recent("general")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"selam", "naber", "iyidir"} {
		if msgs[i].Body != want {
			t.Errorf("index %d: body = %q, want %q", i, msgs[i].Body, want)
		}
	}
}

func TestBufferWraparound(t *testing.T) {
	mb := NewMessageBuffer()

	total := MaxBufferMessages + 7
	for i := 1; i <= total; i++ {
		mb.Add("general", rec(fmt.Sprintf("%d", i), fmt.Sprintf("msg-%d", i)))
	}

	msgs := mb.Recent("general")
	if len(msgs) != MaxBufferMessages {
		t.Fatalf("expected %d messages, got %d", MaxBufferMessages, len(msgs))
	}

	// Should contain the last MaxBufferMessages messages in order.
	first := total - MaxBufferMessages + 1
	for i, msg := range msgs {
		expected := fmt.Sprintf("msg-%d", first+i)
		if msg.Body != expected {
			t.Errorf("index %d: got %q, want %q", i, msg.Body, expected)
		}
	}
}

func TestBufferUnknownRoom(t *testing.T) {
	mb := NewMessageBuffer()

	msgs := mb.Recent("does-not-exist")
	if msgs == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(msgs) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(msgs))
	}
}

func TestBufferDrop(t *testing.T) {
	mb := NewMessageBuffer()
	mb.Add("general", rec("1", "selam"))

	mb.Drop("general")
	if len(mb.Recent("general")) != 0 {
		t.Fatal("expected empty buffer after drop")
	}

	// Dropping an unknown room must not panic.
	mb.Drop("does-not-exist")
}

func TestBufferMultipleRooms(t *testing.T) {
	mb := NewMessageBuffer()

	mb.Add("general", rec("1", "g1"))
	mb.Add("private_1_2", rec("2", "p1"))
	mb.Add("general", rec("3", "g2"))

	if got := mb.Recent("general"); len(got) != 2 {
		t.Errorf("general: %d messages, want 2", len(got))
	}
	if got := mb.Recent("private_1_2"); len(got) != 1 {
		t.Errorf("private: %d messages, want 1", len(got))
	}
}
