package room

import (
	"sync"

	"github.com/yakin/dating-app/internal/protocol"
)

// MaxBufferMessages is the number of recent messages retained per room for
// replay to joining clients. Older history lives in Postgres and is served
// over REST.
const MaxBufferMessages = 50

// MessageBuffer stores the last N messages per room in memory.
// It is goroutine-safe and uses a ring buffer internally.
type MessageBuffer struct {
	mu      sync.RWMutex
	buffers map[string]*ringBuffer // room -> ring buffer
}

// ringBuffer is a fixed-size circular buffer of message records.
type ringBuffer struct {
	items []protocol.MessageRecord
	pos   int
	count int
}

// NewMessageBuffer creates a new empty MessageBuffer.
func NewMessageBuffer() *MessageBuffer {
	return &MessageBuffer{
		buffers: make(map[string]*ringBuffer),
	}
}

// Add appends a message to the room's ring buffer. If the buffer is full,
// the oldest message is overwritten.
func (mb *MessageBuffer) Add(roomName string, rec protocol.MessageRecord) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	rb, ok := mb.buffers[roomName]
	if !ok {
		rb = &ringBuffer{
			items: make([]protocol.MessageRecord, MaxBufferMessages),
		}
		mb.buffers[roomName] = rb
	}

	rb.items[rb.pos] = rec
	rb.pos = (rb.pos + 1) % MaxBufferMessages
	if rb.count < MaxBufferMessages {
		rb.count++
	}
}

// Recent returns the buffered messages for a room in chronological order
// (oldest first). Returns an empty slice if the room has no buffer.
func (mb *MessageBuffer) Recent(roomName string) []protocol.MessageRecord {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	rb, ok := mb.buffers[roomName]
	if !ok {
		return []protocol.MessageRecord{}
	}

	result := make([]protocol.MessageRecord, rb.count)
	// The oldest message is at position (pos - count) mod MaxBufferMessages.
	start := (rb.pos - rb.count + MaxBufferMessages) % MaxBufferMessages
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(start+i)%MaxBufferMessages]
	}
	return result
}

// Drop deletes the buffer for a room (called when the room empties out).
func (mb *MessageBuffer) Drop(roomName string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	delete(mb.buffers, roomName)
}
