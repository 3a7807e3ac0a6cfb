package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yakin/dating-app/internal/protocol"
	"github.com/yakin/dating-app/internal/room"
)

// Origin tags where a message candidate came from. It exists purely for
// de-duplication and is never shown to the user.
type Origin int

const (
	OriginLocal   Origin = iota // optimistic insert on send
	OriginRemote                // socket echo / broadcast
	OriginHistory               // REST history fetch
)

// String returns the origin tag used in locally constructed message IDs.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginHistory:
		return "history"
	default:
		return "unknown"
	}
}

// DedupWindow is the timestamp tolerance for classifying two messages from
// the same sender as one logical message. It absorbs clock skew between the
// optimistic insert and the socket echo.
const DedupWindow = 2 * time.Second

// Message is one logical chat entry in the visible history.
type Message struct {
	ID          string
	SenderID    string
	Body        string
	Room        string
	RecipientID string
	SentAt      time.Time
	Origin      Origin
}

// localID constructs a locally unique message ID for optimistic and echoed
// variants that have no server-assigned ID yet.
func localID(origin Origin, senderID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", origin, senderID, at.UnixMilli())
}

// MessageLog holds the per-room ordered message lists and enforces the
// exactly-once guarantee: a logical message sent optimistically, persisted
// via REST, and echoed over the socket still appears once.
type MessageLog struct {
	mu     sync.Mutex
	byRoom map[string][]Message
	byID   map[string]struct{}
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{
		byRoom: make(map[string][]Message),
		byID:   make(map[string]struct{}),
	}
}

// Append adds the candidate to its room's list unless it duplicates an
// existing entry. Returns true if the message was appended. A candidate is a
// duplicate of an existing entry when any of these hold:
//
//  1. identical ID,
//  2. same sender and same body with timestamps inside the tolerance window
//     (or either timestamp missing),
//  3. same sender with timestamps inside the tolerance window.
//
// On a match the existing entry is kept and the candidate discarded. The
// test is intentionally permissive: a false-positive dedup is invisible, a
// false negative is a visible double-send.
func (l *MessageLog) Append(msg Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(msg)
}

func (l *MessageLog) appendLocked(msg Message) bool {
	if _, seen := l.byID[msg.ID]; seen && msg.ID != "" {
		return false
	}

	for _, existing := range l.byRoom[msg.Room] {
		if existing.SenderID != msg.SenderID {
			continue
		}
		withinWindow := false
		if existing.SentAt.IsZero() || msg.SentAt.IsZero() {
			withinWindow = existing.Body == msg.Body
		} else {
			dt := msg.SentAt.Sub(existing.SentAt)
			if dt < 0 {
				dt = -dt
			}
			withinWindow = dt <= DedupWindow
		}
		if withinWindow {
			return false
		}
	}

	// Insert in timestamp position so a history merge arriving after an
	// optimistic append still yields a chronological list. Candidates with
	// no timestamp go to the end.
	list := l.byRoom[msg.Room]
	idx := len(list)
	if !msg.SentAt.IsZero() {
		for idx > 0 && !list[idx-1].SentAt.IsZero() && list[idx-1].SentAt.After(msg.SentAt) {
			idx--
		}
	}
	list = append(list, Message{})
	copy(list[idx+1:], list[idx:])
	list[idx] = msg
	l.byRoom[msg.Room] = list

	if msg.ID != "" {
		l.byID[msg.ID] = struct{}{}
	}
	return true
}

// Remove deletes a message by ID from the given room. It is the rollback
// path for optimistic entries whose REST persist failed.
func (l *MessageLog) Remove(roomName, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.byRoom[roomName]
	for i, m := range list {
		if m.ID == id {
			l.byRoom[roomName] = append(list[:i:i], list[i+1:]...)
			delete(l.byID, id)
			return true
		}
	}
	return false
}

// MergeHistory folds a history fetch into the log. The API returns records
// newest first; they are reversed before merging so the room list stays in
// chronological order. Returns the number of records actually appended.
func (l *MessageLog) MergeHistory(roomName string, records []protocol.MessageRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		ts, _ := time.Parse(time.RFC3339, rec.Timestamp)
		msg := Message{
			ID:          rec.ID,
			SenderID:    rec.SenderID,
			Body:        rec.Body,
			Room:        roomName,
			RecipientID: rec.RecipientID,
			SentAt:      ts,
			Origin:      OriginHistory,
		}
		if l.appendLocked(msg) {
			added++
		}
	}
	return added
}

// Messages returns a snapshot of the room's visible history in chronological
// order.
func (l *MessageLog) Messages(roomName string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.byRoom[roomName]))
	copy(out, l.byRoom[roomName])
	return out
}

// chatAPI is the REST surface Chat needs; *RESTClient satisfies it and
// tests substitute a fake.
type chatAPI interface {
	SendMessage(ctx context.Context, roomName, body string) (protocol.MessageRecord, error)
	SendPrivate(ctx context.Context, friendID, roomName, body string) (protocol.MessageRecord, error)
	History(ctx context.Context, roomName string, limit int) ([]protocol.MessageRecord, error)
}

// Chat coordinates the three-path send flow: stage an optimistic entry,
// persist via REST, then broadcast on the socket. It also folds inbound
// socket messages and history fetches into the log through the same dedup
// gate.
type Chat struct {
	remote remote
	rest   chatAPI
	log    *MessageLog
	now    func() time.Time // injectable clock for tests
}

// NewChat creates a Chat bound to the given transport and REST client, and
// subscribes its inbound handlers on the bus.
func NewChat(r remote, rest chatAPI, bus *Bus) *Chat {
	c := &Chat{
		remote: r,
		rest:   rest,
		log:    NewMessageLog(),
		now:    time.Now,
	}

	bus.On(protocol.TypeMessageReceived, c.handleMessageReceived)
	bus.On(protocol.TypePrivateMessageReceived, c.handlePrivateReceived)
	bus.On(protocol.TypeRoomHistory, c.handleRoomHistory)

	return c
}

// Log returns the underlying message log for UI rendering.
func (c *Chat) Log() *MessageLog { return c.log }

// Send delivers a room message. The optimistic entry is staged immediately;
// if the REST persist fails the entry is rolled back and the error returned
// so the UI can offer retry-or-dismiss. On success the message is also
// broadcast on the socket for realtime delivery.
func (c *Chat) Send(ctx context.Context, roomName, body string) error {
	now := c.now()
	msg := Message{
		ID:       localID(OriginLocal, c.remote.UserID(), now),
		SenderID: c.remote.UserID(),
		Body:     body,
		Room:     roomName,
		SentAt:   now,
		Origin:   OriginLocal,
	}
	c.log.Append(msg)

	if _, err := c.rest.SendMessage(ctx, roomName, body); err != nil {
		c.log.Remove(roomName, msg.ID)
		return fmt.Errorf("client: send to %q: %w", roomName, err)
	}

	_ = c.remote.SendRemote(protocol.TypeSendMessage, protocol.SendMessageEvent{
		Room:      roomName,
		Message:   body,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return nil
}

// SendPrivate delivers a 1:1 message through the deterministic pairwise
// room. The flow mirrors Send.
func (c *Chat) SendPrivate(ctx context.Context, friendID, body string) error {
	selfID := c.remote.UserID()
	roomName := room.PairRoom(selfID, friendID)

	now := c.now()
	msg := Message{
		ID:          localID(OriginLocal, selfID, now),
		SenderID:    selfID,
		Body:        body,
		Room:        roomName,
		RecipientID: friendID,
		SentAt:      now,
		Origin:      OriginLocal,
	}
	c.log.Append(msg)

	if _, err := c.rest.SendPrivate(ctx, friendID, roomName, body); err != nil {
		c.log.Remove(roomName, msg.ID)
		return fmt.Errorf("client: private send to %q: %w", friendID, err)
	}

	_ = c.remote.SendRemote(protocol.TypeSendPrivateMessage, protocol.SendPrivateMessageEvent{
		FriendID:  friendID,
		Room:      roomName,
		Message:   body,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return nil
}

// LoadHistory fetches and merges the most recent messages of a room.
func (c *Chat) LoadHistory(ctx context.Context, roomName string, limit int) (int, error) {
	records, err := c.rest.History(ctx, roomName, limit)
	if err != nil {
		return 0, fmt.Errorf("client: history for %q: %w", roomName, err)
	}
	return c.log.MergeHistory(roomName, records), nil
}

func (c *Chat) handleMessageReceived(event interface{}) {
	e, ok := event.(protocol.MessageReceivedEvent)
	if !ok {
		return
	}
	ts, _ := time.Parse(time.RFC3339, e.Timestamp)
	id := e.ID
	if id == "" {
		id = localID(OriginRemote, e.SenderID, ts)
	}
	c.log.Append(Message{
		ID:       id,
		SenderID: e.SenderID,
		Body:     e.Message,
		Room:     e.Room,
		SentAt:   ts,
		Origin:   OriginRemote,
	})
}

func (c *Chat) handlePrivateReceived(event interface{}) {
	e, ok := event.(protocol.PrivateMessageReceivedEvent)
	if !ok {
		return
	}
	ts, _ := time.Parse(time.RFC3339, e.Timestamp)
	id := e.ID
	if id == "" {
		id = localID(OriginRemote, e.SenderID, ts)
	}
	c.log.Append(Message{
		ID:          id,
		SenderID:    e.SenderID,
		Body:        e.Message,
		Room:        e.Room,
		RecipientID: e.RecipientID,
		SentAt:      ts,
		Origin:      OriginRemote,
	})
}

func (c *Chat) handleRoomHistory(event interface{}) {
	e, ok := event.(protocol.RoomHistoryEvent)
	if !ok {
		return
	}
	// room_history replays oldest first; reverse into the newest-first shape
	// MergeHistory expects.
	reversed := make([]protocol.MessageRecord, len(e.Messages))
	for i, rec := range e.Messages {
		reversed[len(e.Messages)-1-i] = rec
	}
	c.log.MergeHistory(e.Room, reversed)
}
