// Package messaging provides a NATS client wrapper for pub/sub fan-out
// between realtime server instances. Room broadcasts, presence transitions,
// and live location updates travel over NATS so clients connected to
// different servers see the same events; nearby-user queries use NATS
// request/reply against the presenced worker.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across the realtime services.
const (
	SubjectRoom          = "room"            // + .<room_name>, chat fan-out
	SubjectPresence      = "presence.status" // user online/away/offline transitions
	SubjectLocation      = "location.update" // live GPS samples
	SubjectNearbyRequest = "nearby.request"  // request/reply served by presenced
)

// StatusEvent is published on SubjectPresence for every presence transition.
type StatusEvent struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // online | away | offline
	Ts     int64  `json:"ts"`
}

// LocationEvent is published on SubjectLocation for every accepted GPS sample.
type LocationEvent struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Ts        int64   `json:"ts"`
}

// NearbyRequest is the request payload for SubjectNearbyRequest.
type NearbyRequest struct {
	UserID       string  `json:"user_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
	Limit        int     `json:"limit"`
}

// NearbyResponse is the reply payload for SubjectNearbyRequest.
type NearbyResponse struct {
	Users []NearbyResult `json:"users"`
}

// NearbyResult is one user in a NearbyResponse.
type NearbyResult struct {
	UserID         string  `json:"user_id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	DistanceMeters float64 `json:"distance_meters"`
}

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "yakin-realtime",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishRoom publishes an encoded server event to the room.<name> subject.
// Every server instance with local members of the room delivers it, including
// back to the sender's own connection (clients de-duplicate the echo).
func (c *NATSClient) PublishRoom(roomName string, data []byte) error {
	return c.Publish(SubjectRoom+"."+roomName, data)
}

// SubscribeRoom subscribes this server instance to a room's fan-out subject.
// One subscription per room per instance; the caller tracks first-join and
// last-leave to avoid double subscriptions.
func (c *NATSClient) SubscribeRoom(roomName string, handler func(data []byte)) error {
	subject := SubjectRoom + "." + roomName
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeRoom drops this instance's subscription to a room.
func (c *NATSClient) UnsubscribeRoom(roomName string) error {
	return c.unsubscribe(SubjectRoom + "." + roomName)
}

// PublishPresence publishes a presence status transition.
func (c *NATSClient) PublishPresence(data []byte) error {
	return c.Publish(SubjectPresence, data)
}

// SubscribePresence subscribes to presence status transitions.
func (c *NATSClient) SubscribePresence(handler func(data []byte)) error {
	return c.Subscribe(SubjectPresence, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishLocation publishes an accepted GPS sample for the presenced worker
// and other server instances.
func (c *NATSClient) PublishLocation(data []byte) error {
	return c.Publish(SubjectLocation, data)
}

// SubscribeLocation subscribes to the live location stream.
func (c *NATSClient) SubscribeLocation(handler func(data []byte)) error {
	return c.Subscribe(SubjectLocation, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// RequestNearby performs a request/reply nearby-user query against the
// presenced worker and returns the raw reply bytes.
func (c *NATSClient) RequestNearby(data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.conn.Request(SubjectNearbyRequest, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", SubjectNearbyRequest, err)
	}
	return msg.Data, nil
}

// SubscribeNearbyRequests registers the presenced worker as the responder for
// nearby queries. The handler must call msg.Respond.
func (c *NATSClient) SubscribeNearbyRequests(handler func(msg *nats.Msg)) error {
	return c.Subscribe(SubjectNearbyRequest, handler)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
