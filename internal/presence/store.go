// Package presence manages per-user presence state in Redis: online status,
// last-seen timestamps, and the geospatial index behind nearby-user queries.
// Entries are written by the realtime servers and the presenced worker; they
// carry a TTL so a crashed server cannot leave users online forever.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for all presence hashes.
	KeyPrefix = "presence:"

	// GeoKey is the Redis GEO set holding every user's last known position.
	GeoKey = "geo:users"

	// EntryTTL is the time-to-live for presence hashes. Refreshed on every
	// status or location write.
	EntryTTL = 1 * time.Hour

	// Status values for the presence state machine.
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Entry represents one user's presence state stored in Redis.
type Entry struct {
	UserID      string  `redis:"user_id"`
	Status      string  `redis:"status"`
	Server      string  `redis:"server"`       // which realtime server instance
	LastSeen    int64   `redis:"last_seen"`    // unix timestamp
	Latitude    float64 `redis:"latitude"`
	Longitude   float64 `redis:"longitude"`
	HasLocation bool    `redis:"has_location"`
}

// NearbyEntry is one result of a geospatial nearby query.
type NearbyEntry struct {
	UserID         string
	Latitude       float64
	Longitude      float64
	DistanceMeters float64
}

// Store manages presence state in Redis.
type Store struct {
	client     *redis.Client
	serverName string // identifier for this server instance
}

// NewStore creates a new presence store connected to Redis.
func NewStore(redisAddr string, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// NewStoreWithClient wraps an existing Redis client (used by presenced, which
// shares a client across stores).
func NewStoreWithClient(client *redis.Client, serverName string) *Store {
	return &Store{client: client, serverName: serverName}
}

// SetOnline marks a user online and refreshes the TTL.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.SetStatus(ctx, userID, StatusOnline)
}

// SetStatus writes a user's presence status. "offline" removes the entry
// outright rather than writing a tombstone.
func (s *Store) SetStatus(ctx context.Context, userID, status string) error {
	if status == StatusOffline {
		return s.SetOffline(ctx, userID)
	}

	key := KeyPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"user_id", userID,
		"status", status,
		"server", s.serverName,
		"last_seen", time.Now().Unix(),
	)
	pipe.Expire(ctx, key, EntryTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline removes a user from the presence hash and the GEO index.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, KeyPrefix+userID)
	pipe.ZRem(ctx, GeoKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateLocation writes a user's position into the presence hash and the GEO
// index, refreshing the TTL and last-seen timestamp.
func (s *Store) UpdateLocation(ctx context.Context, userID string, lat, lon float64) error {
	key := KeyPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"user_id", userID,
		"latitude", lat,
		"longitude", lon,
		"has_location", true,
		"last_seen", time.Now().Unix(),
	)
	pipe.Expire(ctx, key, EntryTTL)
	pipe.GeoAdd(ctx, GeoKey, &redis.GeoLocation{
		Name:      userID,
		Latitude:  lat,
		Longitude: lon,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a user's presence entry. Returns nil if not present.
func (s *Store) Get(ctx context.Context, userID string) (*Entry, error) {
	var entry Entry
	err := s.client.HGetAll(ctx, KeyPrefix+userID).Scan(&entry)
	if err != nil {
		return nil, err
	}
	if entry.UserID == "" {
		return nil, nil // not found
	}
	return &entry, nil
}

// Nearby returns up to limit users within radiusMeters of the given position,
// sorted nearest first. The requesting user appears in the result if their
// own position is indexed; callers filter it out.
func (s *Store) Nearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]NearbyEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	locs, err := s.client.GeoSearchLocation(ctx, GeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: geo search: %w", err)
	}

	out := make([]NearbyEntry, 0, len(locs))
	for _, loc := range locs {
		out = append(out, NearbyEntry{
			UserID:         loc.Name,
			Latitude:       loc.Latitude,
			Longitude:      loc.Longitude,
			DistanceMeters: loc.Dist,
		})
	}
	return out, nil
}

// Sweep removes GEO index entries for users whose presence hash has expired
// (the GEO set has no per-member TTL). It returns the number of evicted
// members. The presenced worker calls this periodically.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	members, err := s.client.ZRange(ctx, GeoKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("presence: sweep range: %w", err)
	}

	evicted := 0
	for _, userID := range members {
		exists, err := s.client.Exists(ctx, KeyPrefix+userID).Result()
		if err != nil {
			return evicted, fmt.Errorf("presence: sweep exists %s: %w", userID, err)
		}
		if exists == 0 {
			if err := s.client.ZRem(ctx, GeoKey, userID).Err(); err != nil {
				return evicted, fmt.Errorf("presence: sweep evict %s: %w", userID, err)
			}
			evicted++
		}
	}
	return evicted, nil
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
