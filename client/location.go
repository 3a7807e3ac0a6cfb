package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yakin/dating-app/internal/geo"
	"github.com/yakin/dating-app/internal/protocol"
)

// DefaultSampleInterval is how often the engine pulls a GPS sample while
// tracking is enabled.
const DefaultSampleInterval = 500 * time.Millisecond

// SampleFunc produces the device's current GPS fix. The second return value
// is false when no fix is available (cold start, permissions revoked).
type SampleFunc func() (geo.Sample, bool)

// locationPoster is the REST surface the engine needs; *RESTClient satisfies
// it and tests substitute a fake.
type locationPoster interface {
	PostLocation(ctx context.Context, loc protocol.Coordinates) error
}

// LocationEngine ingests GPS samples on a fixed cadence, derives speed and
// per-segment distance through the kinematics tracker, and pushes valid
// positions outward twice over: persisted via REST and broadcast on the
// socket as location_update. Invalid samples are discarded without touching
// the last-known-good state.
type LocationEngine struct {
	remote   remote
	rest     locationPoster
	sample   SampleFunc
	interval time.Duration

	mu      sync.Mutex
	tracker geo.Tracker
	running bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewLocationEngine creates an engine reading fixes from sample. The REST
// poster may be nil, in which case positions go out on the socket only.
func NewLocationEngine(r remote, rest locationPoster, sample SampleFunc) *LocationEngine {
	return &LocationEngine{
		remote:   r,
		rest:     rest,
		sample:   sample,
		interval: DefaultSampleInterval,
		done:     make(chan struct{}),
	}
}

// Start begins the sampling loop in a background goroutine. Calling Start on
// a running engine is a no-op.
func (le *LocationEngine) Start() {
	le.mu.Lock()
	if le.running {
		le.mu.Unlock()
		return
	}
	le.running = true
	le.mu.Unlock()

	go le.loop()
}

// Stop terminates the sampling loop. The engine cannot be restarted.
func (le *LocationEngine) Stop() {
	le.stopOnce.Do(func() { close(le.done) })
}

// SpeedKmh returns the last known-good speed in km/h.
func (le *LocationEngine) SpeedKmh() float64 {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.tracker.SpeedKmh()
}

// SegmentMeters returns the corrected distance of the last valid segment.
func (le *LocationEngine) SegmentMeters() float64 {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.tracker.SegmentMeters()
}

// Last returns the last valid sample observed, or nil before the first fix.
func (le *LocationEngine) Last() *geo.Sample {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.tracker.Last()
}

// RequestNearby asks the server for users within radiusMeters of the local
// user's last stored position. The answer arrives as a nearby_users_list
// event on the bus.
func (le *LocationEngine) RequestNearby(radiusMeters float64, limit int) {
	_ = le.remote.SendRemote(protocol.TypeRequestNearby, protocol.RequestNearbyEvent{
		RadiusMeters: radiusMeters,
		Limit:        limit,
	})
}

// loop pulls one sample per interval until stopped.
func (le *LocationEngine) loop() {
	ticker := time.NewTicker(le.interval)
	defer ticker.Stop()

	for {
		select {
		case <-le.done:
			return
		case <-ticker.C:
			le.tick()
		}
	}
}

// tick processes a single sample: validate, feed the tracker, and push the
// position outward. A missing or invalid fix leaves all derived state as-is.
func (le *LocationEngine) tick() {
	s, ok := le.sample()
	if !ok {
		return
	}
	if !s.Valid() {
		log.Printf("client: discarding invalid gps sample")
		return
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}

	le.mu.Lock()
	le.tracker.Observe(s)
	le.mu.Unlock()

	loc := protocol.Coordinates{
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		AccuracyMeters: s.AccuracyMeters,
	}

	if le.rest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := le.rest.PostLocation(ctx, loc); err != nil {
			log.Printf("client: location persist failed: %v", err)
		}
		cancel()
	}

	_ = le.remote.SendRemote(protocol.TypeLocationUpdate, protocol.LocationUpdateEvent{
		Location:  loc,
		Timestamp: s.CapturedAt.UTC().Format(time.RFC3339),
	})
}
