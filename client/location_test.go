package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yakin/dating-app/internal/geo"
	"github.com/yakin/dating-app/internal/protocol"
)

// fakePoster records persisted positions.
type fakePoster struct {
	mu   sync.Mutex
	locs []protocol.Coordinates
}

func (f *fakePoster) PostLocation(_ context.Context, loc protocol.Coordinates) error {
	f.mu.Lock()
	f.locs = append(f.locs, loc)
	f.mu.Unlock()
	return nil
}

func TestTickPushesValidSample(t *testing.T) {
	remote := &fakeRemote{state: StateConnected, userID: "1"}
	poster := &fakePoster{}
	sample := geo.Sample{Latitude: 41.0, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: time.Now()}

	le := NewLocationEngine(remote, poster, func() (geo.Sample, bool) { return sample, true })
	le.tick()

	if len(poster.locs) != 1 {
		t.Fatalf("persisted positions = %d, want 1", len(poster.locs))
	}
	updates := remote.sentOfType(protocol.TypeLocationUpdate)
	if len(updates) != 1 {
		t.Fatalf("location_update broadcasts = %d, want 1", len(updates))
	}
	evt := updates[0].Payload.(protocol.LocationUpdateEvent)
	if evt.Location.Latitude != 41.0 || evt.Location.Longitude != 29.0 {
		t.Errorf("broadcast location = %+v", evt.Location)
	}
	if le.Last() == nil {
		t.Error("Last() = nil after valid sample")
	}
}

func TestTickDiscardsInvalidSampleKeepingState(t *testing.T) {
	remote := &fakeRemote{state: StateConnected}
	var current geo.Sample
	le := NewLocationEngine(remote, nil, func() (geo.Sample, bool) { return current, true })

	t0 := time.Now()
	current = geo.Sample{Latitude: 41.0, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: t0}
	le.tick()
	current = geo.Sample{Latitude: 41.0003, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: t0.Add(time.Second)}
	le.tick()

	speed := le.SpeedKmh()
	if speed <= 0 {
		t.Fatalf("speed after two valid samples = %.2f, want > 0", speed)
	}

	// An invalid fix must not disturb the last known-good values.
	current = geo.Sample{Latitude: 200, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: t0.Add(2 * time.Second)}
	le.tick()

	if got := le.SpeedKmh(); got != speed {
		t.Errorf("speed after invalid sample = %.2f, want retained %.2f", got, speed)
	}
	if last := le.Last(); last == nil || last.Latitude != 41.0003 {
		t.Errorf("Last() after invalid sample = %+v, want previous fix", last)
	}

	// Only the two valid samples were broadcast.
	if got := remote.sentOfType(protocol.TypeLocationUpdate); len(got) != 2 {
		t.Errorf("broadcasts = %d, want 2", len(got))
	}
}

func TestTickSkipsWhenNoFix(t *testing.T) {
	remote := &fakeRemote{state: StateConnected}
	le := NewLocationEngine(remote, nil, func() (geo.Sample, bool) { return geo.Sample{}, false })

	le.tick()

	if got := remote.sentOfType(protocol.TypeLocationUpdate); len(got) != 0 {
		t.Fatalf("broadcasts without a fix = %d, want 0", len(got))
	}
}

func TestRequestNearby(t *testing.T) {
	remote := &fakeRemote{state: StateConnected}
	le := NewLocationEngine(remote, nil, func() (geo.Sample, bool) { return geo.Sample{}, false })

	le.RequestNearby(5000, 20)

	reqs := remote.sentOfType(protocol.TypeRequestNearby)
	if len(reqs) != 1 {
		t.Fatalf("nearby requests = %d, want 1", len(reqs))
	}
	evt := reqs[0].Payload.(protocol.RequestNearbyEvent)
	if evt.RadiusMeters != 5000 || evt.Limit != 20 {
		t.Errorf("nearby request = %+v", evt)
	}
}

func TestStartIsIdempotentAndStops(t *testing.T) {
	remote := &fakeRemote{state: StateConnected}
	le := NewLocationEngine(remote, nil, func() (geo.Sample, bool) { return geo.Sample{}, false })

	le.Start()
	le.Start() // second Start must not spawn a second loop
	le.Stop()
	le.Stop() // double Stop must not panic
}
