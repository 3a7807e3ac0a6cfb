package geo

import (
	"math"
	"testing"
	"time"
)

func TestHaversineSymmetry(t *testing.T) {
	cases := []struct {
		lat1, lon1, lat2, lon2 float64
	}{
		{41.0082, 28.9784, 39.9334, 32.8597}, // Istanbul -> Ankara
		{41.000, 29.000, 41.0003, 29.0000},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{0, 0, 0, 0},
	}

	for _, c := range cases {
		ab := Haversine(c.lat1, c.lon1, c.lat2, c.lon2)
		ba := Haversine(c.lat2, c.lon2, c.lat1, c.lon1)
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("haversine not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Istanbul to Ankara is roughly 350 km great-circle.
	d := Haversine(41.0082, 28.9784, 39.9334, 32.8597)
	if d < 340000 || d > 360000 {
		t.Errorf("Istanbul-Ankara distance = %.0f m, expected ~350 km", d)
	}
}

func TestAttenuateShortRange(t *testing.T) {
	// 10 m raw must come out attenuated to at most 2 m.
	got := Attenuate(10)
	if got > 2.0 {
		t.Errorf("Attenuate(10) = %f, want <= 2", got)
	}
	if got < MinDistanceMeters {
		t.Errorf("Attenuate(10) = %f, below floor %f", got, MinDistanceMeters)
	}
}

func TestAttenuateFloor(t *testing.T) {
	// 2 m raw would scale to 0.4 m; the floor lifts it back to 1 m.
	if got := Attenuate(2); got != MinDistanceMeters {
		t.Errorf("Attenuate(2) = %f, want floor %f", got, MinDistanceMeters)
	}
}

func TestAttenuatePassThrough(t *testing.T) {
	for _, raw := range []float64{50, 100, 5000} {
		if got := Attenuate(raw); got != raw {
			t.Errorf("Attenuate(%f) = %f, want unchanged", raw, got)
		}
	}
}

func TestAttenuateNaN(t *testing.T) {
	if got := Attenuate(math.NaN()); got != 0 {
		t.Errorf("Attenuate(NaN) = %f, want 0", got)
	}
}

func TestSampleValid(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		want   bool
	}{
		{"ok", Sample{Latitude: 41, Longitude: 29, AccuracyMeters: 5}, true},
		{"nan lat", Sample{Latitude: math.NaN(), Longitude: 29}, false},
		{"inf lon", Sample{Latitude: 41, Longitude: math.Inf(1)}, false},
		{"nan accuracy", Sample{Latitude: 41, Longitude: 29, AccuracyMeters: math.NaN()}, false},
		{"lat out of range", Sample{Latitude: 91, Longitude: 29}, false},
		{"lon out of range", Sample{Latitude: 41, Longitude: -181}, false},
		{"negative accuracy", Sample{Latitude: 41, Longitude: 29, AccuracyMeters: -1}, false},
	}

	for _, tt := range tests {
		if got := tt.sample.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTrackerSpeedWithinWindow(t *testing.T) {
	t0 := time.Now()
	var tr Tracker

	tr.Observe(Sample{Latitude: 41.000, Longitude: 29.000, AccuracyMeters: 5, CapturedAt: t0})
	speed, dist := tr.Observe(Sample{Latitude: 41.0003, Longitude: 29.0000, AccuracyMeters: 5, CapturedAt: t0.Add(1 * time.Second)})

	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		t.Fatalf("speed is not finite: %f", speed)
	}
	if speed < 0 || speed > MaxSpeedKmh {
		t.Errorf("speed %f outside [0, %f]", speed, MaxSpeedKmh)
	}
	if dist < 0 {
		t.Errorf("distance %f is negative", dist)
	}
	// ~33 m in 1 s is ~120 km/h raw; the attenuation reduces it, but it must
	// still register movement.
	if speed == 0 {
		t.Error("expected non-zero speed for a 33 m hop")
	}
}

func TestTrackerRetainsSpeedOutsideWindow(t *testing.T) {
	t0 := time.Now()
	var tr Tracker

	tr.Observe(Sample{Latitude: 41.000, Longitude: 29.000, AccuracyMeters: 5, CapturedAt: t0})
	held, _ := tr.Observe(Sample{Latitude: 41.0003, Longitude: 29.0000, AccuracyMeters: 5, CapturedAt: t0.Add(1 * time.Second)})
	if held == 0 {
		t.Fatal("setup: expected non-zero speed from the in-window pair")
	}

	// 15 s gap is outside (0.2s, 10s]; the held speed must survive.
	speed, _ := tr.Observe(Sample{Latitude: 41.01, Longitude: 29.01, AccuracyMeters: 5, CapturedAt: t0.Add(16 * time.Second)})
	if speed != held {
		t.Errorf("speed recomputed across a 15 s gap: got %f, want retained %f", speed, held)
	}

	// A 50 ms gap is also outside the window.
	speed, _ = tr.Observe(Sample{Latitude: 41.02, Longitude: 29.02, AccuracyMeters: 5, CapturedAt: t0.Add(16*time.Second + 50*time.Millisecond)})
	if speed != held {
		t.Errorf("speed recomputed across a 50 ms gap: got %f, want retained %f", speed, held)
	}
}

func TestTrackerClampsSpeed(t *testing.T) {
	t0 := time.Now()
	var tr Tracker

	tr.Observe(Sample{Latitude: 41.0, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: t0})
	// A full degree of latitude (~111 km) in one second.
	speed, _ := tr.Observe(Sample{Latitude: 42.0, Longitude: 29.0, AccuracyMeters: 5, CapturedAt: t0.Add(1 * time.Second)})

	if speed != MaxSpeedKmh {
		t.Errorf("speed = %f, want clamped to %f", speed, MaxSpeedKmh)
	}
}

func TestTrackerDiscardsInvalidSamples(t *testing.T) {
	t0 := time.Now()
	var tr Tracker

	tr.Observe(Sample{Latitude: 41.000, Longitude: 29.000, AccuracyMeters: 5, CapturedAt: t0})
	goodSpeed, goodDist := tr.Observe(Sample{Latitude: 41.0003, Longitude: 29.0000, AccuracyMeters: 5, CapturedAt: t0.Add(1 * time.Second)})

	speed, dist := tr.Observe(Sample{Latitude: math.NaN(), Longitude: 29, AccuracyMeters: 5, CapturedAt: t0.Add(2 * time.Second)})
	if speed != goodSpeed || dist != goodDist {
		t.Errorf("invalid sample changed state: got (%f, %f), want (%f, %f)", speed, dist, goodSpeed, goodDist)
	}

	// The invalid sample must not have replaced the last known-good position.
	last := tr.Last()
	if last == nil || last.Latitude != 41.0003 {
		t.Errorf("last known-good sample was clobbered: %+v", last)
	}
}

func TestTrackerFirstSample(t *testing.T) {
	var tr Tracker
	speed, dist := tr.Observe(Sample{Latitude: 41, Longitude: 29, AccuracyMeters: 5, CapturedAt: time.Now()})
	if speed != 0 || dist != 0 {
		t.Errorf("first sample produced (%f, %f), want zeros", speed, dist)
	}
}
