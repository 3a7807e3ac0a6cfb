// Package geo provides the distance and speed math behind the live map:
// haversine great-circle distance, short-range GPS noise attenuation, and
// speed derivation from a stream of location samples. All functions are pure
// and operate on WGS84 decimal degrees.
package geo

import (
	"math"
	"time"
)

// EarthRadiusMeters is the spherical Earth radius used by the haversine
// formula. Good enough for the short ranges a proximity map cares about.
const EarthRadiusMeters = 6371000.0

// GPS jitter makes very short raw haversine distances unreliable: two phones
// lying on the same table can report tens of meters apart. Raw distances under
// NoiseThresholdMeters are therefore scaled by NoiseAttenuation, with
// MinDistanceMeters as a floor. This is a tuning heuristic, not physics; the
// constants are exported so they can be validated independently.
const (
	NoiseThresholdMeters = 50.0
	NoiseAttenuation     = 0.2
	MinDistanceMeters    = 1.0
)

// Speed derivation limits. Sample pairs closer together than MinSpeedInterval
// or further apart than MaxSpeedInterval produce unusable instantaneous
// speeds (division by near-zero, or stale positions), so the previous speed
// is retained for them. Results are clamped to MaxSpeedKmh.
const (
	MinSpeedInterval = 200 * time.Millisecond
	MaxSpeedInterval = 10 * time.Second
	MaxSpeedKmh      = 200.0
)

// Sample is a single GPS reading.
type Sample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	CapturedAt     time.Time
}

// Valid reports whether the sample's coordinates and accuracy are finite
// numbers within coordinate bounds. Samples failing this check must be
// discarded without touching the last known-good sample.
func (s Sample) Valid() bool {
	if !isFinite(s.Latitude) || !isFinite(s.Longitude) || !isFinite(s.AccuracyMeters) {
		return false
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return false
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return false
	}
	return s.AccuracyMeters >= 0
}

// Haversine returns the great-circle distance in meters between two points
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Attenuate applies the short-range noise correction to a raw distance:
// distances under NoiseThresholdMeters are scaled by NoiseAttenuation and
// floored at MinDistanceMeters. Distances at or above the threshold pass
// through unchanged.
func Attenuate(rawMeters float64) float64 {
	if !isFinite(rawMeters) || rawMeters < 0 {
		return 0
	}
	if rawMeters >= NoiseThresholdMeters {
		return rawMeters
	}
	d := rawMeters * NoiseAttenuation
	if d < MinDistanceMeters {
		d = MinDistanceMeters
	}
	return d
}

// CorrectedDistance is Haversine followed by Attenuate, the distance the UI
// should display between two users.
func CorrectedDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return Attenuate(Haversine(lat1, lon1, lat2, lon2))
}

// Tracker derives instantaneous speed and segment distance from consecutive
// location samples. It retains the last known-good values whenever the input
// is unreliable (invalid sample, out-of-window interval, or a NaN anywhere in
// the pipeline), so a NaN can never reach the UI. Tracker is not
// goroutine-safe; the location sampler owns it exclusively.
type Tracker struct {
	last           *Sample
	speedKmh       float64
	segmentMeters  float64
	hasObservation bool
}

// Observe feeds one sample into the tracker and returns the current speed in
// km/h and the last segment distance in meters. Invalid samples are discarded
// and the previous values are returned unchanged.
func (t *Tracker) Observe(s Sample) (speedKmh, segmentMeters float64) {
	if !s.Valid() {
		return t.speedKmh, t.segmentMeters
	}

	if t.last == nil {
		prev := s
		t.last = &prev
		t.hasObservation = true
		return t.speedKmh, t.segmentMeters
	}

	dt := s.CapturedAt.Sub(t.last.CapturedAt)
	raw := Haversine(t.last.Latitude, t.last.Longitude, s.Latitude, s.Longitude)
	corrected := Attenuate(raw)

	if isFinite(corrected) {
		t.segmentMeters = corrected
	}

	// Speed is only recomputed for intervals in (MinSpeedInterval,
	// MaxSpeedInterval]; anything else keeps the previous value.
	if dt > MinSpeedInterval && dt <= MaxSpeedInterval {
		kmh := (corrected / dt.Seconds()) * 3.6
		if isFinite(kmh) {
			if kmh < 0 {
				kmh = 0
			}
			if kmh > MaxSpeedKmh {
				kmh = MaxSpeedKmh
			}
			t.speedKmh = kmh
		}
	}

	prev := s
	t.last = &prev
	return t.speedKmh, t.segmentMeters
}

// SpeedKmh returns the last computed speed.
func (t *Tracker) SpeedKmh() float64 { return t.speedKmh }

// SegmentMeters returns the corrected distance of the last valid segment.
func (t *Tracker) SegmentMeters() float64 { return t.segmentMeters }

// Last returns the most recent valid sample, or nil if none has been observed.
func (t *Tracker) Last() *Sample {
	if t.last == nil {
		return nil
	}
	s := *t.last
	return &s
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
