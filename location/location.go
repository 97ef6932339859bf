// Package location tracks whether the host is monitoring location and
// forwards deduplicated samples onto the event bus.
package location

import (
	"context"
	"time"
)

// State is the location watch state.
type State int

const (
	// Idle means no sampling is active.
	Idle State = iota
	// Monitoring means the sensor is delivering samples.
	Monitoring
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Monitoring:
		return "monitoring"
	default:
		return "unknown"
	}
}

// Sample is one location reading. Only the coordinates take part in
// deduplication.
type Sample struct {
	Latitude  float64
	Longitude float64
	// Provider names the source that produced the reading, e.g. "gps".
	Provider string
	// Time is when the reading was taken. Zero if the sensor does not
	// report it.
	Time time.Time
}

// SameCoordinates reports whether s and o are at exactly the same point.
func (s Sample) SameCoordinates(o Sample) bool {
	return s.Latitude == o.Latitude && s.Longitude == o.Longitude
}

// Sensor is the host's location source.
type Sensor interface {
	// StartSampling begins delivering samples.
	StartSampling(ctx context.Context) error
	// StopSampling stops delivering samples.
	StopSampling(ctx context.Context) error
	// CurrentSample returns a single fresh reading.
	CurrentSample(ctx context.Context) (Sample, error)
	// Samples returns the push channel of a sensor that delivers readings
	// on its own, or nil for a sensor that must be polled. The channel is
	// closed when the sensor gives up.
	Samples() <-chan Sample
}

// AccessChecker reports whether location access is currently held.
type AccessChecker interface {
	Granted(ctx context.Context) bool
}

// Emitter receives watch state transitions. The extension registry
// implements it.
type Emitter interface {
	EmitWatchStateChanged(ctx context.Context, from, to State)
}
