package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xraph/runner/location"
)

// ErrSensorOff is returned by CurrentSample when no reading has been set.
var ErrSensorOff = errors.New("sim: sensor has no fix")

// Sensor is a scriptable location source. In push mode Emit delivers
// readings on the Samples channel while sampling; in poll mode Samples
// is nil and readings are only visible through CurrentSample.
type Sensor struct {
	mu       sync.Mutex
	sampling bool
	current  *location.Sample
	startErr error
	stopErr  error
	push     chan location.Sample
	closed   bool
	provider string

	starts int
	stops  int
}

var _ location.Sensor = (*Sensor)(nil)

// SensorOption configures a Sensor.
type SensorOption func(*Sensor)

// WithPush switches the sensor to push mode with the given buffer.
func WithPush(buffer int) SensorOption {
	return func(s *Sensor) { s.push = make(chan location.Sample, buffer) }
}

// WithProvider sets the provider name stamped on readings.
func WithProvider(name string) SensorOption {
	return func(s *Sensor) { s.provider = name }
}

// NewSensor creates a sensor without a fix.
func NewSensor(opts ...SensorOption) *Sensor {
	s := &Sensor{provider: "sim"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailStart makes StartSampling return err.
func (s *Sensor) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

// FailStop makes StopSampling return err.
func (s *Sensor) FailStop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopErr = err
}

// Set replaces the current reading without pushing it.
func (s *Sensor) Set(lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.stamp(lat, lon)
	s.current = &v
}

// Clear removes the current fix.
func (s *Sensor) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Emit sets the current reading and, in push mode while sampling,
// delivers it on the Samples channel. A reading that does not fit in the
// buffer is dropped, as a real provider would drop it. It reports
// whether it was pushed.
func (s *Sensor) Emit(lat, lon float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.stamp(lat, lon)
	s.current = &v
	if s.push == nil || !s.sampling || s.closed {
		return false
	}
	select {
	case s.push <- v:
		return true
	default:
		return false
	}
}

// Close ends push delivery, as a sensor that lost its provider would.
func (s *Sensor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.push != nil && !s.closed {
		s.closed = true
		close(s.push)
	}
}

// Drift moves the current reading by step degrees every interval until
// ctx ends, emitting each new position.
func (s *Sensor) Drift(ctx context.Context, interval time.Duration, step float64) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			var lat, lon float64
			if s.current != nil {
				lat, lon = s.current.Latitude, s.current.Longitude
			}
			s.mu.Unlock()
			s.Emit(lat+step, lon+step)
		}
	}
}

// StartSampling implements location.Sensor.
func (s *Sensor) StartSampling(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.sampling = true
	return nil
}

// StopSampling implements location.Sensor.
func (s *Sensor) StopSampling(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.sampling = false
	return s.stopErr
}

// CurrentSample implements location.Sensor.
func (s *Sensor) CurrentSample(_ context.Context) (location.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return location.Sample{}, ErrSensorOff
	}
	return *s.current, nil
}

// Samples implements location.Sensor.
func (s *Sensor) Samples() <-chan location.Sample {
	if s.push == nil {
		return nil
	}
	return s.push
}

// Sampling reports whether StartSampling is in effect.
func (s *Sensor) Sampling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampling
}

// Counts returns how many times sampling was started and stopped.
func (s *Sensor) Counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

func (s *Sensor) stamp(lat, lon float64) location.Sample {
	return location.Sample{Latitude: lat, Longitude: lon, Provider: s.provider, Time: time.Now()}
}
