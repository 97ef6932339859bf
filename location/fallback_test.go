package location_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/runner/location"
	"github.com/xraph/runner/sim"
)

func recv(t *testing.T, ch <-chan location.Sample) (location.Sample, bool) {
	t.Helper()
	select {
	case s, ok := <-ch:
		return s, ok
	case <-time.After(50 * time.Millisecond):
		return location.Sample{}, false
	}
}

func TestFallback_PrefersPrimaryReading(t *testing.T) {
	gps := sim.NewSensor(sim.WithProvider("gps"))
	net := sim.NewSensor(sim.WithProvider("network"))
	f := location.NewFallback(gps, net)

	net.Set(1, 1)
	s, err := f.CurrentSample(context.Background())
	if err != nil {
		t.Fatalf("CurrentSample: %v", err)
	}
	if s.Provider != "network" {
		t.Errorf("Provider = %q, want network while gps has no fix", s.Provider)
	}

	gps.Set(2, 2)
	s, _ = f.CurrentSample(context.Background())
	if s.Provider != "gps" {
		t.Errorf("Provider = %q, want gps", s.Provider)
	}
}

func TestFallback_NoFixAnywhere(t *testing.T) {
	f := location.NewFallback(sim.NewSensor(), sim.NewSensor())
	if _, err := f.CurrentSample(context.Background()); !errors.Is(err, sim.ErrSensorOff) {
		t.Errorf("CurrentSample error = %v, want ErrSensorOff", err)
	}
}

func TestFallback_MergesPushedReadings(t *testing.T) {
	gps := sim.NewSensor(sim.WithPush(4), sim.WithProvider("gps"))
	net := sim.NewSensor(sim.WithPush(4), sim.WithProvider("network"))
	f := location.NewFallback(gps, net)
	ctx := context.Background()

	if err := f.StartSampling(ctx); err != nil {
		t.Fatalf("StartSampling: %v", err)
	}
	out := f.Samples()
	if out == nil {
		t.Fatal("Samples should be non-nil for push sources")
	}

	net.Emit(1, 1)
	if s, ok := recv(t, out); !ok || s.Provider != "network" {
		t.Fatalf("first reading = %+v, ok=%v", s, ok)
	}

	gps.Emit(2, 2)
	if s, ok := recv(t, out); !ok || s.Provider != "gps" {
		t.Fatalf("gps reading = %+v, ok=%v", s, ok)
	}

	// A fresh network reading does not displace gps.
	net.Emit(3, 3)
	if s, ok := recv(t, out); ok {
		t.Errorf("network reading should be suppressed, got %+v", s)
	}

	if err := f.StopSampling(ctx); err != nil {
		t.Fatalf("StopSampling: %v", err)
	}
	if gps.Sampling() || net.Sampling() {
		t.Error("both sources should be stopped")
	}
}

func TestFallback_StaleReadingIsReplaced(t *testing.T) {
	gps := sim.NewSensor(sim.WithPush(4), sim.WithProvider("gps"))
	net := sim.NewSensor(sim.WithPush(4), sim.WithProvider("network"))
	f := location.NewFallback(gps, net, location.WithStaleAfter(time.Millisecond))
	ctx := context.Background()
	_ = f.StartSampling(ctx)
	defer f.StopSampling(ctx) //nolint:errcheck // test cleanup

	gps.Emit(1, 1)
	if _, ok := recv(t, f.Samples()); !ok {
		t.Fatal("gps reading not delivered")
	}

	time.Sleep(5 * time.Millisecond)
	net.Emit(2, 2)
	if s, ok := recv(t, f.Samples()); !ok || s.Provider != "network" {
		t.Errorf("stale gps should yield to network, got %+v ok=%v", s, ok)
	}
}

func TestFallback_StartFailsOnlyWhenBothFail(t *testing.T) {
	gps := sim.NewSensor()
	net := sim.NewSensor()
	gps.FailStart(errors.New("no gps"))

	f := location.NewFallback(gps, net)
	if err := f.StartSampling(context.Background()); err != nil {
		t.Fatalf("StartSampling with one source up: %v", err)
	}
	_ = f.StopSampling(context.Background())

	net.FailStart(errors.New("no network"))
	if err := f.StartSampling(context.Background()); err == nil {
		t.Error("expected error when both sources fail")
	}
}

func TestFallback_PolledSourcesHaveNoChannel(t *testing.T) {
	f := location.NewFallback(sim.NewSensor(), sim.NewSensor())
	_ = f.StartSampling(context.Background())
	if f.Samples() != nil {
		t.Error("Samples should be nil when both sources are polled")
	}
}
