package location

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultStaleAfter is how old the last accepted reading must be before
// a reading from the backup source replaces one from the preferred source.
const DefaultStaleAfter = 5 * time.Minute

// Fallback combines a preferred sensor (typically GPS) with a backup one
// (typically network). Readings from the preferred sensor always win.
// A backup reading is accepted when nothing has been accepted yet, when
// the last accepted reading came from the same provider, or when the
// last accepted reading is stale.
type Fallback struct {
	primary    Sensor
	secondary  Sensor
	staleAfter time.Duration

	mu      sync.Mutex
	running bool
	out     chan Sample
	cancel  context.CancelFunc
	last    *Sample
}

var _ Sensor = (*Fallback)(nil)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) FallbackOption {
	return func(f *Fallback) { f.staleAfter = d }
}

// NewFallback creates a sensor that prefers primary over secondary.
func NewFallback(primary, secondary Sensor, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary:    primary,
		secondary:  secondary,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StartSampling starts both sources. It fails only if neither starts.
func (f *Fallback) StartSampling(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	errP := f.primary.StartSampling(ctx)
	errS := f.secondary.StartSampling(ctx)
	if errP != nil && errS != nil {
		return errors.Join(errP, errS)
	}

	mergeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.running = true
	f.last = nil

	var sources []<-chan Sample
	var preferred []bool
	if errP == nil {
		if ch := f.primary.Samples(); ch != nil {
			sources = append(sources, ch)
			preferred = append(preferred, true)
		}
	}
	if errS == nil {
		if ch := f.secondary.Samples(); ch != nil {
			sources = append(sources, ch)
			preferred = append(preferred, false)
		}
	}
	if len(sources) == 0 {
		f.out = nil
		return nil
	}

	out := make(chan Sample, 16)
	f.out = out
	var wg sync.WaitGroup
	for i, ch := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.forward(mergeCtx, ch, preferred[i], out)
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return nil
}

// StopSampling stops both sources.
func (f *Fallback) StopSampling(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	cancel := f.cancel
	f.mu.Unlock()

	cancel()
	return errors.Join(f.primary.StopSampling(ctx), f.secondary.StopSampling(ctx))
}

// CurrentSample asks the preferred source first and falls back to the
// backup one.
func (f *Fallback) CurrentSample(ctx context.Context) (Sample, error) {
	s, err := f.primary.CurrentSample(ctx)
	if err == nil {
		return s, nil
	}
	s, errS := f.secondary.CurrentSample(ctx)
	if errS != nil {
		return Sample{}, errors.Join(err, errS)
	}
	return s, nil
}

// Samples returns the merged channel, or nil when both sources are polled.
func (f *Fallback) Samples() <-chan Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out
}

func (f *Fallback) forward(ctx context.Context, in <-chan Sample, preferred bool, out chan<- Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			if !f.accept(s, preferred) {
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *Fallback) accept(s Sample, preferred bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	ok := f.last == nil ||
		preferred ||
		f.last.Provider == s.Provider ||
		(!s.Time.IsZero() && s.Time.Sub(f.last.Time) > f.staleAfter)
	if ok {
		f.last = &s
	}
	return ok
}
