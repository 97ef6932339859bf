package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/runner"
)

// Option configures a platform variant.
type Option func(*base)

// WithLogger sets the variant's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) { b.logger = logger }
}

type base struct {
	reg    Registrar
	logger *slog.Logger
}

func newBase(r Registrar, opts []Option) base {
	b := base{reg: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Deregister(ctx context.Context) error {
	if err := b.reg.Deregister(ctx); err != nil {
		return fmt.Errorf("%w: %w", runner.ErrDeregisterFailed, err)
	}
	return nil
}

func (b *base) IsNativeRunning() bool { return b.reg.IsNativeRunning() }

// ──────────────────────────────────────────────────
// Android
// ──────────────────────────────────────────────────

// Android registers a foreground service. A new registration replaces a
// running one.
type Android struct {
	base
}

var _ Platform = (*Android)(nil)

// NewAndroid wraps r as an Android-like platform.
func NewAndroid(r Registrar, opts ...Option) *Android {
	return &Android{base: newBase(r, opts)}
}

// Register stops any running registration, then registers reg.
func (a *Android) Register(ctx context.Context, reg Registration) error {
	if a.reg.IsNativeRunning() {
		a.logger.Info("replacing running background service", slog.String("name", reg.Name))
		if err := a.reg.Deregister(ctx); err != nil {
			a.logger.Warn("failed to stop previous background service",
				slog.String("error", err.Error()),
			)
		}
	}
	return a.reg.Register(ctx, reg)
}

func (a *Android) Kind() Kind                 { return KindAndroid }
func (a *Android) RequiresAccess() bool       { return false }
func (a *Android) PollsLocation() bool        { return true }
func (a *Android) MonitorsInBackground() bool { return false }

// ──────────────────────────────────────────────────
// iOS
// ──────────────────────────────────────────────────

// IOS registers a background task. A second registration while one is
// running is refused.
type IOS struct {
	base
}

var _ Platform = (*IOS)(nil)

// NewIOS wraps r as an iOS-like platform.
func NewIOS(r Registrar, opts ...Option) *IOS {
	return &IOS{base: newBase(r, opts)}
}

// Register registers reg unless a registration is already running.
func (i *IOS) Register(ctx context.Context, reg Registration) error {
	if i.reg.IsNativeRunning() {
		return runner.ErrAlreadyRegistered
	}
	return i.reg.Register(ctx, reg)
}

func (i *IOS) Kind() Kind                 { return KindIOS }
func (i *IOS) RequiresAccess() bool       { return true }
func (i *IOS) PollsLocation() bool        { return false }
func (i *IOS) MonitorsInBackground() bool { return true }

// New returns the variant named by kind.
func New(kind Kind, r Registrar, opts ...Option) (Platform, error) {
	switch kind {
	case KindAndroid:
		return NewAndroid(r, opts...), nil
	case KindIOS:
		return NewIOS(r, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", runner.ErrNoPlatform, kind)
	}
}
