package permission

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

const (
	grantedMessage = "Location permission granted."
	defaultPrompt  = "Allow all the time Location Permission."
)

// Gate answers "is location access held?" and walks the user through
// the request chain when it is not. It is safe for concurrent use.
type Gate struct {
	backend  Backend
	prompter Prompter
	limiter  *rate.Limiter
	message  string
	emitter  Emitter
	logger   *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithPrompter sets who shows the settings prompt on denial. Without one
// the denial is only logged.
func WithPrompter(p Prompter) Option {
	return func(g *Gate) { g.prompter = p }
}

// WithPromptLimit throttles the settings prompt to r per second with the
// given burst. Prompts over the limit are skipped, not queued.
func WithPromptLimit(r rate.Limit, burst int) Option {
	return func(g *Gate) { g.limiter = rate.NewLimiter(r, burst) }
}

// WithMessage overrides the settings prompt text.
func WithMessage(msg string) Option {
	return func(g *Gate) { g.message = msg }
}

// WithEmitter sets the receiver of denial notifications.
func WithEmitter(e Emitter) Option {
	return func(g *Gate) { g.emitter = e }
}

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// NewGate creates a Gate over backend.
func NewGate(backend Backend, opts ...Option) *Gate {
	g := &Gate{
		backend: backend,
		limiter: rate.NewLimiter(rate.Inf, 1),
		message: defaultPrompt,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check queries both tiers without asking the user for anything.
func (g *Gate) Check(ctx context.Context) (Result, error) {
	fine, err := settle(ctx, g.backend.QueryFine)
	if err != nil {
		return Result{}, fmt.Errorf("query fine location: %w", err)
	}
	bg, err := settle(ctx, g.backend.QueryBackground)
	if err != nil {
		return Result{}, fmt.Errorf("query background location: %w", err)
	}
	return Result{FineGranted: fine == Granted, BackgroundGranted: bg == Granted}, nil
}

// Granted reports whether fine location access is held. Query failures
// count as not granted.
func (g *Gate) Granted(ctx context.Context) bool {
	fine, err := settle(ctx, g.backend.QueryFine)
	if err != nil {
		g.logger.Warn("location permission query failed", slog.String("error", err.Error()))
		return false
	}
	return fine == Granted
}

// Request returns at once when both tiers are held. Otherwise it requests
// fine access, then background access if fine access was obtained. When
// either tier ends up refused the settings prompt is shown. The returned
// Result always reflects the tiers actually held.
func (g *Gate) Request(ctx context.Context) (Result, error) {
	cur, err := g.Check(ctx)
	if err != nil {
		return Result{}, err
	}
	if cur.Granted() {
		cur.Message = grantedMessage
		return cur, nil
	}

	res := cur
	if !res.FineGranted {
		st, err := settle(ctx, g.backend.RequestFine)
		if err != nil {
			return res, fmt.Errorf("request fine location: %w", err)
		}
		res.FineGranted = st == Granted
	}
	if res.FineGranted && !res.BackgroundGranted {
		st, err := settle(ctx, g.backend.RequestBackground)
		if err != nil {
			return res, fmt.Errorf("request background location: %w", err)
		}
		res.BackgroundGranted = st == Granted
	}

	if res.Granted() {
		res.Message = grantedMessage
		return res, nil
	}

	res.Message = g.message
	g.denied(ctx, res)
	return res, nil
}

func (g *Gate) denied(ctx context.Context, res Result) {
	g.logger.Warn("location permission denied",
		slog.Bool("fine", res.FineGranted),
		slog.Bool("background", res.BackgroundGranted),
	)

	if g.emitter != nil {
		g.emitter.EmitPermissionDenied(ctx, res)
	}

	if g.prompter == nil {
		return
	}
	if !g.limiter.Allow() {
		g.logger.Debug("settings prompt suppressed by rate limit")
		return
	}
	if err := g.prompter.ShowSettingsPrompt(ctx, g.message); err != nil {
		g.logger.Warn("settings prompt failed", slog.String("error", err.Error()))
	}
}

// settle calls fn and, when the answer is Undetermined, asks exactly once
// more before accepting the answer.
func settle(ctx context.Context, fn func(context.Context) (Status, error)) (Status, error) {
	st, err := fn(ctx)
	if err != nil || st != Undetermined {
		return st, err
	}
	return fn(ctx)
}
