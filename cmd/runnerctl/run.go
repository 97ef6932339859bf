package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xraph/runner"
	audit_hook "github.com/xraph/runner/audit_hook"
	"github.com/xraph/runner/bridge"
	"github.com/xraph/runner/cadence"
	"github.com/xraph/runner/engine"
	"github.com/xraph/runner/event"
	"github.com/xraph/runner/location"
	"github.com/xraph/runner/platform"
	"github.com/xraph/runner/sim"
	"github.com/xraph/runner/task"
)

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// lockedWriter serializes writes from tick goroutines and bus handlers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// printPrompter writes settings prompts to the command output.
type printPrompter struct{ w io.Writer }

func (p printPrompter) ShowSettingsPrompt(_ context.Context, message string) error {
	_, err := fmt.Fprintf(p.w, "prompt: %s\n", message)
	return err
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a periodic task or a location watch and run it until interrupted",
		RunE:  runE,
	}

	f := cmd.Flags()
	f.String("platform", string(platform.KindAndroid), "Host platform: android or ios")
	f.String("title", "Task", "Task title")
	f.String("desc", "", "Task description")
	f.Duration("delay", runner.DefaultConfig().DefaultDelay, "Tick period")
	f.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	f.String("cron", "", "Cron expression or descriptor (\"@every 10s\") scheduling ticks instead of --delay")
	f.Bool("watch", false, "Watch location instead of running a plain periodic task")
	f.Bool("deny", false, "Deny every location permission request")
	f.Float64("lat", 52.52, "Starting latitude")
	f.Float64("lon", 13.405, "Starting longitude")
	f.Float64("drift", 0.0005, "Degrees the simulated position moves per drift step (0 disables)")
	f.Bool("no-gps", false, "Android only: leave the gps source without a fix so readings fall back to network")
	f.Duration("background-after", 0, "Send the host to background after this long, and back after the same again")
	f.Bool("audit", false, "Log lifecycle audit records")
	f.String("publish", "", "Redis address to publish bus events to")
	f.String("codec", bridge.CodecNameJSON, "Frame codec for --publish: json or msgpack")
	return cmd
}

func runE(cmd *cobra.Command, _ []string) error {
	logger := newLogger(cmd)
	out := &lockedWriter{w: cmd.OutOrStdout()}
	f := cmd.Flags()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d, _ := f.GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	kind, _ := f.GetString("platform")
	driver := sim.NewDriver(logger)
	p, err := platform.New(platform.Kind(kind), driver)
	if err != nil {
		return err
	}

	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	noGPS, _ := f.GetBool("no-gps")
	sensor, drifter := newSensor(p.Kind(), lat, lon, noGPS)

	perms := sim.GrantAll()
	if deny, _ := f.GetBool("deny"); deny {
		perms = sim.NewPermissions()
	}

	flags, client, err := openStore(ctx, cmd, logger)
	if err != nil {
		return err
	}
	defer flags.Close()
	if client != nil {
		defer client.Close()
	}
	if err := flags.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate flag store: %w", err)
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSensor(sensor),
		engine.WithPermissions(perms),
		engine.WithPrompter(printPrompter{w: out}),
		engine.WithFlagStore(flags),
		engine.WithForegroundHook(func(context.Context) {
			fmt.Fprintln(out, "back in foreground without location access")
		}),
	}
	if audit, _ := f.GetBool("audit"); audit {
		rec := audit_hook.RecorderFunc(func(_ context.Context, e *audit_hook.AuditEvent) error {
			logger.Info("audit",
				slog.String("action", e.Action),
				slog.String("resource", e.Resource),
				slog.String("outcome", e.Outcome),
			)
			return nil
		})
		opts = append(opts, engine.WithExtension(audit_hook.New(rec, audit_hook.WithLogger(logger))))
	}

	c, err := engine.New(p, opts...)
	if err != nil {
		return err
	}

	var fwd *bridge.Forwarder
	if addr, _ := f.GetString("publish"); addr != "" {
		codec, _ := f.GetString("codec")
		rdb := goredis.NewClient(&goredis.Options{Addr: addr})
		defer rdb.Close()
		fwd = bridge.NewForwarder(c.Bus(), bridge.NewRedisSink(rdb),
			bridge.WithCodec(bridge.GetCodec(codec)),
			bridge.WithLogger(logger),
		)
		fwd.Start()
		defer fwd.Close()
	}

	c.Subscribe(event.LocationUpdate, func(_ context.Context, e *event.Event) {
		if l, ok := e.Payload.(event.LocationPayload); ok {
			fmt.Fprintf(out, "location %.6f,%.6f %s\n", l.Latitude, l.Longitude, l.Provider)
		}
	})
	c.Subscribe(event.RunStopped, func(_ context.Context, e *event.Event) {
		if r, ok := e.Payload.(event.RunPayload); ok {
			fmt.Fprintf(out, "stopped %s\n", r.Name)
		}
	})

	title, _ := f.GetString("title")
	desc, _ := f.GetString("desc")
	delay, _ := f.GetDuration("delay")
	topts := task.Options{Title: title, Description: desc, Delay: delay}

	if watch, _ := f.GetBool("watch"); watch {
		if err := c.WatchLocation(ctx, topts); err != nil {
			_ = c.Shutdown(context.WithoutCancel(ctx))
			return err
		}
		if step, _ := f.GetFloat64("drift"); step != 0 {
			interval := delay
			if interval <= 0 {
				interval = c.Config().DefaultDelay
			}
			go drifter.Drift(ctx, interval, step)
		}
	} else {
		onTick := func(_ context.Context, progress int64) (bool, error) {
			fmt.Fprintf(out, "tick %d\n", progress)
			return false, nil
		}
		if expr, _ := f.GetString("cron"); expr != "" {
			sched, perr := cadence.ParseCron(expr)
			if perr != nil {
				_ = c.Shutdown(context.WithoutCancel(ctx))
				return perr
			}
			err = c.StartScheduled(ctx, onTick, sched, topts)
		} else {
			err = c.StartPeriodic(ctx, onTick, topts)
		}
		if err != nil {
			_ = c.Shutdown(context.WithoutCancel(ctx))
			return err
		}
	}

	if d, _ := f.GetDuration("background-after"); d > 0 {
		go cycleBackground(ctx, c, d, logger)
	}

	<-ctx.Done()

	if err := c.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if fwd != nil {
		st := fwd.Stats()
		fmt.Fprintf(out, "published %d frames (%d failed)\n", st.Forwarded, st.Failed)
	}
	return nil
}

// newSensor builds the simulated location source. Android polls a gps
// source backed by a network one; iOS gets a single push source. drifter
// is the source whose position moves during a watch.
func newSensor(kind platform.Kind, lat, lon float64, noGPS bool) (sensor location.Sensor, drifter *sim.Sensor) {
	if kind == platform.KindIOS {
		s := sim.NewSensor(sim.WithProvider("sim"), sim.WithPush(16))
		s.Set(lat, lon)
		return s, s
	}

	gps := sim.NewSensor(sim.WithProvider("gps"))
	network := sim.NewSensor(sim.WithProvider("network"))
	network.Set(lat, lon)
	drifter = network
	if !noGPS {
		gps.Set(lat, lon)
		drifter = gps
	}
	return location.NewFallback(gps, network), drifter
}

// cycleBackground sends the host to background after d and brings it
// back after another d.
func cycleBackground(ctx context.Context, c *engine.Coordinator, d time.Duration, logger *slog.Logger) {
	steps := []func(context.Context) error{c.EnterBackground, c.EnterForeground}
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		if err := step(ctx); err != nil {
			logger.Warn("host transition failed", slog.String("error", err.Error()))
		}
	}
}
