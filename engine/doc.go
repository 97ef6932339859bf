// Package engine wires the coordinator subsystems together and provides
// the application-level API for running background tasks and tracking
// location.
//
// The engine package sits above task, tick, location, permission and ext
// so that none of them has to import another. It owns the event bus, the
// extension registry, the tick loop and the single task slot.
//
// # Building a Coordinator
//
//	drv := sim.NewDriver(logger)
//	c, err := engine.New(platform.NewAndroid(drv),
//	    engine.WithSensor(sensor),
//	    engine.WithPermissions(backend),
//	    engine.WithPrompter(prompter),
//	    engine.WithFlagStore(flags),
//	    engine.WithExtension(audithook.New(recorder)),
//	)
//
// # Running work
//
//	// A one-shot body that runs until it returns or Stop is called.
//	c.Start(ctx, body, task.Options{Title: "Sync"})
//
//	// A body that ticks every Delay until Stop.
//	c.StartPeriodic(ctx, onTick, task.Options{Title: "Upload", Delay: 5 * time.Second})
//
//	// Poll or receive location and publish deduplicated updates.
//	c.WatchLocation(ctx, task.Options{Title: "Tracking"})
//	c.Subscribe(event.LocationUpdate, handler)
//
// # Options
//
//   - [WithSensor]: location source
//   - [WithPermissions] / [WithPrompter]: location permission backend and settings prompt
//   - [WithFlagStore]: persistence for the background flag
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware around every tick
//   - [WithTracerProvider] / [WithMeterProvider]: OpenTelemetry providers
//   - [WithForegroundHook]: called when the host returns to foreground without access
package engine
