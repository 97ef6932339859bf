// Package ext defines the extension system for the coordinator.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics or writing audit logs. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnRunStopped(ctx context.Context, run task.RunDescriptor) error {
//	    log.Printf("run %s stopped", run.Name)
//	    return nil
//	}
//
// # Hooks
//
//   - [RunStarted]: a run was registered with the host
//   - [RunStopped]: a run was torn down
//   - [RegistrationFailed]: the host refused a registration
//   - [PermissionDenied]: a permission request ended with a tier refused
//   - [WatchStateChanged]: location watching went Idle or Monitoring
//   - [Shutdown]: the coordinator is shutting down
//
// Hook errors are logged at warn level and never stop the caller.
package ext
