package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionRunStarted            = "run.started"
	ActionRunStopped            = "run.stopped"
	ActionRunRegistrationFailed = "run.registration_failed"
	ActionPermissionDenied      = "permission.denied"
	ActionWatchStarted          = "location.watch_started"
	ActionWatchStopped          = "location.watch_stopped"
)

// Audit event categories group related actions.
const (
	CategoryRun        = "runner.run"
	CategoryPermission = "runner.permission"
	CategoryLocation   = "runner.location"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceRun        = "run"
	ResourcePermission = "location_permission"
	ResourceWatch      = "location_watch"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionRunStarted,
		ActionRunStopped,
		ActionRunRegistrationFailed,
		ActionPermissionDenied,
		ActionWatchStarted,
		ActionWatchStopped,
	}
}
