// Package audithook is an extension that bridges coordinator lifecycle
// events to an immutable audit trail backend.
//
// Every run, permission and location watch hook emits a structured audit
// event through the [Recorder] interface. The extension assigns severity
// levels (info for normal operations, warning for denials, critical for
// refused registrations) and metadata such as the run name and the
// permission tiers.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    logger.InfoContext(ctx, evt.Action, "resource", evt.Resource, "id", evt.ResourceID)
//	    return nil
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionRunRegistrationFailed,
//	        audithook.ActionPermissionDenied,
//	    ),
//	)
package audithook
