package runner

import "errors"

var (
	// Access errors.
	ErrPermissionDenied = errors.New("runner: location permission denied")

	// Platform errors.
	ErrNoPlatform         = errors.New("runner: no platform configured")
	ErrRegistrationFailed = errors.New("runner: background registration failed")
	ErrAlreadyRegistered  = errors.New("runner: background task already registered")
	ErrDeregisterFailed   = errors.New("runner: background deregistration failed")

	// Sensor errors.
	ErrNoSensor          = errors.New("runner: no location sensor configured")
	ErrSensorUnavailable = errors.New("runner: location sensor unavailable")

	// Input errors.
	ErrInvalidOptions = errors.New("runner: invalid task options")
	ErrNilTask        = errors.New("runner: task body is nil")

	// Store errors.
	ErrFlagNotFound = errors.New("runner: flag not found")
	ErrStoreClosed  = errors.New("runner: store closed")
)
