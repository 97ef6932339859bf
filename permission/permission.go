// Package permission normalises the host's location permission answers
// and drives the fine-then-background request chain.
package permission

import (
	"context"
	"fmt"

	"github.com/xraph/runner"
)

// Status is the host's answer for one permission tier.
type Status int

const (
	// Undetermined means the host has not settled an answer yet, for
	// example while a system dialog is still on screen.
	Undetermined Status = iota
	// Granted means the tier is held.
	Granted
	// Denied means the tier is refused or restricted.
	Denied
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Undetermined:
		return "undetermined"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Backend is the host's permission API. Fine is foreground location
// access; background is "allow all the time".
type Backend interface {
	QueryFine(ctx context.Context) (Status, error)
	QueryBackground(ctx context.Context) (Status, error)
	RequestFine(ctx context.Context) (Status, error)
	RequestBackground(ctx context.Context) (Status, error)
}

// Prompter shows the user a hint pointing at the system settings.
type Prompter interface {
	ShowSettingsPrompt(ctx context.Context, message string) error
}

// Emitter receives denial notifications. The extension registry
// implements it.
type Emitter interface {
	EmitPermissionDenied(ctx context.Context, res Result)
}

// Result is the settled pair of tier answers.
type Result struct {
	FineGranted       bool   `json:"fine_granted"`
	BackgroundGranted bool   `json:"background_granted"`
	Message           string `json:"message,omitempty"`
}

// Granted reports whether both tiers are held.
func (r Result) Granted() bool {
	return r.FineGranted && r.BackgroundGranted
}

// DeniedError reports which tiers were refused.
// errors.Is(err, runner.ErrPermissionDenied) holds for it.
type DeniedError struct {
	Result Result
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%v (fine=%t, background=%t)",
		runner.ErrPermissionDenied, e.Result.FineGranted, e.Result.BackgroundGranted)
}

// Unwrap returns runner.ErrPermissionDenied.
func (e *DeniedError) Unwrap() error { return runner.ErrPermissionDenied }
