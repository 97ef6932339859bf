package task

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/runner"
	"github.com/xraph/runner/id"
	"github.com/xraph/runner/permission"
)

// State is the lifecycle state of the task slot.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options describe a task to start. Delay is handed to the body as-is;
// periodic bodies use it as their tick period.
type Options struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Delay       time.Duration `json:"delay"`
}

// Validate rejects a negative delay.
func (o Options) Validate() error {
	if o.Delay < 0 {
		return fmt.Errorf("%w: negative delay %v", runner.ErrInvalidOptions, o.Delay)
	}
	return nil
}

// RunDescriptor identifies one started run.
type RunDescriptor struct {
	ID          id.RunID      `json:"id"`
	Sequence    int           `json:"sequence"`
	Name        string        `json:"name"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Delay       time.Duration `json:"delay"`
}

// RunState is a snapshot of the task slot.
type RunState struct {
	State    State          `json:"state"`
	Sequence int            `json:"sequence"`
	Run      *RunDescriptor `json:"run,omitempty"`
}

// Body is the user's task. It receives a context cancelled when the run
// is stopped, and the run handle.
type Body func(ctx context.Context, run *Run) error

// AccessGate is the permission check consulted before starting on
// platforms that require location access. *permission.Gate implements it.
type AccessGate interface {
	Check(ctx context.Context) (permission.Result, error)
	Request(ctx context.Context) (permission.Result, error)
}

// Emitter receives run lifecycle notifications. The extension registry
// implements it.
type Emitter interface {
	EmitRunStarted(ctx context.Context, run RunDescriptor)
	EmitRunStopped(ctx context.Context, run RunDescriptor)
	EmitRegistrationFailed(ctx context.Context, run RunDescriptor, err error)
}
