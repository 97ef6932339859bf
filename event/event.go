package event

import (
	"time"

	"github.com/xraph/runner/id"
)

// Name identifies a kind of event on the bus.
type Name string

// Event names published by the coordinator.
const (
	// LifecycleExpired fires when the host reports that the OS is about
	// to reclaim background execution time.
	LifecycleExpired Name = "lifecycle-expired"
	// LocationUpdate carries a deduplicated location sample.
	LocationUpdate Name = "location-update"
	// LocationStateChange fires on every Idle/Monitoring transition.
	LocationStateChange Name = "location-state-change"
	// RunStarted fires once a background run is registered.
	RunStarted Name = "run-started"
	// RunStopped fires once a background run is torn down.
	RunStopped Name = "run-stopped"
)

// Event is one published notification. Payload is one of the payload
// types below for the built-in names, or anything for custom names.
type Event struct {
	ID        id.EventID `json:"id"`
	Name      Name       `json:"name"`
	Payload   any        `json:"payload,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// LocationPayload is the payload of LocationUpdate.
type LocationPayload struct {
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" msgpack:"longitude"`
	Provider  string  `json:"provider,omitempty" msgpack:"provider,omitempty"`
	Error     string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

// StatePayload is the payload of LocationStateChange.
type StatePayload struct {
	From string `json:"from" msgpack:"from"`
	To   string `json:"to" msgpack:"to"`
}

// RunPayload is the payload of RunStarted, RunStopped and
// LifecycleExpired.
type RunPayload struct {
	RunID string `json:"run_id" msgpack:"run_id"`
	Name  string `json:"name" msgpack:"name"`
	Title string `json:"title,omitempty" msgpack:"title,omitempty"`
}
