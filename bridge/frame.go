package bridge

import (
	"time"

	"github.com/xraph/runner/event"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameEvent FrameType = "event"
)

// Frame is the envelope written to a sink. Channel carries the event name.
type Frame struct {
	ID        string    `json:"id" msgpack:"id"`
	Type      FrameType `json:"type" msgpack:"type"`
	Channel   string    `json:"channel" msgpack:"channel"`
	Payload   any       `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// NewEventFrame wraps a bus event.
func NewEventFrame(evt *event.Event) *Frame {
	return &Frame{
		ID:        evt.ID.String(),
		Type:      FrameEvent,
		Channel:   string(evt.Name),
		Payload:   evt.Payload,
		Timestamp: evt.CreatedAt.UTC(),
	}
}
