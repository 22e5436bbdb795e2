// Events a StreamingClient emits. Tokens appear in real time as the model
// generates them; every event carries the full content rebuilt from the
// text received so far.

package ai

import (
	"github.com/arin/cuecard/internal/content"
)

// State is the lifecycle of one client.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events follow this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Event is one update from a stream.
type Event struct {
	// Content is the renderable model of Text. Content.Finished is true only
	// on the terminal Completed event.
	Content content.StreamContent
	// Text is the accumulated response so far.
	Text string
	// Delta is the fragment that produced this event. Empty on terminal
	// events.
	Delta string
	State State
	// Err is set on a terminal Failed event.
	Err error
}

// Collect drains events and returns the final text. It is mostly useful in
// tests and in callers that do not render incrementally.
func Collect(events <-chan Event) (string, error) {
	var text string
	for ev := range events {
		if ev.Err != nil {
			return ev.Text, ev.Err
		}
		text = ev.Text
	}
	return text, nil
}
