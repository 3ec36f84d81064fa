// Package fsm defines the interview lifecycle state machine.
package fsm

import "fmt"

// State is a lifecycle phase of an interview session.
type State string

const (
	// StateIdle means no session is in progress.
	StateIdle State = "idle"
	// StateActive means a question is being asked and answered.
	StateActive State = "active"
	// StateCompleting means answer flow has ended and wrap-up work
	// (final persistence, summary display) is running.
	StateCompleting State = "completing"
	// StateCompleted means the session is finished and only its
	// results remain visible.
	StateCompleted State = "completed"
)

// Event is an input that may move the machine between states.
type Event string

const (
	// EventBegin starts a new or restored session.
	EventBegin Event = "begin"
	// EventFinish ends the answer flow, either because every question
	// was answered or because the session clock ran out.
	EventFinish Event = "finish"
	// EventComplete marks wrap-up work as done.
	EventComplete Event = "complete"
	// EventDiscard clears a finished session.
	EventDiscard Event = "discard"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventBegin: StateActive,
		// A restored session whose clock already expired skips the
		// answer flow entirely.
		EventFinish: StateCompleting,
	},
	StateActive: {
		EventFinish: StateCompleting,
	},
	StateCompleting: {
		EventComplete: StateCompleted,
	},
	StateCompleted: {
		EventDiscard: StateIdle,
	},
}

// Transition returns the state reached by applying event in from.
// It returns an error when the event is not valid in that state.
func Transition(from State, event Event) (State, error) {
	next, ok := transitions[from][event]
	if !ok {
		return from, fmt.Errorf("invalid transition: %s does not accept %s", from, event)
	}
	return next, nil
}
