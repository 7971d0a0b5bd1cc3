package poller

import (
	"errors"
	"time"
)

// State is a step of the poll cycle.
type State string

const (
	StateIdle         State = "idle"
	StateFetching     State = "fetching"
	StateTransforming State = "transforming"
	StatePersisting   State = "persisting"
	StateRetrying     State = "retrying"
	StateCycleFailed  State = "cycle_failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateIdle:         {StateFetching},
	StateFetching:     {StateTransforming, StateRetrying, StateCycleFailed},
	StateTransforming: {StatePersisting, StateRetrying, StateCycleFailed},
	StatePersisting:   {StateIdle, StateRetrying, StateCycleFailed},
	StateRetrying:     {StateFetching},
	StateCycleFailed:  {StateFetching},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	CycleID   string
	Timestamp time.Time
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateIdle:
		return "Idle - waiting for the next cycle"
	case StateFetching:
		return "Fetching - requesting advantages from the feed"
	case StateTransforming:
		return "Transforming - normalizing advantages into edges"
	case StatePersisting:
		return "Persisting - upserting edges into the store"
	case StateRetrying:
		return "Retrying - waiting to repeat a failed cycle"
	case StateCycleFailed:
		return "Cycle failed - waiting for the next scheduled cycle"
	default:
		return "Unknown state"
	}
}
