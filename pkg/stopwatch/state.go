package stopwatch

import "fmt"

// State of a Stopwatch. Exactly one holds at any time.
type State int

const (
	Idle    State = iota // no active measurement
	Running              // start recorded, awaiting stop
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// validTransitions maps from-state to allowed to-states
var validTransitions = map[State]map[State]bool{
	Idle:    {Running: true}, // Start
	Running: {Idle: true},    // Stop
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// MisuseError reports a Start while running or a Stop while idle.
type MisuseError struct {
	Op    string // "start" or "stop"
	State State  // state the stopwatch was in
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("stopwatch: %s called while %s", e.Op, e.State)
}
