package engine

// State is the engine lifecycle state
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateHashing
	StatePaused
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateHashing:
		return "hashing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// transitions lists the legal moves out of each state
var transitions = map[State][]State{
	StateIdle:        {StateDiscovering, StateHashing},
	StateDiscovering: {StateHashing, StateCancelled},
	StateHashing:     {StatePaused, StateCompleted, StateCancelled},
	StatePaused:      {StateHashing, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
