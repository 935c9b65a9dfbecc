package solver

// State is a position in the solve loop
type State int

const (
	StateStarting State = iota
	StateLoading
	StateExtracting
	StateAnswering
	StateSubmitting
	StateDeciding
	StateFinished
	StateFailed
)

var stateNames = map[State]string{
	StateStarting:   "starting",
	StateLoading:    "loading",
	StateExtracting: "extracting",
	StateAnswering:  "answering",
	StateSubmitting: "submitting",
	StateDeciding:   "deciding",
	StateFinished:   "finished",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// allowed lists every legal transition; anything else is a programming error.
var allowed = map[State][]State{
	StateStarting:   {StateLoading, StateFailed},
	StateLoading:    {StateExtracting, StateFailed},
	StateExtracting: {StateAnswering, StateFailed},
	StateAnswering:  {StateSubmitting, StateFailed},
	StateSubmitting: {StateDeciding, StateFailed},
	StateDeciding:   {StateLoading, StateFinished, StateFailed},
}

// CanTransition reports whether the loop may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
