package monitor

// State is a step of the solve state machine.
type State int

// States in the order a successful solve visits them.
const (
	Idle State = iota
	Submitting
	Polling
	Resolving
	Completed
	Failed
	Killed
)

var stateNames = map[State]string{
	Idle:       "idle",
	Submitting: "submitting",
	Polling:    "polling",
	Resolving:  "resolving",
	Completed:  "completed",
	Failed:     "failed",
	Killed:     "killed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Killed
}

// Stage names the part of a solve an error came from.
type Stage string

// Stages reported by StageError.
const (
	StageSubmit  Stage = "submit"
	StagePoll    Stage = "poll"
	StageResolve Stage = "resolve"
)
