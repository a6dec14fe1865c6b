package model

// RunState is a state of the orchestrator state machine.
type RunState string

const (
	StateInit      RunState = "INIT"
	StateReadBatch RunState = "READ_BATCH"
	StateLoading   RunState = "LOADING"
	StateEmitting  RunState = "EMITTING"
	StateAdvancing RunState = "ADVANCING"
	StateDone      RunState = "DONE"
	StateFailed    RunState = "FAILED"
)

// String returns the string representation of the RunState.
func (s RunState) String() string {
	return string(s)
}

// IsFinished reports whether the state is terminal for a run.
func (s RunState) IsFinished() bool {
	return s == StateDone || s == StateFailed
}
