package job

import "fmt"

// State is the lifecycle position of a Job.
type State string

const (
	StateResolving      State = "resolving"
	StatePolicyCheck    State = "policy_check"
	StateDownloading    State = "downloading"
	StatePostProcessing State = "post_processing"
	StateUploading      State = "uploading"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

var stateOrder = map[State]int{
	StateResolving:      0,
	StatePolicyCheck:    1,
	StateDownloading:    2,
	StatePostProcessing: 3,
	StateUploading:      4,
	StateCompleted:      5,
	StateFailed:         6,
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TerminalStates lists the states a finished job can be in.
func TerminalStates() []string {
	return []string{string(StateCompleted), string(StateFailed)}
}

// CanTransition reports whether moving from s to next is legal: forward only,
// failed from any non-terminal state, never out of a terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	from, ok := stateOrder[s]
	to, ok2 := stateOrder[next]
	return ok && ok2 && to > from
}

// TransitionError reports an illegal state change.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job: illegal transition %s -> %s", e.From, e.To)
}
