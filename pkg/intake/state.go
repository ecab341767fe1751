package intake

import "sync"

// State is the lifecycle of one driven sequence.
type State int

const (
	Idle State = iota
	Active
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type stateTracker struct {
	mu     sync.Mutex
	states map[string]State
}

func newStateTracker(names ...string) *stateTracker {
	st := &stateTracker{states: make(map[string]State, len(names))}
	for _, n := range names {
		st.states[n] = Idle
	}
	return st
}

func (st *stateTracker) set(name string, s State) {
	st.mu.Lock()
	st.states[name] = s
	st.mu.Unlock()
}

func (st *stateTracker) snapshot() map[string]State {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]State, len(st.states))
	for k, v := range st.states {
		out[k] = v
	}
	return out
}
