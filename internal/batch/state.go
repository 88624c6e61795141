package batch

import "sync/atomic"

// State is the lifecycle position of one batch run. States only move forward.
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateCollecting
	StateAwaitingCompletion
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

type stateMachine struct {
	v atomic.Int32
}

// advance moves to s if s is ahead of the current state and reports whether
// it did.
func (m *stateMachine) advance(s State) bool {
	for {
		cur := m.v.Load()
		if int32(s) <= cur {
			return false
		}
		if m.v.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}
