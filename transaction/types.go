package transaction

import (
	"fmt"
	"sync/atomic"
)

// Priority orders transactions in the send queue. It is never used for
// matching received frames.
//
// The zero value is not a valid priority.
type Priority uint8

const (
	// PriorityImmediate is used for controller management commands that must
	// go out before anything else.
	PriorityImmediate Priority = iota + 1
	// PrioritySet is used for configuration and value writes.
	PrioritySet
	// PriorityGet is used for on-demand value reads.
	PriorityGet
	// PriorityPoll is used for periodic background polling.
	PriorityPoll
)

// NumPriorities is the number of valid priorities.
const NumPriorities = 4

// IsValid reports whether p is one of the defined priorities.
func (p Priority) IsValid() bool {
	return p >= PriorityImmediate && p <= PriorityPoll
}

// Tier returns the zero-based queue tier of p, 0 being dispatched first.
func (p Priority) Tier() int {
	return int(p) - 1
}

func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "Immediate"
	case PrioritySet:
		return "Set"
	case PriorityGet:
		return "Get"
	case PriorityPoll:
		return "Poll"
	default:
		return fmt.Sprintf("Priority(%d)", uint8(p))
	}
}

// Phase is one of the expectation stages a transaction may await after it
// has been sent.
type Phase uint8

const (
	// PhaseNone means no phase is awaited.
	PhaseNone Phase = iota
	// PhaseResponse awaits the controller's immediate response.
	PhaseResponse
	// PhaseRequest awaits the asynchronous callback carrying the callback id.
	PhaseRequest
	// PhaseData awaits the application data sent back by the target node.
	PhaseData
)

const numPhases = 3

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseResponse:
		return "response"
	case PhaseRequest:
		return "request"
	case PhaseData:
		return "data"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(p))
	}
}

// State is the lifecycle state of a transaction.
type State uint32

const (
	// StateQueued means the transaction waits in the send queue.
	StateQueued State = iota
	// StateAwaitingResponse means the transaction was sent and holds the
	// link until the controller responds.
	StateAwaitingResponse
	// StateAwaitingRequest means the transaction waits for its callback.
	StateAwaitingRequest
	// StateAwaitingData means the transaction waits for data from its node.
	StateAwaitingData
	// StateDone means every expectation was satisfied.
	StateDone
	// StateTimedOut means an awaited phase timed out with no attempts left.
	StateTimedOut
)

// awaitState maps an awaited phase to its state.
func awaitState(p Phase) State {
	switch p {
	case PhaseResponse:
		return StateAwaitingResponse
	case PhaseRequest:
		return StateAwaitingRequest
	case PhaseData:
		return StateAwaitingData
	default:
		return StateDone
	}
}

// Phase returns the phase awaited in state s, or PhaseNone.
func (s State) Phase() Phase {
	switch s {
	case StateAwaitingResponse:
		return PhaseResponse
	case StateAwaitingRequest:
		return PhaseRequest
	case StateAwaitingData:
		return PhaseData
	default:
		return PhaseNone
	}
}

// IsTerminal reports whether s is Done or TimedOut.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateTimedOut
}

func (s State) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateAwaitingRequest:
		return "AwaitingRequest"
	case StateAwaitingData:
		return "AwaitingData"
	case StateDone:
		return "Done"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// AtomicState holds a State that may be read from any goroutine.
type AtomicState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// Set stores state.
func (st *AtomicState) Set(state State) {
	st.state.Store(uint32(state))
}

// Transit moves from one state to another and reports whether the current
// state was from.
func (st *AtomicState) Transit(from, to State) bool {
	return st.state.CompareAndSwap(uint32(from), uint32(to))
}

func (st *AtomicState) String() string {
	return st.Get().String()
}
