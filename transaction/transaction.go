package transaction

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/internal/util"
	"github.com/google/uuid"
)

// Sentinel errors for malformed transactions.
var (
	ErrEmptyFrame         = errors.New("transaction: outgoing frame is empty")
	ErrInvalidPriority    = errors.New("transaction: invalid priority")
	ErrInvalidAttempts    = errors.New("transaction: attempts must be at least 1")
	ErrInvalidTimeout     = errors.New("transaction: phase timeout must be positive")
	ErrMissingCallbackID  = errors.New("transaction: request expectation requires a callback id")
	ErrMissingNode        = errors.New("transaction: data expectation requires a target node")
	ErrInvalidExpectation = errors.New("transaction: invalid expectation")
	ErrAlreadySubmitted   = errors.New("transaction: already submitted")
	ErrNotQueued          = errors.New("transaction: not queued")
)

// Transaction is one logical request/response exchange with the controller.
//
// A Transaction is built once by New and then handed to a transaction
// manager. Between submission and completion its lifecycle methods are driven
// exclusively by that manager; once it has been reported complete it is never
// mutated again and may be read from any goroutine.
type Transaction struct {
	id            string
	frame         []byte
	node          uint8
	callbackID    uint8
	hasCallbackID bool
	priority      Priority

	expectations [numPhases + 1]*Expectation
	timeouts     [numPhases + 1]time.Duration

	maxAttempts int
	attempts    int
	sends       int

	state       AtomicState
	failedPhase atomic.Uint32
	submitted   atomic.Bool

	finalFrame  *frame.Frame
	submittedAt time.Time
	completedAt time.Time
}

// New builds a transaction for the complete outgoing wire frame data.
//
// data is copied. Options are applied in order and the result is validated.
func New(data []byte, opts ...Option) (*Transaction, error) {
	tx := &Transaction{
		id:          uuid.New().String(),
		frame:       util.CloneSlice(data, 0),
		priority:    DefaultPriority,
		maxAttempts: DefaultAttempts,
	}
	tx.timeouts[PhaseResponse] = DefaultResponseTimeout
	tx.timeouts[PhaseRequest] = DefaultRequestTimeout
	tx.timeouts[PhaseData] = DefaultDataTimeout

	for _, opt := range opts {
		if err := opt.apply(tx); err != nil {
			return nil, err
		}
	}

	tx.attempts = tx.maxAttempts

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	return tx, nil
}

// Validate checks that the transaction is well formed. It reads only fields
// fixed by New, so it may run while a manager drives the transaction.
func (tx *Transaction) Validate() error {
	if len(tx.frame) == 0 {
		return ErrEmptyFrame
	}

	if !tx.priority.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, tx.priority)
	}

	if tx.maxAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidAttempts, tx.maxAttempts)
	}

	for phase := PhaseResponse; phase <= PhaseData; phase++ {
		e := tx.expectations[phase]
		if e == nil {
			continue
		}

		if e.Phase != phase {
			return fmt.Errorf("%w: %s expectation stored as %s", ErrInvalidExpectation, e.Phase, phase)
		}

		if tx.timeouts[phase] <= 0 {
			return fmt.Errorf("%w: %s phase has %v", ErrInvalidTimeout, phase, tx.timeouts[phase])
		}
	}

	if tx.expectations[PhaseRequest] != nil && !tx.hasCallbackID {
		return ErrMissingCallbackID
	}

	if tx.expectations[PhaseData] != nil && tx.node == 0 {
		return ErrMissingNode
	}

	return nil
}

// --- Accessors ---

// ID returns the unique identifier assigned when the transaction was built.
func (tx *Transaction) ID() string { return tx.id }

// Frame returns the outgoing wire frame. The returned slice must not be modified.
func (tx *Transaction) Frame() []byte { return tx.frame }

// Node returns the target node, 0 when the transaction addresses the controller.
func (tx *Transaction) Node() uint8 { return tx.node }

// CallbackID returns the callback id, if one was assigned.
func (tx *Transaction) CallbackID() (uint8, bool) { return tx.callbackID, tx.hasCallbackID }

// Priority returns the queueing priority.
func (tx *Transaction) Priority() Priority { return tx.priority }

// Expectation returns the expectation declared for phase, or nil.
func (tx *Transaction) Expectation(phase Phase) *Expectation {
	if phase < PhaseResponse || phase > PhaseData {
		return nil
	}

	return tx.expectations[phase]
}

// Expects reports whether the transaction declares an expectation for phase.
func (tx *Transaction) Expects(phase Phase) bool {
	return tx.Expectation(phase) != nil
}

// Timeout returns the duration allowed for phase.
func (tx *Transaction) Timeout(phase Phase) time.Duration {
	if phase < PhaseResponse || phase > PhaseData {
		return 0
	}

	return tx.timeouts[phase]
}

// MaxAttempts returns the number of sends the transaction was built with.
func (tx *Transaction) MaxAttempts() int { return tx.maxAttempts }

// AttemptsRemaining returns how many more times the transaction may be sent.
func (tx *Transaction) AttemptsRemaining() int { return tx.attempts }

// Sends returns how many times the transaction has been sent.
func (tx *Transaction) Sends() int { return tx.sends }

// State returns the lifecycle state.
func (tx *Transaction) State() State { return tx.state.Get() }

// FailedPhase returns the phase that timed out for a TimedOut transaction,
// PhaseNone otherwise.
func (tx *Transaction) FailedPhase() Phase { return Phase(tx.failedPhase.Load()) }

// FinalFrame returns the last frame matched to the transaction, or nil.
func (tx *Transaction) FinalFrame() *frame.Frame { return tx.finalFrame }

// Submitted reports whether the transaction was handed to a manager.
func (tx *Transaction) Submitted() bool { return tx.submitted.Load() }

// SubmittedAt returns when the transaction was handed to the manager.
func (tx *Transaction) SubmittedAt() time.Time { return tx.submittedAt }

// CompletedAt returns when the transaction reached a terminal state.
func (tx *Transaction) CompletedAt() time.Time { return tx.completedAt }

// StateString describes the observable outcome, for example
// "timed out awaiting response".
func (tx *Transaction) StateString() string {
	if st := tx.State(); st == StateTimedOut {
		return "timed out awaiting " + tx.FailedPhase().String()
	}

	return tx.State().String()
}

func (tx *Transaction) String() string {
	cb := "-"
	if tx.hasCallbackID {
		cb = fmt.Sprintf("%d", tx.callbackID)
	}

	return fmt.Sprintf("tx[%s node=%d cb=%s prio=%s state=%s]", tx.id, tx.node, cb, tx.priority, tx.StateString())
}

// --- Phase navigation and matching ---

// NextPhase returns the first declared phase after p, or PhaseNone.
// NextPhase(PhaseNone) returns the first phase awaited after sending.
func (tx *Transaction) NextPhase(p Phase) Phase {
	for next := p + 1; next <= PhaseData; next++ {
		if tx.expectations[next] != nil {
			return next
		}
	}

	return PhaseNone
}

// Matches reports whether f satisfies the expectation declared for phase.
func (tx *Transaction) Matches(phase Phase, f *frame.Frame) bool {
	e := tx.Expectation(phase)
	if e == nil {
		return false
	}

	return e.match(tx, f)
}

// --- Lifecycle, driven by the transaction manager ---

// MarkSubmitted records the submission time. It fails if the transaction
// was already submitted, since a transaction is never reused.
func (tx *Transaction) MarkSubmitted(now time.Time) error {
	if !tx.submitted.CompareAndSwap(false, true) {
		return ErrAlreadySubmitted
	}

	tx.submittedAt = now

	return nil
}

// MarkSent consumes one attempt and moves the transaction to its first
// awaited phase, which is returned. PhaseNone means nothing is awaited and
// the transaction should be completed.
//
// It fails with ErrNotQueued unless the transaction is Queued.
func (tx *Transaction) MarkSent() (Phase, error) {
	phase := tx.NextPhase(PhaseNone)

	next := StateQueued
	if phase != PhaseNone {
		next = awaitState(phase)
	}

	if !tx.state.Transit(StateQueued, next) {
		return PhaseNone, fmt.Errorf("%w: %s", ErrNotQueued, tx.State())
	}

	tx.attempts--
	tx.sends++

	return phase, nil
}

// Advance records f as satisfying the awaited phase and moves to the next
// declared phase, which is returned. PhaseNone means the transaction should
// be completed.
func (tx *Transaction) Advance(f *frame.Frame) Phase {
	tx.finalFrame = f

	phase := tx.NextPhase(tx.State().Phase())
	if phase != PhaseNone {
		tx.state.Set(awaitState(phase))
	}

	return phase
}

// Requeue returns the transaction to the Queued state for another attempt.
func (tx *Transaction) Requeue() {
	tx.state.Set(StateQueued)
}

// Complete marks every expectation as satisfied.
func (tx *Transaction) Complete(now time.Time) {
	tx.completedAt = now
	tx.state.Set(StateDone)
}

// Fail marks the transaction as timed out while awaiting phase.
func (tx *Transaction) Fail(phase Phase, now time.Time) {
	tx.completedAt = now
	tx.failedPhase.Store(uint32(phase))
	tx.state.Set(StateTimedOut)
}
