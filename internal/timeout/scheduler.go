// Package timeout arms one cancellable phase timer per in-flight transaction.
package timeout

import (
	"sync/atomic"
	"time"

	"github.com/arloliu/go-zwave/transaction"
	"github.com/puzpuzpuz/xsync/v3"
)

// ExpireFunc is called on the timer goroutine when an armed timer expires.
//
// token is the value Start returned for the expiring timer. Owners that cancel
// timers while holding their own lock should compare it with the token they
// recorded, since an expiry may already be running when Cancel is called.
type ExpireFunc func(key string, phase transaction.Phase, token uint64)

// Scheduler keeps at most one active timer per key.
//
// A timer that was cancelled or replaced never invokes the ExpireFunc, even
// if it had already fired and was waiting to be delivered.
type Scheduler struct {
	entries  *xsync.MapOf[string, *entry]
	tokens   atomic.Uint64
	onExpire ExpireFunc
	stopped  atomic.Bool
}

type entry struct {
	timer *time.Timer
	phase transaction.Phase
	token uint64
}

// NewScheduler creates a Scheduler that reports expiries to onExpire.
func NewScheduler(onExpire ExpireFunc) *Scheduler {
	return &Scheduler{
		entries:  xsync.NewMapOf[string, *entry](),
		onExpire: onExpire,
	}
}

// Start arms a timer of duration d for key awaiting phase, replacing any
// timer already armed for key. It returns the token identifying the timer,
// or 0 if the scheduler was stopped.
func (s *Scheduler) Start(key string, phase transaction.Phase, d time.Duration) uint64 {
	if s.stopped.Load() {
		return 0
	}

	e := &entry{phase: phase, token: s.tokens.Add(1)}

	// Arm inside Compute so an immediate expiry cannot look the entry up
	// before it is stored.
	s.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if loaded {
			old.timer.Stop()
		}
		e.timer = time.AfterFunc(d, func() { s.fire(key, e) })

		return e, false
	})

	return e.token
}

// Cancel disarms the timer of key. It reports whether a timer was armed.
func (s *Scheduler) Cancel(key string) bool {
	e, ok := s.entries.LoadAndDelete(key)
	if !ok {
		return false
	}
	e.timer.Stop()

	return true
}

// Active returns the phase the armed timer of key is waiting on.
func (s *Scheduler) Active(key string) (transaction.Phase, bool) {
	e, ok := s.entries.Load(key)
	if !ok {
		return transaction.PhaseNone, false
	}

	return e.phase, true
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	return s.entries.Size()
}

// Stop disarms every timer. Start is a no-op afterwards.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)

	s.entries.Range(func(key string, e *entry) bool {
		e.timer.Stop()
		s.entries.Delete(key)

		return true
	})
}

func (s *Scheduler) fire(key string, e *entry) {
	current := false

	s.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if loaded && old == e {
			current = true

			return nil, true
		}

		// Replaced or cancelled: keep whatever is there.
		return old, !loaded
	})

	if !current || s.stopped.Load() {
		return
	}

	s.onExpire(key, e.phase, e.token)
}
