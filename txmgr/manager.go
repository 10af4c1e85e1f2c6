package txmgr

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/internal/queue"
	"github.com/arloliu/go-zwave/internal/timeout"
	"github.com/arloliu/go-zwave/logger"
	"github.com/arloliu/go-zwave/transaction"
)

// Controller is the link the Manager drives.
//
// The Manager calls SendFrame while holding its lock, so SendFrame must not
// call back into the Manager on the same goroutine; frames read from the link
// are passed to OnFrameReceived from the reader goroutine.
//
// TransactionComplete is called without the lock held, exactly once per
// admitted transaction, and may submit new transactions.
type Controller interface {
	// SendFrame hands the raw bytes of a frame to the link. It is called with
	// the manager lock held, so it must neither block nor call back into the
	// manager.
	SendFrame(data []byte)
	// TransactionComplete reports a transaction that completed or timed out.
	// final is the last frame matched by the transaction, or nil.
	TransactionComplete(tx *transaction.Transaction, final *frame.Frame)
}

// Manager serializes transactions over a half-duplex link and correlates the
// frames received from it with the transactions waiting for them.
//
// All Manager methods are safe for concurrent use.
type Manager struct {
	ctrl    Controller
	cfg     *config
	logger  logger.Logger
	metrics Metrics
	timers  *timeout.Scheduler

	mu          sync.Mutex
	closed      bool
	queue       *queue.SendQueue
	busy        *pending                  // transaction awaiting its response, holds the link
	outstanding map[string]*pending       // sent transactions by id
	requests    map[requestKey][]*pending // awaiting a callback, oldest first
	data        map[dataKey][]*pending    // awaiting application data, oldest first
}

// pending is a sent transaction that has not completed yet.
type pending struct {
	tx    *transaction.Transaction
	phase transaction.Phase
	token uint64
}

type requestKey struct {
	class      frame.Class
	callbackID uint8
}

type dataKey struct {
	class        frame.Class
	node         uint8
	commandClass uint8
}

// completion is a terminal transaction to report once the lock is released.
type completion struct {
	tx    *transaction.Transaction
	final *frame.Frame
}

// New creates a Manager driving ctrl.
func New(ctrl Controller, opts ...Option) (*Manager, error) {
	if ctrl == nil {
		return nil, ErrControllerNil
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		ctrl:        ctrl,
		cfg:         cfg,
		logger:      cfg.logger,
		queue:       queue.NewSendQueue(cfg.queuePrealloc),
		outstanding: make(map[string]*pending),
		requests:    make(map[requestKey][]*pending),
		data:        make(map[dataKey][]*pending),
	}
	m.timers = timeout.NewScheduler(m.onPhaseTimeout)

	return m, nil
}

// Submit admits tx to the send queue and sends it right away if the link is idle.
//
// It returns false without error when an identical frame is already queued;
// the suppressed transaction is never sent nor reported.
func (m *Manager) Submit(tx *transaction.Transaction) (bool, error) {
	if tx == nil {
		return false, ErrNilTransaction
	}

	if tx.Submitted() {
		return false, transaction.ErrAlreadySubmitted
	}

	if err := tx.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	var done []completion

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrManagerClosed
	}

	duplicate := m.queue.Contains(tx.Frame())
	if !duplicate && m.cfg.queueLimit > 0 && m.queue.Length() >= m.cfg.queueLimit {
		m.mu.Unlock()
		return false, ErrQueueFull
	}

	if err := tx.MarkSubmitted(time.Now()); err != nil {
		m.mu.Unlock()
		return false, err
	}

	if duplicate || !m.queue.Enqueue(tx) {
		m.mu.Unlock()
		m.metrics.incDuplicateCount()
		m.logger.Debug("txmgr: duplicate frame suppressed", "id", tx.ID(), "node", tx.Node(), "frame", fmt.Sprintf("% X", tx.Frame()))

		return false, nil
	}

	m.metrics.incSubmittedCount()
	m.dispatchNext(&done)
	m.mu.Unlock()

	m.report(done)

	return true, nil
}

// OnFrameReceived offers a frame read from the link to the waiting transactions.
//
// The frame goes to the first match of: the transaction holding the link as its
// response, then the oldest transaction awaiting a callback with the frame's
// callback id, then the oldest transaction awaiting data from the frame's node
// and command class. Frames that match nothing are dropped.
func (m *Manager) OnFrameReceived(f *frame.Frame) {
	if f == nil {
		return
	}

	var done []completion

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	matched := m.matchResponse(f, &done) || m.matchRequest(f, &done) || m.matchData(f, &done)
	m.mu.Unlock()

	if !matched {
		m.metrics.incUnmatchedFrameCount()
		m.logger.Debug("txmgr: unmatched frame", "frame", f.String())
	}

	m.report(done)
}

// SendQueueLength returns the number of transactions waiting to be sent.
func (m *Manager) SendQueueLength() int {
	return m.queue.Length()
}

// ClearSendQueue drops every transaction waiting to be sent and returns how
// many were dropped. Dropped transactions are not reported; sent ones are
// unaffected.
func (m *Manager) ClearSendQueue() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.queue.Clear()
	if n > 0 {
		m.logger.Info("txmgr: send queue cleared", "dropped", n)
	}

	return n
}

// OutstandingCount returns the number of sent transactions still waiting for a frame.
func (m *Manager) OutstandingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.outstanding)
}

// Busy reports whether a transaction holds the link awaiting its response.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.busy != nil
}

// GetMetrics returns the metrics of the manager.
func (m *Manager) GetMetrics() *Metrics {
	return &m.metrics
}

// Close stops every phase timer and drops queued and outstanding transactions
// without reporting them. Later submissions fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.timers.Stop()
	queued := m.queue.Clear()
	outstanding := len(m.outstanding)

	m.busy = nil
	clear(m.outstanding)
	clear(m.requests)
	clear(m.data)
	m.metrics.resetOutstandingGauge()

	m.logger.Debug("txmgr: closed", "queued", queued, "outstanding", outstanding)

	return nil
}

// dispatchNext sends queued transactions while the link is free.
// Transactions that await no frame release the link as soon as they are sent.
func (m *Manager) dispatchNext(done *[]completion) {
	for m.busy == nil {
		tx, ok := m.queue.DequeueHighest()
		if !ok {
			return
		}
		m.send(tx, done)
	}
}

func (m *Manager) send(tx *transaction.Transaction, done *[]completion) {
	phase, err := tx.MarkSent()
	if err != nil {
		m.logger.Error("txmgr: transaction not sent", "id", tx.ID(), "error", err)
		return
	}

	m.ctrl.SendFrame(tx.Frame())
	m.metrics.incFrameSendCount()

	m.logger.Debug("txmgr: frame sent",
		"id", tx.ID(),
		"node", tx.Node(),
		"priority", tx.Priority(),
		"send", tx.Sends(),
		"awaiting", phase,
	)

	if phase == transaction.PhaseNone {
		m.complete(tx, done)
		return
	}

	p := &pending{tx: tx}
	m.outstanding[tx.ID()] = p
	m.metrics.incOutstandingGauge()
	m.await(p, phase)
}

// await indexes p under phase and arms its phase timer.
func (m *Manager) await(p *pending, phase transaction.Phase) {
	p.phase = phase

	switch phase {
	case transaction.PhaseResponse:
		m.busy = p
	case transaction.PhaseRequest:
		key := requestKeyOf(p.tx)
		m.requests[key] = append(m.requests[key], p)
	case transaction.PhaseData:
		key := dataKeyOf(p.tx)
		m.data[key] = append(m.data[key], p)
	}

	p.token = m.timers.Start(p.tx.ID(), phase, p.tx.Timeout(phase))
}

// unindex removes p from the index of the phase it awaits.
func (m *Manager) unindex(p *pending) {
	switch p.phase {
	case transaction.PhaseResponse:
		if m.busy == p {
			m.busy = nil
		}
	case transaction.PhaseRequest:
		key := requestKeyOf(p.tx)
		if list := removePending(m.requests[key], p); len(list) == 0 {
			delete(m.requests, key)
		} else {
			m.requests[key] = list
		}
	case transaction.PhaseData:
		key := dataKeyOf(p.tx)
		if list := removePending(m.data[key], p); len(list) == 0 {
			delete(m.data, key)
		} else {
			m.data[key] = list
		}
	}
	p.phase = transaction.PhaseNone
	p.token = 0
}

func (m *Manager) matchResponse(f *frame.Frame, done *[]completion) bool {
	p := m.busy
	if p == nil || !p.tx.Matches(transaction.PhaseResponse, f) {
		return false
	}

	m.advance(p, f, done)
	m.dispatchNext(done)

	return true
}

func (m *Manager) matchRequest(f *frame.Frame, done *[]completion) bool {
	id, ok := f.CallbackID()
	if !ok {
		return false
	}

	for _, p := range m.requests[requestKey{class: f.Class, callbackID: id}] {
		if p.tx.Matches(transaction.PhaseRequest, f) {
			m.advance(p, f, done)
			return true
		}
	}

	return false
}

func (m *Manager) matchData(f *frame.Frame, done *[]completion) bool {
	node, ok := f.SourceNode()
	if !ok {
		return false
	}

	cc, ok := f.CommandClass()
	if !ok {
		return false
	}

	for _, p := range m.data[dataKey{class: f.Class, node: node, commandClass: cc}] {
		if p.tx.Matches(transaction.PhaseData, f) {
			m.advance(p, f, done)
			return true
		}
	}

	return false
}

// advance moves p past the phase f satisfied.
func (m *Manager) advance(p *pending, f *frame.Frame, done *[]completion) {
	m.timers.Cancel(p.tx.ID())
	m.unindex(p)

	next := p.tx.Advance(f)
	if next != transaction.PhaseNone {
		m.logger.Debug("txmgr: phase satisfied", "id", p.tx.ID(), "frame", f.String(), "awaiting", next)
		m.await(p, next)

		return
	}

	m.release(p)
	m.complete(p.tx, done)
}

// release forgets a sent transaction.
func (m *Manager) release(p *pending) {
	delete(m.outstanding, p.tx.ID())
	m.metrics.decOutstandingGauge()
}

func (m *Manager) complete(tx *transaction.Transaction, done *[]completion) {
	tx.Complete(time.Now())
	m.metrics.incCompletedCount()
	*done = append(*done, completion{tx: tx, final: tx.FinalFrame()})
}

// onPhaseTimeout handles the expiry of the timer armed for key awaiting phase.
// Expiries for timers that were cancelled or re-armed while waiting for the
// lock are ignored.
func (m *Manager) onPhaseTimeout(key string, phase transaction.Phase, token uint64) {
	var done []completion

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	p, ok := m.outstanding[key]
	if !ok || p.token != token || p.phase != phase {
		m.mu.Unlock()
		return
	}

	tx := p.tx
	m.unindex(p)
	m.release(p)

	if tx.AttemptsRemaining() > 0 {
		tx.Requeue()
		m.queue.Requeue(tx)
		m.metrics.incRetryCount()
		m.logger.Debug("txmgr: phase timed out, resending",
			"id", tx.ID(),
			"node", tx.Node(),
			"phase", phase,
			"attempts_left", tx.AttemptsRemaining(),
		)
	} else {
		tx.Fail(phase, time.Now())
		m.metrics.incTimeoutCount()
		done = append(done, completion{tx: tx, final: tx.FinalFrame()})
		m.logger.Warn("txmgr: transaction timed out",
			"id", tx.ID(),
			"node", tx.Node(),
			"phase", phase,
			"sends", tx.Sends(),
		)
	}

	m.dispatchNext(&done)
	m.mu.Unlock()

	m.report(done)
}

func (m *Manager) report(done []completion) {
	for _, c := range done {
		m.ctrl.TransactionComplete(c.tx, c.final)
	}
}

func requestKeyOf(tx *transaction.Transaction) requestKey {
	id, _ := tx.CallbackID()

	return requestKey{
		class:      tx.Expectation(transaction.PhaseRequest).Class,
		callbackID: id,
	}
}

func dataKeyOf(tx *transaction.Transaction) dataKey {
	e := tx.Expectation(transaction.PhaseData)

	return dataKey{
		class:        e.Class,
		node:         tx.Node(),
		commandClass: e.CommandClass,
	}
}

func removePending(list []*pending, p *pending) []*pending {
	if i := slices.Index(list, p); i >= 0 {
		return slices.Delete(list, i, i+1)
	}

	return list
}
