package txmgr

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a Manager.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// SubmittedCount indicates the number of transactions admitted to the send queue.
	SubmittedCount atomic.Uint64
	// DuplicateCount indicates the number of submissions suppressed as duplicates.
	DuplicateCount atomic.Uint64
	// FrameSendCount indicates the number of frames handed to the controller, retries included.
	FrameSendCount atomic.Uint64
	// RetryCount indicates the number of phase timeouts that led to a resend.
	RetryCount atomic.Uint64
	// CompletedCount indicates the number of transactions that completed successfully.
	CompletedCount atomic.Uint64
	// TimeoutCount indicates the number of transactions that timed out with no attempts left.
	TimeoutCount atomic.Uint64
	// UnmatchedFrameCount indicates the number of received frames no transaction was waiting for.
	UnmatchedFrameCount atomic.Uint64
	// OutstandingGauge indicates the number of sent transactions not yet completed.
	OutstandingGauge atomic.Int64
}

func (m *Metrics) incSubmittedCount() {
	m.SubmittedCount.Add(1)
}

func (m *Metrics) incDuplicateCount() {
	m.DuplicateCount.Add(1)
}

func (m *Metrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incCompletedCount() {
	m.CompletedCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incUnmatchedFrameCount() {
	m.UnmatchedFrameCount.Add(1)
}

func (m *Metrics) incOutstandingGauge() {
	m.OutstandingGauge.Add(1)
}

func (m *Metrics) decOutstandingGauge() {
	m.OutstandingGauge.Add(-1)
}

func (m *Metrics) resetOutstandingGauge() {
	m.OutstandingGauge.Store(0)
}
