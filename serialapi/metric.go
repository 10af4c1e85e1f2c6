package serialapi

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a Link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// FrameSendCount indicates the number of frames acknowledged by the controller.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of valid frames received.
	FrameRecvCount atomic.Uint64
	// RetryCount indicates the number of retransmissions.
	RetryCount atomic.Uint64
	// SendErrCount indicates the number of frames given up after the retry limit.
	SendErrCount atomic.Uint64
	// RecvErrCount indicates the number of received frames answered with NAK.
	RecvErrCount atomic.Uint64
	// DropCount indicates the number of frames dropped because the send queue was full.
	DropCount atomic.Uint64
}

func (m *Metrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incSendErrCount() {
	m.SendErrCount.Add(1)
}

func (m *Metrics) incRecvErrCount() {
	m.RecvErrCount.Add(1)
}

func (m *Metrics) incDropCount() {
	m.DropCount.Add(1)
}
