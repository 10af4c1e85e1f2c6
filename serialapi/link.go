package serialapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/internal/pool"
	"github.com/arloliu/go-zwave/logger"
	"github.com/arloliu/go-zwave/transaction"
	"github.com/arloliu/go-zwave/txmgr"
)

// Sentinel errors for the serial link.
var (
	ErrConnNil       = errors.New("serialapi: conn is nil")
	ErrLinkClosed    = errors.New("serialapi: link closed")
	ErrAlreadyOpen   = errors.New("serialapi: link already open")
	ErrByteTimeout   = errors.New("serialapi: inter-byte timeout")
	ErrACKTimeout    = errors.New("serialapi: ack timeout")
	ErrRejected      = errors.New("serialapi: frame rejected with NAK")
	ErrCancelled     = errors.New("serialapi: frame cancelled with CAN")
	ErrContention    = errors.New("serialapi: controller sent a frame instead of ACK")
	ErrSendFailure   = errors.New("serialapi: frame not acknowledged, retries exhausted")
	ErrSendQueueFull = errors.New("serialapi: send queue full")
)

// FrameHandler receives every valid frame read from the link, on the link's
// goroutine.
type FrameHandler func(f *frame.Frame)

// Link runs the serial API handshake over conn.
//
// Frames handed to SendFrame are queued and written by the link's goroutine,
// which also reads, acknowledges and delivers incoming frames.
type Link struct {
	conn    net.Conn
	reader  *bufio.Reader
	cfg     *config
	logger  logger.Logger
	sendCh  chan []byte
	onFrame FrameHandler

	mu     sync.Mutex
	opened bool
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	metrics Metrics
}

var _ txmgr.Controller = (*Link)(nil)

// NewLink creates a Link over conn. The link does not touch conn until Open.
func NewLink(conn net.Conn, opts ...Option) (*Link, error) {
	if conn == nil {
		return nil, ErrConnNil
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Link{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
		logger: cfg.logger,
		sendCh: make(chan []byte, cfg.sendQueueSize),
	}, nil
}

// Open starts the link's goroutine. Valid incoming frames are passed to onFrame.
func (l *Link) Open(ctx context.Context, onFrame FrameHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return ErrLinkClosed
	}

	if l.opened {
		return ErrAlreadyOpen
	}
	l.opened = true
	l.onFrame = onFrame

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go l.run(ctx)

	return nil
}

// Close stops the link's goroutine and closes conn. Queued frames are dropped.
func (l *Link) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	err := l.conn.Close()

	if done != nil {
		<-done
	}

	l.logger.Debug("serialapi: link closed")

	return err
}

// SendFrame queues data for transmission. It never blocks: when the send
// queue is full the frame is dropped and left to the sender's own timeout.
func (l *Link) SendFrame(data []byte) {
	if l.closed.Load() {
		l.metrics.incDropCount()
		return
	}

	select {
	case l.sendCh <- data:
	default:
		l.metrics.incDropCount()
		l.logger.Warn("serialapi: frame dropped", "error", ErrSendQueueFull, "frame", fmt.Sprintf("% X", data))
	}
}

// TransactionComplete passes a completed transaction to the completion handler.
func (l *Link) TransactionComplete(tx *transaction.Transaction, final *frame.Frame) {
	if l.cfg.onComplete != nil {
		l.cfg.onComplete(tx, final)
	}
}

// GetMetrics returns the metrics of the link.
func (l *Link) GetMetrics() *Metrics {
	return &l.metrics
}

// --- protocol loop ---

func (l *Link) run(ctx context.Context) {
	defer close(l.done)

	for l.iterate(ctx) {
	}

	l.logger.Debug("serialapi: protocol loop stopped")
}

// iterate sends one queued frame if any, else polls for incoming bytes.
func (l *Link) iterate(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false

	case data := <-l.sendCh:
		l.transmit(ctx, data)

		return true

	default:
	}

	return l.poll(ctx)
}

func (l *Link) poll(ctx context.Context) bool {
	b, err := l.readByte(pollTimeout)
	if err != nil {
		if isTimeout(err) {
			return true
		}

		if ctx.Err() == nil {
			l.logger.Error("serialapi: link read failed", "error", err)
		}

		return false
	}

	if b == frame.SOF {
		l.receiveFrame()
		return true
	}

	l.logger.Debug("serialapi: unexpected byte discarded", "byte", fmt.Sprintf("0x%02X", b))

	return true
}

// receiveFrame reads the rest of a frame whose SOF was just read, answers
// ACK or NAK and delivers a valid frame.
func (l *Link) receiveFrame() {
	length, err := l.readByte(l.cfg.byteTimeout)
	if err != nil {
		l.reject(fmt.Errorf("%w: waiting for length: %w", ErrByteTimeout, err), false)
		return
	}

	if length < frame.MinLength {
		l.reject(fmt.Errorf("%w: %d", frame.ErrInvalidLength, length), true)
		return
	}

	buf := make([]byte, 2+int(length))
	buf[0], buf[1] = frame.SOF, length

	if err := l.readFull(buf[2:]); err != nil {
		l.reject(err, false)
		return
	}

	f, err := frame.Parse(buf)
	if err != nil {
		l.reject(err, true)
		return
	}

	if err := l.writeByte(frame.ACK); err != nil {
		l.logger.Error("serialapi: failed to send ACK", "error", err)
	}
	l.metrics.incFrameRecvCount()

	l.logger.Debug("serialapi: frame received", "frame", f.String())

	if l.onFrame != nil {
		l.onFrame(f)
	}
}

// reject answers NAK to a broken frame, first waiting for the line to go
// quiet if the sender may still be transmitting.
func (l *Link) reject(err error, drain bool) {
	if drain {
		l.drainUntilSilence()
	}

	_ = l.writeByte(frame.NAK)
	l.metrics.incRecvErrCount()

	l.logger.Debug("serialapi: frame rejected", "error", err)
}

// transmit writes data until it is acknowledged or the retry limit is reached.
func (l *Link) transmit(ctx context.Context, data []byte) {
	for attempt := 0; attempt <= l.cfg.retryLimit; attempt++ {
		if attempt > 0 {
			l.metrics.incRetryCount()

			if err := pool.Sleep(ctx, l.cfg.retryBackoff*time.Duration(attempt)); err != nil {
				return
			}
		}

		if err := l.writeAll(data); err != nil {
			l.metrics.incSendErrCount()
			l.logger.Error("serialapi: failed to write frame", "error", err)

			return
		}

		err := l.awaitACK(ctx)
		if err == nil {
			l.metrics.incFrameSendCount()
			return
		}

		if ctx.Err() != nil {
			return
		}

		l.logger.Debug("serialapi: frame not acknowledged",
			"attempt", attempt+1,
			"maxAttempts", l.cfg.retryLimit+1,
			"error", err,
		)
	}

	l.metrics.incSendErrCount()
	l.logger.Warn("serialapi: frame dropped", "error", ErrSendFailure, "frame", fmt.Sprintf("% X", data))
}

// awaitACK waits for the answer to a frame just written.
func (l *Link) awaitACK(ctx context.Context) error {
	deadline := time.Now().Add(l.cfg.ackTimeout)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrACKTimeout
		}

		b, err := l.readByte(remaining)
		if err != nil {
			if isTimeout(err) {
				return ErrACKTimeout
			}

			return err
		}

		switch b {
		case frame.ACK:
			return nil
		case frame.NAK:
			return ErrRejected
		case frame.CAN:
			return ErrCancelled
		case frame.SOF:
			// the controller won the line; take its frame, then resend ours
			l.receiveFrame()
			return ErrContention
		}
	}
}

// --- low-level I/O ---

func (l *Link) readByte(timeout time.Duration) (byte, error) {
	if err := l.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	return l.reader.ReadByte()
}

// readFull fills buf, allowing at most the byte timeout per read call.
func (l *Link) readFull(buf []byte) error {
	for read := 0; read < len(buf); {
		if err := l.conn.SetReadDeadline(time.Now().Add(l.cfg.byteTimeout)); err != nil {
			return err
		}

		n, err := l.reader.Read(buf[read:])
		read += n

		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrByteTimeout, read, len(buf))
			}

			return err
		}
	}

	return nil
}

func (l *Link) writeByte(b byte) error {
	return l.writeAll([]byte{b})
}

func (l *Link) writeAll(data []byte) error {
	if err := l.conn.SetWriteDeadline(time.Now().Add(l.cfg.ackTimeout)); err != nil {
		return err
	}

	for written := 0; written < len(data); {
		n, err := l.conn.Write(data[written:])
		written += n

		if err != nil {
			return err
		}
	}

	return nil
}

// drainUntilSilence discards bytes until none arrives within the byte timeout.
func (l *Link) drainUntilSilence() {
	buf := make([]byte, 64)

	for {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.cfg.byteTimeout))

		if _, err := l.reader.Read(buf); err != nil {
			return
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}
