package journal

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/logger"
	"github.com/arloliu/go-zwave/transaction"
	"github.com/arloliu/go-zwave/txmgr"
	"github.com/fxamacker/cbor/v2"
)

// Journal is a txmgr.Controller that records traffic before passing it on.
//
// Records are encoded by a writer goroutine, so SendFrame and
// TransactionComplete never wait for the underlying writer. When the buffer
// is full the record is dropped and counted; traffic is always forwarded.
// It is safe for concurrent use.
type Journal struct {
	next    txmgr.Controller
	closer  io.Closer
	logger  logger.Logger
	encoder *cbor.Encoder

	mu     sync.Mutex
	closed bool
	queue  chan Record
	done   chan struct{}

	records atomic.Uint64
	dropped atomic.Uint64
}

var _ txmgr.Controller = (*Journal)(nil)

// New creates a Journal writing to w and forwarding to next.
func New(w io.Writer, next txmgr.Controller, opts ...Option) (*Journal, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		next:    next,
		logger:  cfg.logger,
		encoder: newEncoder(w),
		queue:   make(chan Record, cfg.bufferSize),
		done:    make(chan struct{}),
	}

	go j.run()

	return j, nil
}

// Open creates a Journal appending to the file at path, which is created
// with permissions 0644 if it doesn't exist.
func Open(path string, next txmgr.Controller, opts ...Option) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	j, err := New(f, next, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	j.closer = f

	return j, nil
}

// SendFrame records data and forwards it.
func (j *Journal) SendFrame(data []byte) {
	j.enqueue(sentRecord(time.Now(), data))
	j.next.SendFrame(data)
}

// TransactionComplete records the outcome of tx and forwards it.
func (j *Journal) TransactionComplete(tx *transaction.Transaction, final *frame.Frame) {
	j.enqueue(completedRecord(time.Now(), tx, final))
	j.next.TransactionComplete(tx, final)
}

// Records returns the number of records written.
func (j *Journal) Records() uint64 {
	return j.records.Load()
}

// Dropped returns the number of records lost to a full buffer.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Close writes the buffered records, then closes the file opened by Open.
// Traffic is still forwarded after Close.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done

	if j.closer != nil {
		return j.closer.Close()
	}

	return nil
}

func (j *Journal) enqueue(rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}

	select {
	case j.queue <- rec:
	default:
		j.dropped.Add(1)
		j.logger.Warn("journal: buffer full, record dropped", "kind", rec.Kind)
	}
}

func (j *Journal) run() {
	defer close(j.done)

	for rec := range j.queue {
		// a failed write must not disturb the link
		if err := j.encoder.Encode(rec); err != nil {
			j.logger.Warn("journal: write record failed", "kind", rec.Kind, "error", err)
			continue
		}
		j.records.Add(1)
	}
}
