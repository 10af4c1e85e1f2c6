package serialapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/logger"
	"github.com/arloliu/go-zwave/transaction"
)

// Default link timings of the serial API host interface.
const (
	DefaultACKTimeout   = 1600 * time.Millisecond // wait for ACK after a frame
	DefaultByteTimeout  = 150 * time.Millisecond  // gap between bytes of one frame
	DefaultRetryLimit   = 2                       // retransmissions after the first try
	DefaultRetryBackoff = 100 * time.Millisecond  // grows linearly with each retry

	DefaultSendQueueSize = 32
)

// Limits of the link timings.
const (
	MinACKTimeout  = 10 * time.Millisecond
	MaxACKTimeout  = 10 * time.Second
	MinByteTimeout = 5 * time.Millisecond
	MaxByteTimeout = 5 * time.Second
	MaxRetryLimit  = 10
)

// pollTimeout bounds how long an idle link waits for incoming bytes before
// checking for outgoing frames again.
const pollTimeout = 20 * time.Millisecond

// CompletionHandler receives the transactions a manager reports to the link.
type CompletionHandler func(tx *transaction.Transaction, final *frame.Frame)

type config struct {
	ackTimeout    time.Duration
	byteTimeout   time.Duration
	retryLimit    int
	retryBackoff  time.Duration
	sendQueueSize int
	onComplete    CompletionHandler
	logger        logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		ackTimeout:    DefaultACKTimeout,
		byteTimeout:   DefaultByteTimeout,
		retryLimit:    DefaultRetryLimit,
		retryBackoff:  DefaultRetryBackoff,
		sendQueueSize: DefaultSendQueueSize,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a Link.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithACKTimeout sets how long a sent frame waits for its ACK.
func WithACKTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinACKTimeout || d > MaxACKTimeout {
			return fmt.Errorf("serialapi: ack timeout %v out of range [%v, %v]", d, MinACKTimeout, MaxACKTimeout)
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithByteTimeout sets the longest gap allowed between bytes of a received frame.
func WithByteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinByteTimeout || d > MaxByteTimeout {
			return fmt.Errorf("serialapi: byte timeout %v out of range [%v, %v]", d, MinByteTimeout, MaxByteTimeout)
		}
		cfg.byteTimeout = d

		return nil
	})
}

// WithRetryLimit sets how many times an unacknowledged frame is retransmitted.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("serialapi: retry limit %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithRetryBackoff sets the pause before the first retransmission; the n-th
// retransmission waits n times as long. 0 disables the pause.
func WithRetryBackoff(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 {
			return fmt.Errorf("serialapi: retry backoff %v must not be negative", d)
		}
		cfg.retryBackoff = d

		return nil
	})
}

// WithSendQueueSize sets how many frames may wait for the link.
func WithSendQueueSize(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("serialapi: send queue size %d must be positive", n)
		}
		cfg.sendQueueSize = n

		return nil
	})
}

// WithCompletionHandler sets the handler of the transactions reported through
// the link's TransactionComplete.
func WithCompletionHandler(h CompletionHandler) Option {
	return optFunc(func(cfg *config) error {
		cfg.onComplete = h
		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("serialapi: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
