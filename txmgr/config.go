package txmgr

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-zwave/logger"
)

const (
	// DefaultQueuePrealloc is the per-priority capacity reserved in the send queue.
	DefaultQueuePrealloc = 16

	// DefaultQueueLimit means the send queue is unbounded.
	DefaultQueueLimit = 0
)

type config struct {
	logger        logger.Logger
	queuePrealloc int
	queueLimit    int
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		logger:        logger.GetLogger(),
		queuePrealloc: DefaultQueuePrealloc,
		queueLimit:    DefaultQueueLimit,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a Manager.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithLogger sets the logger for the manager.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("txmgr: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithQueuePrealloc sets the capacity reserved per priority in the send queue.
func WithQueuePrealloc(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 0 {
			return fmt.Errorf("txmgr: queue prealloc %d must not be negative", n)
		}
		cfg.queuePrealloc = n

		return nil
	})
}

// WithQueueLimit bounds the number of transactions waiting in the send queue.
// Submit returns ErrQueueFull once the limit is reached. 0 means unbounded.
func WithQueueLimit(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 0 {
			return fmt.Errorf("txmgr: queue limit %d must not be negative", n)
		}
		cfg.queueLimit = n

		return nil
	})
}
