package journal

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-zwave/logger"
)

const (
	// DefaultBufferSize is the number of records that may wait for the writer.
	DefaultBufferSize = 256
	// MaxBufferSize is the largest accepted buffer size.
	MaxBufferSize = 1 << 16
)

type config struct {
	logger     logger.Logger
	bufferSize int
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		logger:     logger.GetLogger(),
		bufferSize: DefaultBufferSize,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a Journal.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithLogger sets the logger used to report write failures.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("journal: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithBufferSize sets how many records may wait for the writer before new
// records are dropped.
func WithBufferSize(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > MaxBufferSize {
			return fmt.Errorf("journal: buffer size %d out of range [1, %d]", n, MaxBufferSize)
		}
		cfg.bufferSize = n

		return nil
	})
}
