package transaction

import (
	"fmt"
	"time"

	"github.com/arloliu/go-zwave/frame"
)

// Builder defaults. They belong to the command layer building transactions;
// the transaction manager only ever uses the values stored in a transaction.
const (
	DefaultPriority        = PriorityGet
	DefaultAttempts        = 3
	DefaultResponseTimeout = 500 * time.Millisecond
	DefaultRequestTimeout  = 2500 * time.Millisecond
	DefaultDataTimeout     = 2500 * time.Millisecond

	MaxAttempts = 32
)

// Option is a functional option for building a Transaction.
type Option interface {
	apply(*Transaction) error
}

type optFunc func(*Transaction) error

func (f optFunc) apply(tx *Transaction) error { return f(tx) }

// WithPriority sets the queueing priority. Default is PriorityGet.
func WithPriority(p Priority) Option {
	return optFunc(func(tx *Transaction) error {
		if !p.IsValid() {
			return fmt.Errorf("%w: %s", ErrInvalidPriority, p)
		}
		tx.priority = p

		return nil
	})
}

// WithNode sets the target node.
func WithNode(node uint8) Option {
	return optFunc(func(tx *Transaction) error {
		tx.node = node
		return nil
	})
}

// WithCallbackID sets the callback id echoed by the asynchronous callback.
func WithCallbackID(id uint8) Option {
	return optFunc(func(tx *Transaction) error {
		tx.callbackID = id
		tx.hasCallbackID = true

		return nil
	})
}

// WithResponse expects the controller's response frame of class.
func WithResponse(class frame.Class) Option {
	return optFunc(func(tx *Transaction) error {
		tx.expectations[PhaseResponse] = &Expectation{Phase: PhaseResponse, Class: class}
		return nil
	})
}

// WithRequest expects a callback request frame of class carrying the
// transaction's callback id.
func WithRequest(class frame.Class) Option {
	return optFunc(func(tx *Transaction) error {
		tx.expectations[PhaseRequest] = &Expectation{Phase: PhaseRequest, Class: class}
		return nil
	})
}

// WithData expects an application command from the target node carrying
// commandClass.
func WithData(commandClass uint8) Option {
	return optFunc(func(tx *Transaction) error {
		tx.expectations[PhaseData] = &Expectation{
			Phase:        PhaseData,
			Class:        frame.ClassApplicationCommandHandler,
			CommandClass: commandClass,
		}

		return nil
	})
}

// WithDataCommand is like WithData but also requires the command within
// the command class to equal command.
func WithDataCommand(commandClass uint8, command uint8) Option {
	return optFunc(func(tx *Transaction) error {
		tx.expectations[PhaseData] = &Expectation{
			Phase:        PhaseData,
			Class:        frame.ClassApplicationCommandHandler,
			CommandClass: commandClass,
			Command:      command,
			HasCommand:   true,
		}

		return nil
	})
}

// WithAttempts sets how many times the transaction may be sent, in [1, MaxAttempts].
func WithAttempts(n int) Option {
	return optFunc(func(tx *Transaction) error {
		if n < 1 || n > MaxAttempts {
			return fmt.Errorf("%w: %d out of range [1, %d]", ErrInvalidAttempts, n, MaxAttempts)
		}
		tx.maxAttempts = n

		return nil
	})
}

// WithResponseTimeout sets how long to wait for the response.
func WithResponseTimeout(d time.Duration) Option {
	return withTimeout(PhaseResponse, d)
}

// WithRequestTimeout sets how long to wait for the callback.
func WithRequestTimeout(d time.Duration) Option {
	return withTimeout(PhaseRequest, d)
}

// WithDataTimeout sets how long to wait for the node's data.
func WithDataTimeout(d time.Duration) Option {
	return withTimeout(PhaseData, d)
}

// WithTimeouts sets all three phase timeouts.
func WithTimeouts(response, request, data time.Duration) Option {
	return optFunc(func(tx *Transaction) error {
		for _, opt := range []Option{
			WithResponseTimeout(response),
			WithRequestTimeout(request),
			WithDataTimeout(data),
		} {
			if err := opt.apply(tx); err != nil {
				return err
			}
		}

		return nil
	})
}

func withTimeout(phase Phase, d time.Duration) Option {
	return optFunc(func(tx *Transaction) error {
		if d <= 0 {
			return fmt.Errorf("%w: %s phase got %v", ErrInvalidTimeout, phase, d)
		}
		tx.timeouts[phase] = d

		return nil
	})
}

// NewSendData builds a SendData transaction delivering command to node.
//
// It expects the controller's SendData response and the delivery callback
// carrying callbackID. Add WithData or WithDataCommand to also wait for the
// node's answer.
func NewSendData(node uint8, callbackID uint8, command []byte, opts ...Option) (*Transaction, error) {
	f := frame.SendData(node, frame.DefaultTransmitOptions, callbackID, command...)

	data, err := f.Pack()
	if err != nil {
		return nil, fmt.Errorf("transaction: build SendData frame: %w", err)
	}

	base := []Option{
		WithNode(node),
		WithCallbackID(callbackID),
		WithResponse(frame.ClassSendData),
		WithRequest(frame.ClassSendData),
	}

	return New(data, append(base, opts...)...)
}
