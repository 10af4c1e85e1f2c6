package txmgr

import "errors"

var (
	// ErrControllerNil indicates that a nil Controller was provided.
	ErrControllerNil = errors.New("txmgr: controller is nil")

	// ErrNilTransaction indicates that a nil transaction was submitted.
	ErrNilTransaction = errors.New("txmgr: transaction is nil")

	// ErrInvalidTransaction wraps the validation error of a malformed transaction.
	ErrInvalidTransaction = errors.New("txmgr: invalid transaction")

	// ErrQueueFull indicates that the send queue reached its configured limit.
	ErrQueueFull = errors.New("txmgr: send queue is full")

	// ErrManagerClosed indicates that the manager was closed.
	ErrManagerClosed = errors.New("txmgr: manager closed")
)
