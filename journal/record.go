package journal

import (
	"time"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/transaction"
)

// Kind identifies what a Record describes.
type Kind uint8

const (
	// KindSent is a frame handed to the link.
	KindSent Kind = iota + 1
	// KindCompleted is a transaction reported as done or timed out.
	KindCompleted
)

func (k Kind) String() string {
	switch k {
	case KindSent:
		return "sent"
	case KindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Record is one journal entry.
type Record struct {
	Kind      Kind      `cbor:"1,keyasint"`
	Timestamp time.Time `cbor:"2,keyasint"`

	// Frame holds the raw bytes sent, or the frame of the reported transaction.
	Frame []byte `cbor:"3,keyasint,omitempty"`

	// The fields below are set on KindCompleted records only.
	ID          string    `cbor:"4,keyasint,omitempty"`
	Node        uint8     `cbor:"5,keyasint,omitempty"`
	CallbackID  *uint8    `cbor:"6,keyasint,omitempty"`
	Priority    string    `cbor:"7,keyasint,omitempty"`
	State       string    `cbor:"8,keyasint,omitempty"`
	FailedPhase string    `cbor:"9,keyasint,omitempty"`
	Sends       int       `cbor:"10,keyasint,omitempty"`
	FinalFrame  []byte    `cbor:"11,keyasint,omitempty"`
	SubmittedAt time.Time `cbor:"12,keyasint"`
	CompletedAt time.Time `cbor:"13,keyasint"`
}

// TimedOut reports whether the record describes a transaction that timed out.
func (r *Record) TimedOut() bool {
	return r.Kind == KindCompleted && r.FailedPhase != ""
}

func sentRecord(now time.Time, data []byte) Record {
	return Record{
		Kind:      KindSent,
		Timestamp: now,
		Frame:     data,
	}
}

func completedRecord(now time.Time, tx *transaction.Transaction, final *frame.Frame) Record {
	rec := Record{
		Kind:        KindCompleted,
		Timestamp:   now,
		Frame:       tx.Frame(),
		ID:          tx.ID(),
		Node:        tx.Node(),
		Priority:    tx.Priority().String(),
		State:       tx.State().String(),
		Sends:       tx.Sends(),
		SubmittedAt: tx.SubmittedAt(),
		CompletedAt: tx.CompletedAt(),
	}

	if id, ok := tx.CallbackID(); ok {
		rec.CallbackID = &id
	}

	if tx.State() == transaction.StateTimedOut {
		rec.FailedPhase = tx.FailedPhase().String()
	}

	if final != nil {
		if data, err := final.Pack(); err == nil {
			rec.FinalFrame = data
		}
	}

	return rec
}
