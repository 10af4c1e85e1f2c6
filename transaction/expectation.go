package transaction

import (
	"fmt"

	"github.com/arloliu/go-zwave/frame"
)

// Expectation describes a frame a sent transaction waits for. The Phase field
// is the variant tag; the remaining fields are interpreted per phase:
//
//   - PhaseResponse: a response frame of Class.
//   - PhaseRequest: a request frame of Class carrying the transaction's
//     callback id.
//   - PhaseData: a request frame of Class sent by the transaction's node,
//     carrying CommandClass and, when HasCommand is set, Command.
type Expectation struct {
	Phase        Phase
	Class        frame.Class
	CommandClass uint8
	Command      uint8
	HasCommand   bool
}

// match reports whether f satisfies e for tx.
func (e *Expectation) match(tx *Transaction, f *frame.Frame) bool {
	if f == nil || f.Class != e.Class {
		return false
	}

	switch e.Phase {
	case PhaseResponse:
		return f.Type == frame.Response

	case PhaseRequest:
		id, ok := f.CallbackID()

		return ok && tx.hasCallbackID && id == tx.callbackID

	case PhaseData:
		if node, ok := f.SourceNode(); !ok || node != tx.node {
			return false
		}

		if cc, ok := f.CommandClass(); !ok || cc != e.CommandClass {
			return false
		}

		if !e.HasCommand {
			return true
		}

		cmd, ok := f.Command()

		return ok && cmd == e.Command

	default:
		return false
	}
}

func (e *Expectation) String() string {
	switch e.Phase {
	case PhaseResponse:
		return fmt.Sprintf("response %s", e.Class)
	case PhaseRequest:
		return fmt.Sprintf("request %s", e.Class)
	case PhaseData:
		if e.HasCommand {
			return fmt.Sprintf("data %s cc=0x%02X cmd=0x%02X", e.Class, e.CommandClass, e.Command)
		}

		return fmt.Sprintf("data %s cc=0x%02X", e.Class, e.CommandClass)
	default:
		return "none"
	}
}
