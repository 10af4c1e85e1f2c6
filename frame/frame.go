package frame

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-zwave/internal/util"
)

// SOF is the start-of-frame marker of a data frame.
const SOF byte = 0x01

// Single-byte link control characters sent outside data frames.
const (
	// ACK acknowledges a correctly received data frame.
	ACK byte = 0x06

	// NAK rejects a data frame that failed validation.
	NAK byte = 0x15

	// CAN reports that a data frame was dropped because of link contention.
	CAN byte = 0x18
)

const (
	// MinLength is the smallest valid LEN value: TYPE, FUNC and checksum.
	MinLength = 3

	// MaxLength is the largest LEN value that fits in one byte.
	MaxLength = 255

	// MaxPayloadSize is the largest payload a single frame can carry.
	MaxPayloadSize = MaxLength - MinLength

	// headerSize covers SOF and LEN.
	headerSize = 2
)

// Sentinel errors for frame decoding.
var (
	ErrShortFrame       = errors.New("frame: frame too short")
	ErrInvalidSOF       = errors.New("frame: missing start of frame")
	ErrInvalidLength    = errors.New("frame: invalid frame length")
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Type tells requests apart from responses.
type Type byte

const (
	// Request frames are either host commands or asynchronous callbacks and
	// unsolicited reports from the network.
	Request Type = 0x00

	// Response frames are the controller's immediate answer to a host request.
	Response Type = 0x01
)

func (t Type) String() string {
	switch t {
	case Request:
		return "REQ"
	case Response:
		return "RES"
	default:
		return fmt.Sprintf("Type(0x%02X)", byte(t))
	}
}

// Frame is a single decoded serial frame.
type Frame struct {
	Type    Type
	Class   Class
	Payload []byte
}

// New creates a frame. The payload is copied.
func New(t Type, class Class, payload ...byte) *Frame {
	return &Frame{
		Type:    t,
		Class:   class,
		Payload: util.CloneSlice(payload, 0),
	}
}

// Length returns the LEN byte value of the frame.
func (f *Frame) Length() int {
	return MinLength + len(f.Payload)
}

// Checksum computes the XOR checksum over LEN, TYPE, FUNC and the payload.
func (f *Frame) Checksum() byte {
	cs := byte(0xFF) ^ byte(f.Length()) ^ byte(f.Type) ^ byte(f.Class) //nolint:gosec // length bounded by MaxLength
	for _, b := range f.Payload {
		cs ^= b
	}

	return cs
}

// Pack serializes the frame to its wire format, SOF through checksum.
//
// It returns ErrPayloadTooLarge if the payload does not fit in one frame.
func (f *Frame) Pack() ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(f.Payload), MaxPayloadSize)
	}

	length := f.Length()
	buf := make([]byte, headerSize+length)
	buf[0] = SOF
	buf[1] = byte(length)
	buf[2] = byte(f.Type)
	buf[3] = byte(f.Class)
	copy(buf[4:], f.Payload)
	buf[len(buf)-1] = f.Checksum()

	return buf, nil
}

// MustPack is like Pack but panics on error. It is intended for frames built
// from constant data.
func (f *Frame) MustPack() []byte {
	data, err := f.Pack()
	if err != nil {
		panic(err)
	}

	return data
}

// Parse decodes a complete wire frame, SOF through checksum.
//
// Parse validates the SOF marker, that LEN agrees with the data size and
// the checksum.
func Parse(data []byte) (*Frame, error) {
	if len(data) < headerSize+MinLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(data))
	}

	if data[0] != SOF {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrInvalidSOF, data[0])
	}

	length := int(data[1])
	if length < MinLength || headerSize+length != len(data) {
		return nil, fmt.Errorf("%w: LEN=%d, frame has %d bytes", ErrInvalidLength, length, len(data))
	}

	f := &Frame{
		Type:  Type(data[2]),
		Class: Class(data[3]),
	}
	if length > MinLength {
		f.Payload = util.CloneSlice(data[4:len(data)-1], 0)
	}

	wire := data[len(data)-1]
	if calc := f.Checksum(); wire != calc {
		return nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, wire, calc)
	}

	return f, nil
}

// --- Correlation accessors ---

// CallbackID returns the callback id of an asynchronous request frame.
//
// Callbacks echo the id the host placed in the originating request as their
// first payload byte. Response frames and empty requests carry none.
func (f *Frame) CallbackID() (uint8, bool) {
	if f.Type != Request || len(f.Payload) == 0 {
		return 0, false
	}

	return f.Payload[0], true
}

// SourceNode returns the node an application command frame came from.
func (f *Frame) SourceNode() (uint8, bool) {
	if !f.isApplicationCommand() || len(f.Payload) < 2 {
		return 0, false
	}

	return f.Payload[1], true
}

// CommandClass returns the command class of an application command frame.
func (f *Frame) CommandClass() (uint8, bool) {
	if !f.isApplicationCommand() || len(f.Payload) < 4 {
		return 0, false
	}

	return f.Payload[3], true
}

// Command returns the command within the command class of an application
// command frame.
func (f *Frame) Command() (uint8, bool) {
	if !f.isApplicationCommand() || len(f.Payload) < 5 {
		return 0, false
	}

	return f.Payload[4], true
}

// isApplicationCommand reports whether the payload follows the application
// command layout: status, source node, command length, command bytes.
func (f *Frame) isApplicationCommand() bool {
	return f.Type == Request && f.Class.carriesApplicationCommand()
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %s % X", f.Type, f.Class, f.Payload)
}
