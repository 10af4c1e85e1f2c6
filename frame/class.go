package frame

import "fmt"

// Class is the serial API function class carried in the FUNC byte.
type Class byte

// Function classes used by the transaction engine and its callers.
const (
	ClassApplicationCommandHandler Class = 0x04
	ClassSerialAPISetTimeouts      Class = 0x06
	ClassSerialAPIGetCapabilities  Class = 0x07
	ClassSendData                  Class = 0x13
	ClassGetVersion                Class = 0x15
	ClassMemoryGetID               Class = 0x20
	ClassAssignReturnRoute         Class = 0x46
	ClassApplicationUpdate         Class = 0x49
	ClassAddNodeToNetwork          Class = 0x4A
	ClassRemoveNodeFromNetwork     Class = 0x4B
	ClassGetSucNodeID              Class = 0x56
)

var classNames = map[Class]string{
	ClassApplicationCommandHandler: "ApplicationCommandHandler",
	ClassSerialAPISetTimeouts:      "SerialApiSetTimeouts",
	ClassSerialAPIGetCapabilities:  "SerialApiGetCapabilities",
	ClassSendData:                  "SendData",
	ClassGetVersion:                "GetVersion",
	ClassMemoryGetID:               "MemoryGetId",
	ClassAssignReturnRoute:         "AssignReturnRoute",
	ClassApplicationUpdate:         "ApplicationUpdate",
	ClassAddNodeToNetwork:          "AddNodeToNetwork",
	ClassRemoveNodeFromNetwork:     "RemoveNodeFromNetwork",
	ClassGetSucNodeID:              "GetSucNodeId",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Class(0x%02X)", byte(c))
}

func (c Class) carriesApplicationCommand() bool {
	return c == ClassApplicationCommandHandler
}

// Transmit options for SendData.
const (
	TransmitOptionACK       byte = 0x01
	TransmitOptionAutoRoute byte = 0x04
	TransmitOptionExplore   byte = 0x20

	DefaultTransmitOptions = TransmitOptionACK | TransmitOptionAutoRoute | TransmitOptionExplore
)

// SendData builds a SendData request that delivers command (command class,
// command and parameters) to node. The controller answers with a response
// frame, then reports delivery with a callback carrying callbackID.
func SendData(node uint8, txOptions byte, callbackID uint8, command ...byte) *Frame {
	payload := make([]byte, 0, len(command)+4)
	payload = append(payload, node, byte(len(command))) //nolint:gosec // command fits in one frame
	payload = append(payload, command...)
	payload = append(payload, txOptions, callbackID)

	return &Frame{Type: Request, Class: ClassSendData, Payload: payload}
}

// ApplicationCommand builds the unsolicited request the controller emits when
// node sends command (command class, command and parameters) to the host.
func ApplicationCommand(status byte, node uint8, command ...byte) *Frame {
	payload := make([]byte, 0, len(command)+3)
	payload = append(payload, status, node, byte(len(command))) //nolint:gosec // command fits in one frame
	payload = append(payload, command...)

	return &Frame{Type: Request, Class: ClassApplicationCommandHandler, Payload: payload}
}
