// Package frame models the frames exchanged with a mesh-network controller over
// its single half-duplex serial link.
//
// A data frame on the wire is:
//
//	[SOF(0x01)][LEN][TYPE][FUNC][Payload(0-252)][Checksum]
//
// LEN counts every byte after itself, checksum included. TYPE marks the frame
// as a request (0x00, host or network initiated) or a response (0x01, the
// controller's immediate answer to a host request). FUNC is the function class
// that identifies the serial API command. The checksum is 0xFF XOR-ed with
// every byte from LEN up to the last payload byte.
//
// The package only decodes the header fields the transaction engine needs for
// correlation: callback ids carried by asynchronous requests, and the source
// node, command class and command of application command frames. Command
// class payloads themselves are opaque.
package frame
