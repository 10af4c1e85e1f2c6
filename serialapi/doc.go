// Package serialapi carries frames between the host and a controller over a
// byte stream, typically a serial port exposed by a terminal server.
//
// The link is half-duplex. Every data frame is confirmed with a single ACK
// byte; the receiver answers NAK to a frame that fails validation and CAN when
// it dropped the frame because it was sending one itself. The sender
// retransmits a frame that was not acknowledged within the ACK timeout, up to
// the retry limit.
//
// A [Link] runs this handshake on one goroutine. It implements
// [txmgr.Controller], so it can be handed to a transaction manager directly:
//
//	link, _ := serialapi.NewLink(conn)
//	mgr, _ := txmgr.New(link)
//	_ = link.Open(ctx, mgr.OnFrameReceived)
package serialapi
