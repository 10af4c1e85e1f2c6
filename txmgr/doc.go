// Package txmgr runs the transactions a host exchanges with a mesh-network
// controller over one half-duplex serial link.
//
// # Link model
//
// The controller handles one host request at a time: after a frame is sent the
// link stays busy until the controller's response arrives. Delivery callbacks
// and application data from remote nodes arrive later, asynchronously and in
// any order, so many transactions may wait for them at once while only one
// holds the link.
//
// # Transactions
//
// A [transaction.Transaction] declares up to three phases, awaited in order:
//
//   - response: the controller's immediate response. Awaiting it holds the link.
//   - request: the asynchronous callback carrying the transaction's callback id.
//   - data: the application command the target node sends back.
//
// Each phase has its own timeout. When a phase times out the transaction is
// sent again, ahead of queued transactions of the same priority, until its
// attempts are used up; it then completes as timed out in that phase.
//
// # Matching
//
// An incoming frame is offered, in this order, to the transaction holding the
// link as its response, to transactions awaiting a callback with the frame's
// callback id, and to transactions awaiting data from the frame's node and
// command class. Frames nobody waits for are normal and are dropped quietly.
//
// # Reporting
//
// Every submitted transaction that is not suppressed as a duplicate is
// reported exactly once through [Controller.TransactionComplete], whether it
// completed or timed out.
package txmgr
