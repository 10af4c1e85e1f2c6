// Package journal records the traffic of a transaction manager as a stream
// of CBOR records.
//
// A [Journal] sits between a [txmgr.Manager] and the real controller: every
// frame sent and every transaction reported is queued for a writer goroutine
// and then passed on. A [Reader] streams the records back, optionally filtered, which is how
// captured sessions are inspected and replayed in tests.
//
// Records use integer map keys and canonical encoding, so a journal of the
// same session is byte-identical across runs.
package journal
