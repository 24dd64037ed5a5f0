// Package session implements a resilient Modbus session layer: application
// code submits callbacks that operate on registers, and the session takes
// care of connection establishment, command serialization, transient-failure
// retries and idle link release.
//
// All register operations submitted to one Session are funneled through a
// FIFO action queue drained by a single supervised goroutine, so a
// half-duplex serial bus or a rate-limited TCP endpoint only ever sees one
// request at a time. Producers may call Execute and ExecuteAndReturn from any
// number of goroutines without external locking.
//
// A failed action is retried exactly once, immediately, before later actions
// run. Errors never propagate to submitters as panics; results degrade to
// nil/error plus a log line. After the queue drains and the configured idle
// window elapses without new work, the session closes the link on its own and
// reconnects on demand when the next action arrives.
//
// For one-shot scripts, TempConnect opens a connection, runs a single
// callback and unconditionally closes the link again.
package session
