// Package pool provides pooled time.Timer helpers. Session timeouts (idle
// windows, result waits, settling delays) churn through timers quickly;
// pooling avoids reallocating them on every queue drain.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer once it is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // pool only ever holds *time.Timer
	if t.Reset(d) {
		// Timer was active, drain the channel to prevent a stale fire.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops the timer and returns it to the pool.
//
// t must not be accessed after returning it to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if the caller has not received from it yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
