package session

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// ConnectCount indicates the number of successful connection establishments.
	ConnectCount atomic.Uint64
	// DisconnectCount indicates the number of observed connected-to-disconnected transitions.
	DisconnectCount atomic.Uint64
	// IdleDisconnectCount indicates the number of connections released by the idle timer.
	IdleDisconnectCount atomic.Uint64

	// ActionRunCount indicates the number of action invocations, retries included.
	ActionRunCount atomic.Uint64
	// ActionRetryCount indicates the number of actions that consumed their retry slot.
	ActionRetryCount atomic.Uint64
	// ActionDropCount indicates the number of actions dropped after a failed retry.
	ActionDropCount atomic.Uint64
	// ActionSkipCount indicates the number of invalid queue entries skipped.
	ActionSkipCount atomic.Uint64

	// QueueLengthGauge indicates the number of actions currently queued.
	QueueLengthGauge atomic.Int64
}

func (m *SessionMetrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *SessionMetrics) incDisconnectCount() {
	m.DisconnectCount.Add(1)
}

func (m *SessionMetrics) incIdleDisconnectCount() {
	m.IdleDisconnectCount.Add(1)
}

func (m *SessionMetrics) incActionRunCount() {
	m.ActionRunCount.Add(1)
}

func (m *SessionMetrics) incActionRetryCount() {
	m.ActionRetryCount.Add(1)
}

func (m *SessionMetrics) incActionDropCount() {
	m.ActionDropCount.Add(1)
}

func (m *SessionMetrics) incActionSkipCount() {
	m.ActionSkipCount.Add(1)
}

func (m *SessionMetrics) setQueueLength(n int) {
	m.QueueLengthGauge.Store(int64(n))
}
