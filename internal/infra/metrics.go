package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	updatesProcessed  atomic.Uint64
	droppedMalformed  atomic.Uint64
	droppedInvalid    atomic.Uint64
	staleRejects      atomic.Uint64
	reconnects        atomic.Uint64
	endpointSwitches  atomic.Uint64
	publishes         atomic.Uint64
	publishesCoalesed atomic.Uint64
	publishErrors     atomic.Uint64
	analyzerCalls     atomic.Uint64
	analyzerFailures  atomic.Uint64

	// Gauges
	connected   atomic.Int32 // 1 = connected, 0 = not
	circuitOpen atomic.Int32 // 1 = open, 0 = closed
}

// RecordUpdate records one fully processed depth update.
func (m *Metrics) RecordUpdate() { m.updatesProcessed.Add(1) }

// RecordMalformed records a dropped message that failed decoding.
func (m *Metrics) RecordMalformed() { m.droppedMalformed.Add(1) }

// RecordInvalid records a decoded message rejected by the validator.
func (m *Metrics) RecordInvalid() { m.droppedInvalid.Add(1) }

// RecordStale records a validator rejection for an out-of-order sequence.
func (m *Metrics) RecordStale() {
	m.staleRejects.Add(1)
	m.droppedInvalid.Add(1)
}

// RecordReconnect records one reconnect attempt.
func (m *Metrics) RecordReconnect() { m.reconnects.Add(1) }

// RecordEndpointSwitch records a fallback to the next endpoint.
func (m *Metrics) RecordEndpointSwitch() { m.endpointSwitches.Add(1) }

// RecordPublish records a successful artifact write.
func (m *Metrics) RecordPublish() { m.publishes.Add(1) }

// RecordCoalesced records a publish absorbed by the minimum interval.
func (m *Metrics) RecordCoalesced() { m.publishesCoalesed.Add(1) }

// RecordPublishError records a failed staging/rename cycle.
func (m *Metrics) RecordPublishError() { m.publishErrors.Add(1) }

// RecordAnalyzerCall records an outbound analysis request.
func (m *Metrics) RecordAnalyzerCall() { m.analyzerCalls.Add(1) }

// RecordAnalyzerFailure records a degraded analysis call.
func (m *Metrics) RecordAnalyzerFailure() { m.analyzerFailures.Add(1) }

// SetConnected sets the feed connection gauge.
func (m *Metrics) SetConnected(up bool) {
	if up {
		m.connected.Store(1)
	} else {
		m.connected.Store(0)
	}
}

// SetCircuitState sets the analyzer circuit breaker state (true = open).
func (m *Metrics) SetCircuitState(open bool) {
	if open {
		m.circuitOpen.Store(1)
	} else {
		m.circuitOpen.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	UpdatesProcessed   uint64 `json:"updates_processed"`
	DroppedMalformed   uint64 `json:"dropped_malformed"`
	DroppedInvalid     uint64 `json:"dropped_invalid"`
	StaleRejects       uint64 `json:"stale_rejects"`
	Reconnects         uint64 `json:"reconnects"`
	EndpointSwitches   uint64 `json:"endpoint_switches"`
	Publishes          uint64 `json:"publishes"`
	PublishesCoalesced uint64 `json:"publishes_coalesced"`
	PublishErrors      uint64 `json:"publish_errors"`
	AnalyzerCalls      uint64 `json:"analyzer_calls"`
	AnalyzerFailures   uint64 `json:"analyzer_failures"`
	Connected          bool   `json:"connected"`
	CircuitOpen        bool   `json:"circuit_open"`

	Timestamp time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UpdatesProcessed:   m.updatesProcessed.Load(),
		DroppedMalformed:   m.droppedMalformed.Load(),
		DroppedInvalid:     m.droppedInvalid.Load(),
		StaleRejects:       m.staleRejects.Load(),
		Reconnects:         m.reconnects.Load(),
		EndpointSwitches:   m.endpointSwitches.Load(),
		Publishes:          m.publishes.Load(),
		PublishesCoalesced: m.publishesCoalesed.Load(),
		PublishErrors:      m.publishErrors.Load(),
		AnalyzerCalls:      m.analyzerCalls.Load(),
		AnalyzerFailures:   m.analyzerFailures.Load(),
		Connected:          m.connected.Load() == 1,
		CircuitOpen:        m.circuitOpen.Load() == 1,
		Timestamp:          time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.updatesProcessed.Store(0)
	m.droppedMalformed.Store(0)
	m.droppedInvalid.Store(0)
	m.staleRejects.Store(0)
	m.reconnects.Store(0)
	m.endpointSwitches.Store(0)
	m.publishes.Store(0)
	m.publishesCoalesed.Store(0)
	m.publishErrors.Store(0)
	m.analyzerCalls.Store(0)
	m.analyzerFailures.Store(0)
	m.connected.Store(0)
	m.circuitOpen.Store(0)
}
