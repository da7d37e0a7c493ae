package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	purchasesCompleted  atomic.Uint64
	purchasesFailed     atomic.Uint64
	eventsJournaled     atomic.Uint64
	settledVolumeMicros atomic.Int64

	// Gauges
	feedClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPurchase records a completed purchase and its settled volume
// (in millionths of a price unit).
func (m *Metrics) RecordPurchase(volumeMicros int64) {
	m.purchasesCompleted.Add(1)
	m.settledVolumeMicros.Add(volumeMicros)
}

// RecordPurchaseFailed records a rolled-back purchase.
func (m *Metrics) RecordPurchaseFailed() {
	m.purchasesFailed.Add(1)
}

// RecordEventJournaled records one event persisted to the journal.
func (m *Metrics) RecordEventJournaled() {
	m.eventsJournaled.Add(1)
}

// IncrementFeedClients increments connected feed subscribers by 1.
func (m *Metrics) IncrementFeedClients() {
	m.feedClients.Add(1)
}

// DecrementFeedClients decrements connected feed subscribers by 1.
func (m *Metrics) DecrementFeedClients() {
	m.feedClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	PurchasesCompleted  uint64
	PurchasesFailed     uint64
	EventsJournaled     uint64
	SettledVolumeMicros int64
	FeedClients         int32
	Timestamp           time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PurchasesCompleted:  m.purchasesCompleted.Load(),
		PurchasesFailed:     m.purchasesFailed.Load(),
		EventsJournaled:     m.eventsJournaled.Load(),
		SettledVolumeMicros: m.settledVolumeMicros.Load(),
		FeedClients:         m.feedClients.Load(),
		Timestamp:           time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.purchasesCompleted.Store(0)
	m.purchasesFailed.Store(0)
	m.eventsJournaled.Store(0)
	m.settledVolumeMicros.Store(0)
	m.feedClients.Store(0)
}
