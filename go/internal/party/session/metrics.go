package session

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines the interface for collecting session metrics
type MetricsCollector interface {
	RecordEvent(eventType string, accepted bool)
	RecordSpin(kind string, success bool, duration time.Duration)
	RecordHostChange(hostID string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEvent(eventType string, accepted bool)                  {}
func (n *NoOpMetricsCollector) RecordSpin(kind string, success bool, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordHostChange(hostID string)                               {}

// Counters implements MetricsCollector with in-memory counters
type Counters struct {
	eventsAccepted atomic.Uint64
	eventsDropped  atomic.Uint64
	spinsSucceeded atomic.Uint64
	spinsFailed    atomic.Uint64
	hostChanges    atomic.Uint64
	lastSpinNanos  atomic.Int64
}

func (c *Counters) RecordEvent(eventType string, accepted bool) {
	if accepted {
		c.eventsAccepted.Add(1)
	} else {
		c.eventsDropped.Add(1)
	}
}

func (c *Counters) RecordSpin(kind string, success bool, duration time.Duration) {
	if success {
		c.spinsSucceeded.Add(1)
	} else {
		c.spinsFailed.Add(1)
	}
	c.lastSpinNanos.Store(int64(duration))
}

func (c *Counters) RecordHostChange(hostID string) {
	c.hostChanges.Add(1)
}

// Stats returns a copy of the counters
func (c *Counters) Stats() map[string]interface{} {
	return map[string]interface{}{
		"events_accepted": c.eventsAccepted.Load(),
		"events_dropped":  c.eventsDropped.Load(),
		"spins_succeeded": c.spinsSucceeded.Load(),
		"spins_failed":    c.spinsFailed.Load(),
		"host_changes":    c.hostChanges.Load(),
		"last_spin":       time.Duration(c.lastSpinNanos.Load()).String(),
	}
}
