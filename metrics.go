package workq

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects repository metrics. Collection is observability
// only; no correctness contract depends on it.
type MetricsCollector interface {
	// RecordPublish records one publish attempt.
	RecordPublish(exchange, routingKey string, duration time.Duration, success bool)

	// RecordMessage records one processed delivery.
	RecordMessage(queue string, duration time.Duration, success bool)

	// RecordListenerDeath records a subscriber loop termination.
	RecordListenerDeath(subscriber string)
}

// MetricsStats contains repository statistics.
type MetricsStats struct {
	MessagesPublished  int64
	PublishFailures    int64
	MessagesProcessed  int64
	MessagesFailed     int64
	ListenerDeaths     int64
	AverageProcessTime time.Duration
}

// NoOpMetricsCollector is a no-op implementation of MetricsCollector.
type NoOpMetricsCollector struct{}

// RecordPublish does nothing.
func (n *NoOpMetricsCollector) RecordPublish(exchange, routingKey string, duration time.Duration, success bool) {
}

// RecordMessage does nothing.
func (n *NoOpMetricsCollector) RecordMessage(queue string, duration time.Duration, success bool) {}

// RecordListenerDeath does nothing.
func (n *NoOpMetricsCollector) RecordListenerDeath(subscriber string) {}

// BasicMetricsCollector is an in-memory MetricsCollector backed by atomic
// counters. Safe for use from publisher call paths and subscriber loops
// concurrently.
type BasicMetricsCollector struct {
	published      atomic.Int64
	publishFailed  atomic.Int64
	processed      atomic.Int64
	failed         atomic.Int64
	listenerDeaths atomic.Int64

	mu               sync.Mutex
	totalProcessTime time.Duration
}

// NewBasicMetricsCollector creates an empty collector.
func NewBasicMetricsCollector() *BasicMetricsCollector {
	return &BasicMetricsCollector{}
}

// RecordPublish records one publish attempt.
func (c *BasicMetricsCollector) RecordPublish(exchange, routingKey string, duration time.Duration, success bool) {
	if success {
		c.published.Add(1)
	} else {
		c.publishFailed.Add(1)
	}
}

// RecordMessage records one processed delivery.
func (c *BasicMetricsCollector) RecordMessage(queue string, duration time.Duration, success bool) {
	if success {
		c.processed.Add(1)
	} else {
		c.failed.Add(1)
	}

	c.mu.Lock()
	c.totalProcessTime += duration
	c.mu.Unlock()
}

// RecordListenerDeath records a subscriber loop termination.
func (c *BasicMetricsCollector) RecordListenerDeath(subscriber string) {
	c.listenerDeaths.Add(1)
}

// GetStats returns a snapshot of the collected statistics.
func (c *BasicMetricsCollector) GetStats() MetricsStats {
	stats := MetricsStats{
		MessagesPublished: c.published.Load(),
		PublishFailures:   c.publishFailed.Load(),
		MessagesProcessed: c.processed.Load(),
		MessagesFailed:    c.failed.Load(),
		ListenerDeaths:    c.listenerDeaths.Load(),
	}

	c.mu.Lock()
	total := c.totalProcessTime
	c.mu.Unlock()

	if n := stats.MessagesProcessed + stats.MessagesFailed; n > 0 {
		stats.AverageProcessTime = total / time.Duration(n)
	}
	return stats
}
