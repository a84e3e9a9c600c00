package synckit

import "time"

// Outcomes reported through MetricsCollector.RecordOperation.
const (
	OutcomeQueued   = "queued"
	OutcomeSent     = "sent"
	OutcomeReplayed = "replayed"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
	OutcomeNotFound = "not_found"
)

// MetricsCollector provides hooks for collecting sync engine metrics
type MetricsCollector interface {
	// RecordDrainDuration records how long a drain pass took for a domain
	RecordDrainDuration(domain string, duration time.Duration)

	// RecordOperation records the outcome of a single mutation or replay
	RecordOperation(domain string, opType string, outcome string)

	// RecordQueueDepth records the number of pending operations for a domain
	RecordQueueDepth(domain string, depth int)

	// RecordRollback records an optimistic mutation that was undone
	RecordRollback(domain string, opType string)
}

// NoOpMetricsCollector is a default implementation that does nothing
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordDrainDuration(domain string, duration time.Duration)    {}
func (n *NoOpMetricsCollector) RecordOperation(domain string, opType string, outcome string) {}
func (n *NoOpMetricsCollector) RecordQueueDepth(domain string, depth int)                    {}
func (n *NoOpMetricsCollector) RecordRollback(domain string, opType string)                  {}
