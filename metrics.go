package atomgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordIntern is called after each intern operation.
	// duration is the total time taken, err is nil if successful.
	RecordIntern(duration time.Duration, err error)

	// RecordSweepSlice is called after each incremental sweep slice.
	// visited is the number of entries examined, removed the number of
	// dead entries dropped.
	RecordSweepSlice(visited, removed int, duration time.Duration)

	// RecordSnapshot is called after each snapshot write or load.
	// atoms is the number of records involved.
	RecordSnapshot(atoms int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIntern(time.Duration, error)        {}
func (NoopMetricsCollector) RecordSweepSlice(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSnapshot(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InternCount      atomic.Int64
	InternErrors     atomic.Int64
	InternTotalNanos atomic.Int64
	SweepSlices      atomic.Int64
	SweepVisited     atomic.Int64
	SweepRemoved     atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
}

// RecordIntern implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIntern(duration time.Duration, err error) {
	b.InternCount.Add(1)
	b.InternTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InternErrors.Add(1)
	}
}

// RecordSweepSlice implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSweepSlice(visited, removed int, duration time.Duration) {
	b.SweepSlices.Add(1)
	b.SweepVisited.Add(int64(visited))
	b.SweepRemoved.Add(int64(removed))
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(atoms int, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InternCount:     b.InternCount.Load(),
		InternErrors:    b.InternErrors.Load(),
		InternAvgNanos:  b.getAvgInternNanos(),
		SweepSlices:     b.SweepSlices.Load(),
		SweepVisited:    b.SweepVisited.Load(),
		SweepRemoved:    b.SweepRemoved.Load(),
		SnapshotCount:   b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgInternNanos() int64 {
	count := b.InternCount.Load()
	if count == 0 {
		return 0
	}
	return b.InternTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InternCount     int64
	InternErrors    int64
	InternAvgNanos  int64
	SweepSlices     int64
	SweepVisited    int64
	SweepRemoved    int64
	SnapshotCount   int64
	SnapshotErrors  int64
}
