package shapespace

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus or a progress display.
type MetricsCollector interface {
	// RecordLoad is called after each sample load. err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordBlockPair is called after each distance sub-block. pairs is the
	// number of sample pairs it covered.
	RecordBlockPair(metric string, pairs int, duration time.Duration)

	// RecordModel is called after each latent model.
	RecordModel(level, crystal, k int, duration time.Duration)

	// RecordProgress reports done of total units for a stage such as
	// "distance:l1" or "models".
	RecordProgress(stage string, done, total int)

	// RecordRun is called once per top-level run.
	RecordRun(kind string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)            {}
func (NoopMetricsCollector) RecordBlockPair(string, int, time.Duration) {}
func (NoopMetricsCollector) RecordModel(int, int, int, time.Duration)   {}
func (NoopMetricsCollector) RecordProgress(string, int, int)            {}
func (NoopMetricsCollector) RecordRun(string, time.Duration, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	BlockPairs     atomic.Int64
	SamplePairs    atomic.Int64
	ModelCount     atomic.Int64
	ZeroComponent  atomic.Int64
	RunCount       atomic.Int64
	RunErrors      atomic.Int64
	RunTotalNanos  atomic.Int64

	mu       sync.Mutex
	progress map[string][2]int
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordBlockPair implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockPair(_ string, pairs int, _ time.Duration) {
	b.BlockPairs.Add(1)
	b.SamplePairs.Add(int64(pairs))
}

// RecordModel implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModel(_, _, k int, _ time.Duration) {
	b.ModelCount.Add(1)
	if k == 0 {
		b.ZeroComponent.Add(1)
	}
}

// RecordProgress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProgress(stage string, done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.progress == nil {
		b.progress = make(map[string][2]int)
	}
	b.progress[stage] = [2]int{done, total}
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(_ string, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// Progress returns the last reported progress of a stage.
func (b *BasicMetricsCollector) Progress(stage string) (done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.progress[stage]
	return p[0], p[1]
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:     b.LoadCount.Load(),
		LoadErrors:    b.LoadErrors.Load(),
		LoadAvgNanos:  avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		BlockPairs:    b.BlockPairs.Load(),
		SamplePairs:   b.SamplePairs.Load(),
		ModelCount:    b.ModelCount.Load(),
		ZeroComponent: b.ZeroComponent.Load(),
		RunCount:      b.RunCount.Load(),
		RunErrors:     b.RunErrors.Load(),
		RunAvgNanos:   avg(b.RunTotalNanos.Load(), b.RunCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount     int64
	LoadErrors    int64
	LoadAvgNanos  int64
	BlockPairs    int64
	SamplePairs   int64
	ModelCount    int64
	ZeroComponent int64
	RunCount      int64
	RunErrors     int64
	RunAvgNanos   int64
}
