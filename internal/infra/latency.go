package infra

import (
	"math"
	"sort"
	"sync"
	"time"

	"quant_go/internal/domain"
)

// LatencyRecorder keeps a rolling window of timed pipeline stages in a
// fixed-capacity circular buffer. Recording is O(1); statistics sort a copy
// of the window on demand, which is fine off the hot path.
type LatencyRecorder struct {
	mu       sync.RWMutex
	samples  []domain.LatencySample
	capacity int
	next     int  // Current position in circular buffer
	full     bool // Whether buffer has wrapped
}

// NewLatencyRecorder creates a recorder with the given window capacity.
func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LatencyRecorder{
		samples:  make([]domain.LatencySample, capacity),
		capacity: capacity,
	}
}

// Record adds one sample, evicting the oldest when the window is full.
func (r *LatencyRecorder) Record(stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = domain.LatencySample{Stage: stage, Duration: d, At: time.Now()}
	r.next = (r.next + 1) % r.capacity
	if !r.full && r.next == 0 {
		r.full = true
	}
}

// Track starts timing a named stage and returns a stop function. The stop
// function records the elapsed duration whether the stage succeeded or not.
func (r *LatencyRecorder) Track(stage string) func() {
	start := time.Now()
	return func() {
		r.Record(stage, time.Since(start))
	}
}

// Len returns the number of samples currently in the window.
func (r *LatencyRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size()
}

func (r *LatencyRecorder) size() int {
	if r.full {
		return r.capacity
	}
	return r.next
}

// Samples returns the window contents in arrival order, oldest first.
func (r *LatencyRecorder) Samples() []domain.LatencySample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.size()
	out := make([]domain.LatencySample, 0, size)
	if r.full {
		out = append(out, r.samples[r.next:]...)
	}
	out = append(out, r.samples[:r.next]...)
	return out
}

// Stats computes aggregates over the samples recorded for one stage.
func (r *LatencyRecorder) Stats(stage string) domain.LatencyStats {
	r.mu.RLock()
	size := r.size()
	values := make([]float64, 0, size)
	for i := 0; i < size; i++ {
		idx := i
		if r.full {
			idx = (r.next + i) % r.capacity
		}
		if r.samples[idx].Stage == stage {
			values = append(values, float64(r.samples[idx].Duration.Nanoseconds())/1e6)
		}
	}
	r.mu.RUnlock()

	stats := domain.LatencyStats{Stage: stage, Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	sort.Float64s(values)

	stats.MinMS = values[0]
	stats.MaxMS = values[len(values)-1]
	stats.MeanMS = sum / float64(len(values))
	stats.P50MS = percentile(values, 0.50)
	stats.P95MS = percentile(values, 0.95)
	stats.P99MS = percentile(values, 0.99)
	return stats
}

// percentile interpolates linearly between the bounding sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
