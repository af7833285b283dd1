package infra

import (
	"context"
	"runtime"
	"sync"
	"time"

	"quant_go/internal/domain"
)

// MemoryRecorder keeps a small rolling window of process memory readings,
// separate from the latency window and with its own capacity.
type MemoryRecorder struct {
	mu       sync.RWMutex
	samples  []domain.MemorySample
	capacity int
	next     int
	full     bool
}

// NewMemoryRecorder creates a recorder with the given window capacity.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryRecorder{
		samples:  make([]domain.MemorySample, capacity),
		capacity: capacity,
	}
}

// Record adds one sample, evicting the oldest when the window is full.
func (r *MemoryRecorder) Record(s domain.MemorySample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = s
	r.next = (r.next + 1) % r.capacity
	if !r.full && r.next == 0 {
		r.full = true
	}
}

// Sample reads runtime.MemStats and records the reading.
func (r *MemoryRecorder) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.Record(domain.MemorySample{
		HeapAlloc: ms.HeapAlloc,
		Sys:       ms.Sys,
		NumGC:     ms.NumGC,
		At:        time.Now(),
	})
}

// Len returns the number of samples currently in the window.
func (r *MemoryRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.capacity
	}
	return r.next
}

// Samples returns the window contents in arrival order, oldest first.
func (r *MemoryRecorder) Samples() []domain.MemorySample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = r.capacity
	}
	out := make([]domain.MemorySample, 0, size)
	if r.full {
		out = append(out, r.samples[r.next:]...)
	}
	out = append(out, r.samples[:r.next]...)
	return out
}

// Run samples on a fixed interval until the context is cancelled. Meant to
// run in its own goroutine; it never touches pipeline state.
func (r *MemoryRecorder) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.Sample()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sample()
		}
	}
}
