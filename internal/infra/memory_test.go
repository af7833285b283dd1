package infra

import (
	"context"
	"testing"
	"time"

	"quant_go/internal/domain"
)

func TestMemoryRecorder_WindowEviction(t *testing.T) {
	r := NewMemoryRecorder(4)

	for i := 1; i <= 7; i++ {
		r.Record(domain.MemorySample{HeapAlloc: uint64(i)})
	}

	if r.Len() != 4 {
		t.Fatalf("Len = %d, want capacity 4", r.Len())
	}
	got := r.Samples()
	for i, want := range []uint64{4, 5, 6, 7} {
		if got[i].HeapAlloc != want {
			t.Errorf("samples[%d].HeapAlloc = %d, want %d", i, got[i].HeapAlloc, want)
		}
	}
}

func TestMemoryRecorder_PartialWindow(t *testing.T) {
	r := NewMemoryRecorder(10)
	r.Record(domain.MemorySample{HeapAlloc: 1})
	r.Record(domain.MemorySample{HeapAlloc: 2})

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	got := r.Samples()
	if got[0].HeapAlloc != 1 || got[1].HeapAlloc != 2 {
		t.Errorf("samples = %v", got)
	}
}

func TestMemoryRecorder_Sample(t *testing.T) {
	r := NewMemoryRecorder(2)
	r.Sample()

	got := r.Samples()
	if len(got) != 1 {
		t.Fatalf("Len = %d, want 1", len(got))
	}
	if got[0].HeapAlloc == 0 || got[0].At.IsZero() {
		t.Errorf("sample not populated: %+v", got[0])
	}
}

func TestMemoryRecorder_RunUntilCancelled(t *testing.T) {
	r := NewMemoryRecorder(8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if r.Len() < 2 {
		t.Errorf("Len = %d, want the initial sample plus ticks", r.Len())
	}
}
