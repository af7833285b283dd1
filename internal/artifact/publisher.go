package artifact

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/infra"

	"github.com/google/uuid"
)

// Publisher makes the latest record visible to other processes. Writes are
// staged to a temp file and atomically renamed onto the published path, so
// a concurrent reader only ever sees a complete document. Publishes faster
// than the minimum interval are coalesced: the newest pending record
// replaces any prior pending one, nothing queues.
type Publisher struct {
	path        string
	minInterval time.Duration
	metrics     *infra.Metrics
	log         *slog.Logger

	mu        sync.Mutex
	lastWrite time.Time
	pending   *Record
}

// NewPublisher creates a publisher for the given artifact path.
func NewPublisher(path string, minInterval time.Duration, metrics *infra.Metrics, log *slog.Logger) *Publisher {
	return &Publisher{
		path:        path,
		minInterval: minInterval,
		metrics:     metrics,
		log:         log.With(slog.String("component", "publisher")),
	}
}

// Publish writes the record, or holds it as pending when the minimum
// interval has not elapsed since the last write. A failed write returns a
// PublishError and leaves the previously published artifact intact; the
// record stays pending for the next cycle.
func (p *Publisher) Publish(rec *Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.lastWrite.IsZero() && now.Sub(p.lastWrite) < p.minInterval {
		p.pending = rec
		if p.metrics != nil {
			p.metrics.RecordCoalesced()
		}
		return nil
	}
	return p.write(rec, now)
}

// Flush writes any pending record immediately, ignoring the interval.
// Called on shutdown so the final update survives.
func (p *Publisher) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return nil
	}
	return p.write(p.pending, time.Now())
}

// write stages and atomically replaces. Caller holds the lock.
func (p *Publisher) write(rec *Record, now time.Time) error {
	rec.PublishID = uuid.NewString()
	rec.PublishedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return p.fail(rec, err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return p.fail(rec, err)
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return p.fail(rec, err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return p.fail(rec, err)
	}

	p.lastWrite = now
	p.pending = nil
	if p.metrics != nil {
		p.metrics.RecordPublish()
	}
	return nil
}

func (p *Publisher) fail(rec *Record, err error) error {
	// Keep the record pending; the next cycle retries with newer data.
	p.pending = rec
	if p.metrics != nil {
		p.metrics.RecordPublishError()
	}
	p.log.Warn("artifact publish failed", slog.Any("error", err))
	return &domain.PublishError{Path: p.path, Err: err}
}

// Path returns the published artifact location.
func (p *Publisher) Path() string {
	return p.path
}
