package engine

import (
	"errors"
	"log/slog"
	"sync"

	"quant_go/internal/artifact"
	"quant_go/internal/domain"
	"quant_go/internal/infra"
)

const metricsHistoryCap = 100

// Processor is the single-threaded pipeline core. One depth update is fully
// validated, estimated, recorded and published before the next one is
// handled; the mutex exists only for external reads.
type Processor struct {
	validator *Validator
	estimator *Estimator
	recorder  *infra.LatencyRecorder
	publisher *artifact.Publisher
	metrics   *infra.Metrics
	log       *slog.Logger

	orderSize  float64
	volatility float64

	connState func() domain.ConnectionState

	mu      sync.RWMutex // Used only for external reads
	latest  *domain.OrderBookSnapshot
	result  *domain.MetricsResult
	history []domain.MetricsResult
}

// NewProcessor wires the pipeline stages together. connState reports the
// feed client's current state for inclusion in the published record; it may
// be nil.
func NewProcessor(
	estimator *Estimator,
	recorder *infra.LatencyRecorder,
	publisher *artifact.Publisher,
	metrics *infra.Metrics,
	log *slog.Logger,
	orderSize, volatility float64,
	connState func() domain.ConnectionState,
) *Processor {
	return &Processor{
		validator:  NewValidator(),
		estimator:  estimator,
		recorder:   recorder,
		publisher:  publisher,
		metrics:    metrics,
		log:        log.With(slog.String("component", "processor")),
		orderSize:  orderSize,
		volatility: volatility,
		connState:  connState,
		history:    make([]domain.MetricsResult, 0, metricsHistoryCap),
	}
}

// Handle runs one update through the pipeline. Invalid updates are dropped
// and counted; a failed publish leaves the previous artifact intact. The
// estimate stage duration is recorded on both success and failure.
func (p *Processor) Handle(u *domain.DepthUpdate) {
	stop := p.recorder.Track("estimate")
	snap, res, err := p.estimateOne(u)
	stop()

	if err != nil {
		var se *domain.SnapshotError
		switch {
		case errors.As(err, &se) && se.Reason == domain.ReasonStale:
			p.metrics.RecordStale()
		case errors.Is(err, domain.ErrInvalidSnapshot):
			p.metrics.RecordInvalid()
		default:
			p.metrics.RecordInvalid()
		}
		p.log.Debug("update dropped", slog.Any("error", err), slog.Int64("sequence", u.Sequence))
		return
	}

	p.mu.Lock()
	p.latest = snap
	p.result = res
	if len(p.history) == metricsHistoryCap {
		p.history = p.history[1:]
	}
	p.history = append(p.history, *res)
	p.mu.Unlock()

	p.metrics.RecordUpdate()

	state := domain.StateConnected
	if p.connState != nil {
		state = p.connState()
	}

	// Publish errors are retried on the next cycle; nothing propagates.
	_ = p.publisher.Publish(&artifact.Record{
		ConnectionState: state.String(),
		Snapshot:        snap,
		Metrics:         res,
		Latency:         p.recorder.Stats("estimate"),
		Counters:        p.metrics.Snapshot(),
	})
}

func (p *Processor) estimateOne(u *domain.DepthUpdate) (*domain.OrderBookSnapshot, *domain.MetricsResult, error) {
	snap, err := p.validator.Validate(u)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.estimator.Estimate(snap, p.orderSize, p.volatility)
	if err != nil {
		return nil, nil, err
	}
	return snap, res, nil
}

// Latest returns copies of the most recent snapshot and metrics (external read).
func (p *Processor) Latest() (*domain.OrderBookSnapshot, *domain.MetricsResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.latest == nil {
		return nil, nil, false
	}
	snap := *p.latest
	res := *p.result
	return &snap, &res, true
}

// History returns the bounded window of recent metrics, oldest first.
func (p *Processor) History() []domain.MetricsResult {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.MetricsResult, len(p.history))
	copy(out, p.history)
	return out
}
