package domain

import "time"

// MetricsResult holds the execution-cost estimates for one snapshot.
// One instance is produced per processed update and handed straight to the
// publisher; only a bounded history of results is kept in memory.
type MetricsResult struct {
	Slippage        float64 `json:"slippage"`         // expected slippage, quote currency
	ImpactPermanent float64 `json:"impact_permanent"` // Almgren-Chriss permanent component, asset units
	ImpactTemporary float64 `json:"impact_temporary"` // Almgren-Chriss temporary component, asset units
	ImpactCost      float64 `json:"impact_cost"`      // total impact, quote currency
	MakerProb       float64 `json:"maker_prob"`       // probability of maker execution, 0..1
	FeeRate         float64 `json:"fee_rate"`         // applied fee tier rate
	Fee             float64 `json:"fee"`              // size * rate
	NetCost         float64 `json:"net_cost"`         // slippage + fee + impact

	// Inputs the estimates were computed from.
	OrderSize  float64 `json:"order_size"`
	Volatility float64 `json:"volatility"`
	Spread     float64 `json:"spread"`
	MidPrice   float64 `json:"mid_price"`

	ComputedAt time.Time `json:"computed_at"`
}

// LatencySample is one timed stage of pipeline work.
type LatencySample struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// LatencyStats are aggregates over the recorder's current buffer contents,
// in milliseconds. Computed on demand, never on the hot path.
type LatencyStats struct {
	Stage  string  `json:"stage"`
	Count  int     `json:"count"`
	MinMS  float64 `json:"min_ms"`
	MaxMS  float64 `json:"max_ms"`
	MeanMS float64 `json:"mean_ms"`
	P50MS  float64 `json:"p50_ms"`
	P95MS  float64 `json:"p95_ms"`
	P99MS  float64 `json:"p99_ms"`
}

// MemorySample is one point-in-time reading of process memory usage.
type MemorySample struct {
	HeapAlloc uint64    `json:"heap_alloc"`
	Sys       uint64    `json:"sys"`
	NumGC     uint32    `json:"num_gc"`
	At        time.Time `json:"at"`
}
