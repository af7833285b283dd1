package engine

import (
	"math"
	"time"

	"quant_go/internal/domain"
)

// Estimator computes the execution-cost estimates for one snapshot. It owns
// the immutable model parameters for the process lifetime and carries no
// per-call state, so every method is safe for reuse across updates.
type Estimator struct {
	params *domain.ModelParameters
}

// NewEstimator validates the parameters once and wraps them.
func NewEstimator(params *domain.ModelParameters) (*Estimator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{params: params}, nil
}

// Estimate runs the full pipeline over one snapshot: slippage, market
// impact, maker probability, fee, and the combined net cost. Order size is
// in asset units; volatility is supplied externally.
func (e *Estimator) Estimate(snap *domain.OrderBookSnapshot, size, volatility float64) (*domain.MetricsResult, error) {
	if e.params.HorizonT <= 0 {
		return nil, &domain.ParameterError{Name: "horizon_t", Reason: "execution horizon must be > 0"}
	}

	mid := snap.MidPrice().InexactFloat64()
	spread := snap.Spread().InexactFloat64()

	slippage := e.Slippage(size, volatility)
	permanent, temporary, impactCost := e.MarketImpact(size, mid)
	makerProb := e.MakerProbability(size, spread)
	tier := e.params.FeeTierFor(size)
	fee := size * tier.Rate

	return &domain.MetricsResult{
		Slippage:        slippage,
		ImpactPermanent: permanent,
		ImpactTemporary: temporary,
		ImpactCost:      impactCost,
		MakerProb:       makerProb,
		FeeRate:         tier.Rate,
		Fee:             fee,
		NetCost:         slippage + fee + impactCost,
		OrderSize:       size,
		Volatility:      volatility,
		Spread:          spread,
		MidPrice:        mid,
		ComputedAt:      time.Now(),
	}, nil
}

// Slippage evaluates the fitted linear model over size and volatility.
func (e *Estimator) Slippage(size, volatility float64) float64 {
	p := e.params
	return p.SlippageBeta0 + p.SlippageBeta1*size + p.SlippageBeta2*volatility
}

// MarketImpact evaluates the Almgren-Chriss closed form. Q is the order
// size in asset units; the cost is the combined impact scaled to quote
// currency by the mid price.
func (e *Estimator) MarketImpact(q, mid float64) (permanent, temporary, cost float64) {
	p := e.params
	permanent = p.Gamma * q
	temporary = p.Eta * q / p.HorizonT
	cost = (permanent + temporary) * mid
	return permanent, temporary, cost
}

// MakerProbability evaluates the fitted logistic model over size and spread.
func (e *Estimator) MakerProbability(size, spread float64) float64 {
	p := e.params
	x := p.MakerBeta0 + p.MakerBeta1*size + p.MakerBeta2*spread
	return 1 / (1 + math.Exp(-x))
}
