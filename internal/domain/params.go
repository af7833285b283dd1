package domain

import "sort"

// FeeTier is one volume bracket of the fee schedule. An order whose size is
// at most Threshold pays Rate; sizes above every threshold pay the last
// tier's rate.
type FeeTier struct {
	Threshold float64 `json:"threshold"`
	Rate      float64 `json:"rate"`
}

// ModelParameters are the pre-fit model coefficients the estimation engine
// runs on. They are loaded once at startup, validated, and never mutated
// afterwards.
type ModelParameters struct {
	// Linear slippage model: slippage = B0 + B1*size + B2*volatility.
	SlippageBeta0 float64 `json:"slippage_beta0"`
	SlippageBeta1 float64 `json:"slippage_beta1"`
	SlippageBeta2 float64 `json:"slippage_beta2"`

	// Logistic maker/taker model: p = 1 / (1 + exp(-(B0 + B1*size + B2*spread))).
	MakerBeta0 float64 `json:"maker_beta0"`
	MakerBeta1 float64 `json:"maker_beta1"`
	MakerBeta2 float64 `json:"maker_beta2"`

	// Almgren-Chriss impact: permanent = Gamma*Q, temporary = Eta*Q/T.
	Gamma    float64 `json:"gamma"`
	Eta      float64 `json:"eta"`
	HorizonT float64 `json:"horizon_t"`

	// Fee schedule, ascending by threshold.
	FeeTiers []FeeTier `json:"fee_tiers"`
}

// Validate checks the parameter set for configuration defects. Any failure
// is a startup-stopping ParameterError.
func (p *ModelParameters) Validate() error {
	if p.HorizonT <= 0 {
		return &ParameterError{Name: "horizon_t", Reason: "execution horizon must be > 0"}
	}
	if p.Gamma < 0 {
		return &ParameterError{Name: "gamma", Reason: "permanent impact coefficient must be >= 0"}
	}
	if p.Eta < 0 {
		return &ParameterError{Name: "eta", Reason: "temporary impact coefficient must be >= 0"}
	}
	if len(p.FeeTiers) == 0 {
		return &ParameterError{Name: "fee_tiers", Reason: "at least one fee tier is required"}
	}
	if !sort.SliceIsSorted(p.FeeTiers, func(i, j int) bool {
		return p.FeeTiers[i].Threshold < p.FeeTiers[j].Threshold
	}) {
		return &ParameterError{Name: "fee_tiers", Reason: "tier thresholds must be ascending"}
	}
	for i, tier := range p.FeeTiers {
		if tier.Threshold <= 0 {
			return &ParameterError{Name: "fee_tiers", Reason: "tier thresholds must be > 0"}
		}
		if tier.Rate < 0 {
			return &ParameterError{Name: "fee_tiers", Reason: "tier rates must be >= 0"}
		}
		if i > 0 && tier.Threshold == p.FeeTiers[i-1].Threshold {
			return &ParameterError{Name: "fee_tiers", Reason: "tier thresholds must be distinct"}
		}
	}
	return nil
}

// FeeTierFor selects the applicable tier for an order size: the first tier
// (ascending thresholds) the size does not exceed, or the last tier when the
// size is above every threshold.
func (p *ModelParameters) FeeTierFor(size float64) FeeTier {
	for _, tier := range p.FeeTiers {
		if size <= tier.Threshold {
			return tier
		}
	}
	return p.FeeTiers[len(p.FeeTiers)-1]
}
