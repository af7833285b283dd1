package domain

import (
	"encoding/json"
	"time"
)

// ParameterSet is the persisted form of a named pre-fit coefficient set.
// Fee tiers are stored as a JSON column to keep the schema flat.
type ParameterSet struct {
	Name string `gorm:"primaryKey" json:"name"`

	SlippageBeta0 float64 `json:"slippage_beta0"`
	SlippageBeta1 float64 `json:"slippage_beta1"`
	SlippageBeta2 float64 `json:"slippage_beta2"`

	MakerBeta0 float64 `json:"maker_beta0"`
	MakerBeta1 float64 `json:"maker_beta1"`
	MakerBeta2 float64 `json:"maker_beta2"`

	Gamma    float64 `json:"gamma"`
	Eta      float64 `json:"eta"`
	HorizonT float64 `json:"horizon_t"`

	FeeTiersJSON string `json:"fee_tiers_json"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewParameterSet serializes ModelParameters into a storable row.
func NewParameterSet(name string, p *ModelParameters) (*ParameterSet, error) {
	tiers, err := json.Marshal(p.FeeTiers)
	if err != nil {
		return nil, err
	}
	return &ParameterSet{
		Name:          name,
		SlippageBeta0: p.SlippageBeta0,
		SlippageBeta1: p.SlippageBeta1,
		SlippageBeta2: p.SlippageBeta2,
		MakerBeta0:    p.MakerBeta0,
		MakerBeta1:    p.MakerBeta1,
		MakerBeta2:    p.MakerBeta2,
		Gamma:         p.Gamma,
		Eta:           p.Eta,
		HorizonT:      p.HorizonT,
		FeeTiersJSON:  string(tiers),
	}, nil
}

// ToModelParameters rebuilds the immutable parameter value from the row.
// The result is validated before use.
func (ps *ParameterSet) ToModelParameters() (*ModelParameters, error) {
	var tiers []FeeTier
	if ps.FeeTiersJSON != "" {
		if err := json.Unmarshal([]byte(ps.FeeTiersJSON), &tiers); err != nil {
			return nil, &ParameterError{Name: "fee_tiers", Reason: "stored tiers are not valid JSON"}
		}
	}
	p := &ModelParameters{
		SlippageBeta0: ps.SlippageBeta0,
		SlippageBeta1: ps.SlippageBeta1,
		SlippageBeta2: ps.SlippageBeta2,
		MakerBeta0:    ps.MakerBeta0,
		MakerBeta1:    ps.MakerBeta1,
		MakerBeta2:    ps.MakerBeta2,
		Gamma:         ps.Gamma,
		Eta:           ps.Eta,
		HorizonT:      ps.HorizonT,
		FeeTiers:      tiers,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
