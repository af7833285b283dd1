package domain

import (
	"errors"
	"testing"
)

func validParams() *ModelParameters {
	return &ModelParameters{
		SlippageBeta0: 0.01,
		SlippageBeta1: 0.002,
		SlippageBeta2: 0.5,
		MakerBeta0:    2.0,
		MakerBeta1:    -0.01,
		MakerBeta2:    -5.0,
		Gamma:         2e-6,
		Eta:           2e-6,
		HorizonT:      1,
		FeeTiers: []FeeTier{
			{Threshold: 100, Rate: 0.0008},
			{Threshold: 500, Rate: 0.0007},
			{Threshold: 1000, Rate: 0.0006},
		},
	}
}

func TestModelParameters_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelParameters)
		wantOK bool
	}{
		{"valid", func(p *ModelParameters) {}, true},
		{"zero horizon", func(p *ModelParameters) { p.HorizonT = 0 }, false},
		{"negative horizon", func(p *ModelParameters) { p.HorizonT = -1 }, false},
		{"negative gamma", func(p *ModelParameters) { p.Gamma = -1e-6 }, false},
		{"negative eta", func(p *ModelParameters) { p.Eta = -1e-6 }, false},
		{"no tiers", func(p *ModelParameters) { p.FeeTiers = nil }, false},
		{"unsorted tiers", func(p *ModelParameters) {
			p.FeeTiers[0], p.FeeTiers[2] = p.FeeTiers[2], p.FeeTiers[0]
		}, false},
		{"duplicate thresholds", func(p *ModelParameters) {
			p.FeeTiers[1].Threshold = p.FeeTiers[0].Threshold
		}, false},
		{"zero threshold", func(p *ModelParameters) { p.FeeTiers[0].Threshold = 0 }, false},
		{"negative rate", func(p *ModelParameters) { p.FeeTiers[0].Rate = -0.1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(p)

			err := p.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !errors.Is(err, ErrInvalidParameter) {
					t.Errorf("Validate() error should match ErrInvalidParameter, got %v", err)
				}
			}
		})
	}
}

func TestModelParameters_FeeTierFor(t *testing.T) {
	p := validParams()

	tests := []struct {
		size     float64
		wantRate float64
	}{
		{10, 0.0008},
		{100, 0.0008},  // boundary: size equal to threshold stays in the tier
		{100.1, 0.0007},
		{500, 0.0007},
		{999, 0.0006},
		{5000, 0.0006}, // above every threshold applies the last tier
	}

	for _, tt := range tests {
		if got := p.FeeTierFor(tt.size).Rate; got != tt.wantRate {
			t.Errorf("FeeTierFor(%v).Rate = %v, want %v", tt.size, got, tt.wantRate)
		}
	}
}

func TestFeeMonotonicity(t *testing.T) {
	p := validParams()

	// Rates never increase as size crosses ascending thresholds.
	prevRate := p.FeeTierFor(1).Rate
	for size := 1.0; size <= 2000; size += 7 {
		rate := p.FeeTierFor(size).Rate
		if rate > prevRate {
			t.Fatalf("rate increased from %v to %v at size %v", prevRate, rate, size)
		}
		prevRate = rate
	}
}

func TestParameterSet_Roundtrip(t *testing.T) {
	p := validParams()

	ps, err := NewParameterSet("default", p)
	if err != nil {
		t.Fatalf("NewParameterSet failed: %v", err)
	}

	back, err := ps.ToModelParameters()
	if err != nil {
		t.Fatalf("ToModelParameters failed: %v", err)
	}

	if back.SlippageBeta1 != p.SlippageBeta1 || back.Gamma != p.Gamma {
		t.Error("coefficients should survive the roundtrip")
	}
	if len(back.FeeTiers) != len(p.FeeTiers) {
		t.Fatalf("expected %d tiers, got %d", len(p.FeeTiers), len(back.FeeTiers))
	}
	if back.FeeTiers[2].Rate != 0.0006 {
		t.Errorf("tier rate = %v, want 0.0006", back.FeeTiers[2].Rate)
	}
}
