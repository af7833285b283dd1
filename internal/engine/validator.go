package engine

import (
	"quant_go/internal/domain"
)

// Validator turns decoded depth updates into validated snapshots. It keeps
// a single watermark: the sequence of the last accepted snapshot. Updates
// at or below the watermark are rejected, never reordered.
type Validator struct {
	lastSequence int64
	accepted     bool
}

// NewValidator creates a validator with no accepted snapshot yet.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate builds an OrderBookSnapshot from the update or rejects it with a
// SnapshotError. Depth beyond the retained limit is truncated before the
// ordering checks, so only the levels that make it into the snapshot are
// held to the invariants.
func (v *Validator) Validate(u *domain.DepthUpdate) (*domain.OrderBookSnapshot, error) {
	if len(u.Bids) == 0 || len(u.Asks) == 0 {
		return nil, &domain.SnapshotError{Reason: domain.ReasonEmptySide}
	}
	if v.accepted && u.Sequence <= v.lastSequence {
		return nil, &domain.SnapshotError{Reason: domain.ReasonStale}
	}

	bids := truncateLevels(u.Bids)
	asks := truncateLevels(u.Asks)

	for i, lv := range bids {
		if !lv.Price.IsPositive() || !lv.Size.IsPositive() {
			return nil, &domain.SnapshotError{Reason: domain.ReasonNonPositive}
		}
		if i > 0 && lv.Price.GreaterThanOrEqual(bids[i-1].Price) {
			return nil, &domain.SnapshotError{Reason: domain.ReasonBidOrdering}
		}
	}
	for i, lv := range asks {
		if !lv.Price.IsPositive() || !lv.Size.IsPositive() {
			return nil, &domain.SnapshotError{Reason: domain.ReasonNonPositive}
		}
		if i > 0 && lv.Price.LessThanOrEqual(asks[i-1].Price) {
			return nil, &domain.SnapshotError{Reason: domain.ReasonAskOrdering}
		}
	}

	if bids[0].Price.GreaterThanOrEqual(asks[0].Price) {
		return nil, &domain.SnapshotError{Reason: domain.ReasonCrossed}
	}

	snap := &domain.OrderBookSnapshot{
		Exchange:   u.Exchange,
		Symbol:     u.Symbol,
		Sequence:   u.Sequence,
		ExchangeTS: u.ExchangeTS,
		ReceivedAt: u.ReceivedAt,
		Bids:       copyLevels(bids),
		Asks:       copyLevels(asks),
	}

	v.lastSequence = u.Sequence
	v.accepted = true
	return snap, nil
}

// LastSequence returns the watermark of the last accepted snapshot.
func (v *Validator) LastSequence() (int64, bool) {
	return v.lastSequence, v.accepted
}

func truncateLevels(levels []domain.Level) []domain.Level {
	if len(levels) > domain.MaxDepthLevels {
		return levels[:domain.MaxDepthLevels]
	}
	return levels
}

// copyLevels detaches the snapshot from the pooled update's slices.
func copyLevels(levels []domain.Level) []domain.Level {
	out := make([]domain.Level, len(levels))
	copy(out, levels)
	return out
}
