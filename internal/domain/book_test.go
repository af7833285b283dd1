package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func level(price, size string) Level {
	return Level{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestOrderBookSnapshot_Derived(t *testing.T) {
	snap := OrderBookSnapshot{
		Bids: []Level{level("100.00", "1.5"), level("99.99", "2.0")},
		Asks: []Level{level("100.02", "0.5"), level("100.03", "3.0")},
	}

	if got := snap.BestBid().String(); got != "100" {
		t.Errorf("BestBid = %s, want 100", got)
	}
	if got := snap.BestAsk().String(); got != "100.02" {
		t.Errorf("BestAsk = %s, want 100.02", got)
	}
	if got := snap.MidPrice().String(); got != "100.01" {
		t.Errorf("MidPrice = %s, want 100.01", got)
	}
	if got := snap.Spread().String(); got != "0.02" {
		t.Errorf("Spread = %s, want 0.02", got)
	}
}

func TestOrderBookSnapshot_EmptySides(t *testing.T) {
	snap := OrderBookSnapshot{}

	if !snap.BestBid().IsZero() || !snap.BestAsk().IsZero() {
		t.Error("empty book should report zero best prices")
	}
	if !snap.MidPrice().IsZero() || !snap.Spread().IsZero() {
		t.Error("empty book should report zero mid and spread")
	}
}

func TestOrderBookSnapshot_Volumes(t *testing.T) {
	snap := OrderBookSnapshot{
		Bids: []Level{level("100.00", "1"), level("99.99", "2"), level("99.98", "3")},
		Asks: []Level{level("100.02", "4"), level("100.03", "5")},
	}

	if got := snap.BidVolume(2).String(); got != "3" {
		t.Errorf("BidVolume(2) = %s, want 3", got)
	}
	// n beyond depth sums everything
	if got := snap.BidVolume(10).String(); got != "6" {
		t.Errorf("BidVolume(10) = %s, want 6", got)
	}
	if got := snap.AskVolume(0).String(); got != "9" {
		t.Errorf("AskVolume(0) = %s, want 9", got)
	}
}

func TestDepthUpdate_Reset(t *testing.T) {
	u := DepthUpdate{
		Exchange: "okx-primary",
		Symbol:   "BTC-USDT-SWAP",
		Sequence: 42,
		Bids:     []Level{level("1", "1")},
		Asks:     []Level{level("2", "1")},
	}
	u.Reset()

	if u.Exchange != "" || u.Symbol != "" || u.Sequence != 0 {
		t.Error("Reset should zero scalar fields")
	}
	if len(u.Bids) != 0 || len(u.Asks) != 0 {
		t.Error("Reset should empty level slices")
	}
	if cap(u.Bids) == 0 {
		t.Error("Reset should keep slice capacity for reuse")
	}
}
