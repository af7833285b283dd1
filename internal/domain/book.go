package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxDepthLevels is the number of price levels retained per book side.
// Deeper levels are truncated before validation.
const MaxDepthLevels = 50

// Level is a single price level (price, size) in the order book.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// DepthUpdate is a decoded depth message straight off the wire.
// Levels are parsed into decimals but not yet validated; the snapshot
// validator turns an update into an OrderBookSnapshot or rejects it.
type DepthUpdate struct {
	Exchange   string    // endpoint name that produced the message
	Symbol     string    // instrument identifier as subscribed
	Sequence   int64     // exchange sequence id, or exchange timestamp (ms) when the feed has no sequence
	ExchangeTS int64     // exchange timestamp in ms (0 when the feed omits it)
	Bids       []Level   // best first, as sent
	Asks       []Level   // best first, as sent
	ReceivedAt time.Time // local receive time
}

// Reset clears the update for reuse, keeping slice capacity.
func (u *DepthUpdate) Reset() {
	u.Exchange = ""
	u.Symbol = ""
	u.Sequence = 0
	u.ExchangeTS = 0
	u.Bids = u.Bids[:0]
	u.Asks = u.Asks[:0]
	u.ReceivedAt = time.Time{}
}

// OrderBookSnapshot is a validated view of the book at one instant.
// Bids are strictly decreasing in price, asks strictly increasing, and the
// best bid is below the best ask. Snapshots are immutable once constructed;
// only the latest one is retained by the pipeline.
type OrderBookSnapshot struct {
	Exchange   string    `json:"exchange"`
	Symbol     string    `json:"symbol"`
	Sequence   int64     `json:"sequence"`
	ExchangeTS int64     `json:"exchange_ts,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Bids       []Level   `json:"bids"`
	Asks       []Level   `json:"asks"`
}

// BestBid returns the highest bid price.
func (s *OrderBookSnapshot) BestBid() decimal.Decimal {
	if len(s.Bids) == 0 {
		return decimal.Zero
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask price.
func (s *OrderBookSnapshot) BestAsk() decimal.Decimal {
	if len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.Asks[0].Price
}

// MidPrice returns (best bid + best ask) / 2.
func (s *OrderBookSnapshot) MidPrice() decimal.Decimal {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.BestBid().Add(s.BestAsk()).Div(decimal.NewFromInt(2))
}

// Spread returns best ask - best bid.
func (s *OrderBookSnapshot) Spread() decimal.Decimal {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return decimal.Zero
	}
	return s.BestAsk().Sub(s.BestBid())
}

// BidVolume sums the sizes of the top n bid levels (all levels if n <= 0
// or n exceeds the depth).
func (s *OrderBookSnapshot) BidVolume(n int) decimal.Decimal {
	return sumSizes(s.Bids, n)
}

// AskVolume sums the sizes of the top n ask levels.
func (s *OrderBookSnapshot) AskVolume(n int) decimal.Decimal {
	return sumSizes(s.Asks, n)
}

func sumSizes(levels []Level, n int) decimal.Decimal {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	total := decimal.Zero
	for _, lv := range levels[:n] {
		total = total.Add(lv.Size)
	}
	return total
}
