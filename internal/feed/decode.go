package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quant_go/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrUnrecognized marks a message that is not a depth update (subscription
// acks, heartbeats, other channels). These are ignored, not counted as
// protocol errors.
var ErrUnrecognized = errors.New("unrecognized message")

// wireValue accepts a JSON number or a quoted numeric string; exchanges are
// split on which they send for prices and sizes.
type wireValue string

func (v *wireValue) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = wireValue(s)
		return nil
	}
	*v = wireValue(b)
	return nil
}

// DecodeDepth decodes one raw frame in the endpoint's format into u. A nil
// return means u is a well-formed depth update; ErrUnrecognized means the
// frame should be ignored; anything else is a malformed frame the caller
// counts.
func DecodeDepth(format, endpoint, symbol string, data []byte, u *domain.DepthUpdate) error {
	var err error
	switch format {
	case "okx":
		err = decodeOKX(data, u)
	case "binance":
		err = decodeBinance(data, u)
	default:
		err = decodeGeneric(data, u)
	}
	if err != nil {
		return err
	}

	u.Exchange = endpoint
	if u.Symbol == "" {
		u.Symbol = symbol
	}
	u.ReceivedAt = time.Now()
	if u.Sequence == 0 {
		if u.ExchangeTS != 0 {
			u.Sequence = u.ExchangeTS
		} else {
			u.Sequence = u.ReceivedAt.UnixMilli()
		}
	}

	if len(u.Bids) == 0 && len(u.Asks) == 0 {
		return fmt.Errorf("depth message carries no levels")
	}
	return nil
}

type okxEnvelope struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		Bids  [][]wireValue `json:"bids"`
		Asks  [][]wireValue `json:"asks"`
		TS    wireValue     `json:"ts"`
		SeqID int64         `json:"seqId"`
	} `json:"data"`
}

func decodeOKX(data []byte, u *domain.DepthUpdate) error {
	var env okxEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("okx frame: %w", err)
	}
	// Subscription acks and error events carry an event field.
	if env.Event != "" {
		return ErrUnrecognized
	}
	if env.Arg.Channel != "books" || len(env.Data) == 0 {
		return ErrUnrecognized
	}

	book := env.Data[0]
	if err := parseLevels(book.Bids, &u.Bids); err != nil {
		return fmt.Errorf("okx bids: %w", err)
	}
	if err := parseLevels(book.Asks, &u.Asks); err != nil {
		return fmt.Errorf("okx asks: %w", err)
	}

	u.Symbol = env.Arg.InstID
	u.ExchangeTS = parseInt(string(book.TS))
	u.Sequence = book.SeqID
	return nil
}

type binanceEnvelope struct {
	Event        string          `json:"e"`
	EventTime    int64           `json:"E"`
	TradeTime    int64           `json:"T"`
	Symbol       string          `json:"s"`
	FinalID      int64           `json:"u"`
	LastUpdateID int64           `json:"lastUpdateId"`
	B            [][]wireValue   `json:"b"`
	A            [][]wireValue   `json:"a"`
	Bids         [][]wireValue   `json:"bids"`
	Asks         [][]wireValue   `json:"asks"`
	Result       json.RawMessage `json:"result"`
	ID           json.RawMessage `json:"id"`
}

func decodeBinance(data []byte, u *domain.DepthUpdate) error {
	var env binanceEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("binance frame: %w", err)
	}
	// SUBSCRIBE acks carry an id and a null result.
	if len(env.ID) != 0 {
		return ErrUnrecognized
	}
	if env.Event != "" && env.Event != "depthUpdate" {
		return ErrUnrecognized
	}

	bids, asks := env.Bids, env.Asks
	if env.Event == "depthUpdate" {
		bids, asks = env.B, env.A
	}
	if len(bids) == 0 && len(asks) == 0 {
		return ErrUnrecognized
	}

	if err := parseLevels(bids, &u.Bids); err != nil {
		return fmt.Errorf("binance bids: %w", err)
	}
	if err := parseLevels(asks, &u.Asks); err != nil {
		return fmt.Errorf("binance asks: %w", err)
	}

	u.Symbol = env.Symbol
	switch {
	case env.TradeTime != 0:
		u.ExchangeTS = env.TradeTime
	case env.EventTime != 0:
		u.ExchangeTS = env.EventTime
	}
	switch {
	case env.FinalID != 0:
		u.Sequence = env.FinalID
	case env.LastUpdateID != 0:
		u.Sequence = env.LastUpdateID
	}
	return nil
}

type genericEnvelope struct {
	Symbol    string        `json:"symbol"`
	Timestamp int64         `json:"timestamp"`
	Sequence  int64         `json:"sequence"`
	Bids      [][]wireValue `json:"bids"`
	Asks      [][]wireValue `json:"asks"`
}

func decodeGeneric(data []byte, u *domain.DepthUpdate) error {
	var env genericEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("depth frame: %w", err)
	}
	if len(env.Bids) == 0 && len(env.Asks) == 0 {
		return ErrUnrecognized
	}

	if err := parseLevels(env.Bids, &u.Bids); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := parseLevels(env.Asks, &u.Asks); err != nil {
		return fmt.Errorf("asks: %w", err)
	}

	u.Symbol = env.Symbol
	u.ExchangeTS = env.Timestamp
	u.Sequence = env.Sequence
	return nil
}

// parseLevels converts raw (price, size) pairs, appending into dst so the
// pooled update's slice capacity is reused.
func parseLevels(raw [][]wireValue, dst *[]domain.Level) error {
	for _, pair := range raw {
		if len(pair) < 2 {
			return fmt.Errorf("level needs price and size, got %d fields", len(pair))
		}
		price, err := decimal.NewFromString(string(pair[0]))
		if err != nil {
			return fmt.Errorf("bad price %q", pair[0])
		}
		size, err := decimal.NewFromString(string(pair[1]))
		if err != nil {
			return fmt.Errorf("bad size %q", pair[1])
		}
		*dst = append(*dst, domain.Level{Price: price, Size: size})
	}
	return nil
}

func parseInt(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

// NormalizeSymbol adapts the configured symbol to an endpoint's URL
// conventions: binance wants lowercase with dashes stripped and no -SWAP
// suffix; okx and generic endpoints take the symbol as configured.
func NormalizeSymbol(symbol, format string) string {
	if format == "binance" {
		s := strings.TrimSuffix(symbol, "-SWAP")
		return strings.ToLower(strings.ReplaceAll(s, "-", ""))
	}
	return symbol
}
