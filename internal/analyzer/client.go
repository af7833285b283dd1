// Package analyzer calls a Gemini-compatible generateContent endpoint for
// order book commentary. Every failure mode degrades to a typed error the
// caller renders as "no commentary"; the trading pipeline never depends on
// this package.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quant_go/internal/artifact"
	"quant_go/internal/domain"
	"quant_go/internal/infra"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	// ErrNoAPIKey means the key env variable was never set; the client is
	// constructed anyway so the viewer can report why commentary is off.
	ErrNoAPIKey = errors.New("analyzer: api key not configured")

	// ErrThrottled means the minimum interval between calls has not elapsed.
	ErrThrottled = errors.New("analyzer: minimum call interval not elapsed")

	// ErrNoData means the record carries no usable snapshot.
	ErrNoData = errors.New("analyzer: no order book data to analyze")
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// BookAnalysis is the structured commentary for a snapshot.
type BookAnalysis struct {
	Sentiment      string `json:"sentiment"`
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
}

// StrategyAdvice is the structured execution recommendation for an order of
// the configured size given its estimated costs.
type StrategyAdvice struct {
	Strategy          string `json:"strategy"`
	Reasoning         string `json:"reasoning"`
	ExecutionApproach string `json:"execution_approach"`
}

// Config carries the resolved analyzer settings.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration
}

// Client wraps the HTTP calls behind a circuit breaker and a minimum-interval
// limiter so a flaky or rate-limited upstream cannot stall the caller.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *infra.Metrics
	log     *slog.Logger
}

func NewClient(cfg Config, metrics *infra.Metrics, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Second
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		metrics: metrics,
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analyzer",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitState(to == gobreaker.StateOpen)
			log.Warn("analyzer circuit state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return c
}

// AnalyzeBook asks for sentiment, a short analysis and a recommendation for
// the book in rec. A response that is not clean JSON still yields a usable
// result built from the raw text.
func (c *Client) AnalyzeBook(ctx context.Context, rec *artifact.Record) (*BookAnalysis, error) {
	if rec == nil || rec.Snapshot == nil || len(rec.Snapshot.Bids) == 0 || len(rec.Snapshot.Asks) == 0 {
		return nil, ErrNoData
	}

	text, err := c.generate(ctx, bookPrompt(rec))
	if err != nil {
		return nil, err
	}

	var out BookAnalysis
	if raw, ok := extractJSON(text); ok {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return &out, nil
		}
	}
	return &BookAnalysis{
		Sentiment:      "Neutral",
		Analysis:       truncate(text, 200),
		Recommendation: "See analysis above.",
	}, nil
}

// SuggestStrategy asks for an execution strategy given the order size and its
// estimated cost breakdown.
func (c *Client) SuggestStrategy(ctx context.Context, rec *artifact.Record) (*StrategyAdvice, error) {
	if rec == nil || rec.Snapshot == nil || rec.Metrics == nil {
		return nil, ErrNoData
	}

	text, err := c.generate(ctx, strategyPrompt(rec))
	if err != nil {
		return nil, err
	}

	var out StrategyAdvice
	if raw, ok := extractJSON(text); ok {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return &out, nil
		}
	}
	return &StrategyAdvice{
		Strategy:          "Direct Market Execution",
		Reasoning:         truncate(text, 200),
		ExecutionApproach: "Standard market order",
	}, nil
}

// generateContent request and response shapes, reduced to the fields used.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}
	if !c.limiter.Allow() {
		return "", ErrThrottled
	}

	c.metrics.RecordAnalyzerCall()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, prompt)
	})
	if err != nil {
		c.metrics.RecordAnalyzerFailure()
		c.log.Warn("analyzer call failed", slog.Any("error", err))
		return "", err
	}
	return result.(string), nil
}

func (c *Client) post(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("analyzer: upstream status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("analyzer: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("analyzer: upstream error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("analyzer: empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func bookPrompt(rec *artifact.Record) string {
	snap := rec.Snapshot
	bids := topLevels(snap, true, 5)
	asks := topLevels(snap, false, 5)

	bidVol, _ := snap.BidVolume(5).Float64()
	askVol, _ := snap.AskVolume(5).Float64()
	spread, _ := snap.Spread().Float64()
	imbalance := 0.0
	if bidVol+askVol > 0 {
		imbalance = (bidVol - askVol) / (bidVol + askVol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this cryptocurrency orderbook snapshot and provide insights:\n\n")
	fmt.Fprintf(&b, "Asset: %s\nTime: %s\n\n", snap.Symbol, snap.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Top 5 Bids (Buy Orders):\n%s\n\n", bids)
	fmt.Fprintf(&b, "Top 5 Asks (Sell Orders):\n%s\n\n", asks)
	fmt.Fprintf(&b, "Key Metrics:\n")
	fmt.Fprintf(&b, "- Bid-Ask Spread: %.2f\n", spread)
	fmt.Fprintf(&b, "- Bid Volume: %.2f\n", bidVol)
	fmt.Fprintf(&b, "- Ask Volume: %.2f\n", askVol)
	fmt.Fprintf(&b, "- Order Imbalance: %.2f (positive means more buying pressure)\n\n", imbalance)
	fmt.Fprintf(&b, "Please provide:\n")
	fmt.Fprintf(&b, "1. Market sentiment (Bullish, Bearish, or Neutral)\n")
	fmt.Fprintf(&b, "2. Brief analysis (2-3 sentences)\n")
	fmt.Fprintf(&b, "3. A trading recommendation\n\n")
	fmt.Fprintf(&b, "Format your response as a JSON object with fields: sentiment, analysis, recommendation.\n")
	fmt.Fprintf(&b, "Be concise and focus only on the data provided.\n")
	return b.String()
}

func strategyPrompt(rec *artifact.Record) string {
	snap, m := rec.Snapshot, rec.Metrics
	mid, _ := snap.MidPrice().Float64()
	total := m.NetCost
	pct := func(v float64) float64 {
		if m.OrderSize <= 0 {
			return 0
		}
		return v / m.OrderSize * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate an optimal trading strategy based on this data:\n\n")
	fmt.Fprintf(&b, "Asset: %s\nOrder Size: $%.2f\nCurrent Mid Price: $%.2f\n\n", snap.Symbol, m.OrderSize, mid)
	fmt.Fprintf(&b, "Transaction Costs:\n")
	fmt.Fprintf(&b, "- Fees: $%.4f (%.4f%% of order)\n", m.Fee, pct(m.Fee))
	fmt.Fprintf(&b, "- Expected Slippage: $%.4f (%.4f%% of order)\n", m.Slippage, pct(m.Slippage))
	fmt.Fprintf(&b, "- Market Impact: $%.4f (%.4f%% of order)\n", m.ImpactCost, pct(m.ImpactCost))
	fmt.Fprintf(&b, "- Total Cost: $%.4f (%.4f%% of order)\n\n", total, pct(total))
	fmt.Fprintf(&b, "Based only on this data, recommend a specific trading strategy.\n\n")
	fmt.Fprintf(&b, "Format your response as JSON with these fields:\n")
	fmt.Fprintf(&b, "- strategy: Brief strategy name/type\n")
	fmt.Fprintf(&b, "- reasoning: 1-2 sentences explaining your recommendation\n")
	fmt.Fprintf(&b, "- execution_approach: Brief execution approach\n\n")
	fmt.Fprintf(&b, "Be extremely concise.\n")
	return b.String()
}

func topLevels(snap *domain.OrderBookSnapshot, bids bool, n int) string {
	levels := snap.Asks
	if bids {
		levels = snap.Bids
	}
	if len(levels) > n {
		levels = levels[:n]
	}
	var b strings.Builder
	for _, lvl := range levels {
		fmt.Fprintf(&b, "  [%s, %s]\n", lvl.Price.String(), lvl.Size.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractJSON pulls a JSON object out of model output, tolerating a
// ```json code fence or surrounding prose.
func extractJSON(text string) (string, bool) {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), true
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1], true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
